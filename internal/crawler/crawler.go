// Package crawler composes the HTTP fetcher and the payload decoder
// into the surface tasks program against: text, parsed markup, raw and
// decoded payloads, and a bounded gather primitive for running batches
// of operations concurrently.
package crawler

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openpatata/scrapers/internal/convert"
	"github.com/openpatata/scrapers/internal/fetch"
)

// Fetcher is the HTTP substrate.
type Fetcher interface {
	Get(ctx context.Context, url string) (fetch.Response, error)
	Text(ctx context.Context, url string) (string, error)
}

// Decoder turns payloads into text or structured values.
type Decoder interface {
	Decode(ctx context.Context, payload []byte) (convert.Result, error)
	CleanMarkup(ctx context.Context, markup string) (string, error)
}

// Op is a unit of crawling work submitted to Gather.
type Op func(ctx context.Context) (any, error)

// Crawler is handed to every task when it runs.
type Crawler struct {
	fetcher Fetcher
	decoder Decoder
	limit   int
	log     *zap.Logger
}

// New builds a Crawler. limit bounds how many gathered operations run
// at once; the fetcher additionally bounds actual connections.
func New(fetcher Fetcher, decoder Decoder, limit int, log *zap.Logger) *Crawler {
	if limit <= 0 {
		limit = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Crawler{fetcher: fetcher, decoder: decoder, limit: limit, log: log}
}

// Clone returns a fresh Crawler over the same fetcher and decoder.
// Each task gets its own handle; the fetch semaphore stays shared so
// the global concurrency cap holds across tasks.
func (c *Crawler) Clone() *Crawler {
	cp := *c
	return &cp
}

// Text fetches a URL and returns its body decoded into UTF-8.
func (c *Crawler) Text(ctx context.Context, url string) (string, error) {
	return c.fetcher.Text(ctx, url)
}

// Markup fetches a URL and parses it into a document tree. With clean
// set, the markup is run through the external normalizer first, for
// pages whose tag soup defeats the tolerant parser.
func (c *Crawler) Markup(ctx context.Context, url string, clean bool) (*goquery.Document, error) {
	text, err := c.fetcher.Text(ctx, url)
	if err != nil {
		return nil, err
	}
	if clean {
		text, err = c.decoder.CleanMarkup(ctx, text)
		if err != nil {
			return nil, err
		}
	}
	return goquery.NewDocumentFromReader(strings.NewReader(text))
}

// Payload fetches a URL and returns the raw response body.
func (c *Crawler) Payload(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.fetcher.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// DecodePayload fetches a URL and converts the payload by its sniffed
// media type. The result names the converter that produced it.
func (c *Crawler) DecodePayload(ctx context.Context, url string) (convert.Result, error) {
	payload, err := c.Payload(ctx, url)
	if err != nil {
		return convert.Result{}, err
	}
	return c.decoder.Decode(ctx, payload)
}

// Gather runs ops concurrently under the crawler's limit and returns
// their results in submission order. The first failure cancels the
// remaining queue and is returned; operations already in flight run to
// completion but their results are discarded.
func (c *Crawler) Gather(ctx context.Context, ops ...Op) ([]any, error) {
	fns := make([]func(context.Context) (any, error), len(ops))
	for i, op := range ops {
		fns[i] = op
	}
	return Gather(ctx, c.limit, fns)
}

// Limit reports the gather concurrency bound the crawler was built
// with. Tasks use it when they call the typed Gather directly.
func (c *Crawler) Limit() int {
	return c.limit
}

// Gather is the typed form of Crawler.Gather for homogeneous batches.
func Gather[T any](ctx context.Context, limit int, ops []func(context.Context) (T, error)) ([]T, error) {
	if limit <= 0 {
		limit = 5
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	results := make([]T, len(ops))
	for i, op := range ops {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := op(gctx)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
