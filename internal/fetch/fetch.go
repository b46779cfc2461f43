// Package fetch implements the HTTP substrate for the crawler using
// gocolly. All requests funnel through a shared semaphore so the
// parliament site never sees more than MaxConcurrency connections at
// once, however many tasks are in flight.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/openpatata/scrapers/internal/metrics"
)

// Kind classifies a fetch failure.
type Kind string

const (
	// KindNetwork covers transport errors: DNS, dial, TLS, timeouts.
	KindNetwork Kind = "network"
	// KindStatus covers responses with a non-2xx status code.
	KindStatus Kind = "status"
	// KindEncoding covers responses whose body could not be decoded
	// into UTF-8.
	KindEncoding Kind = "encoding"
)

// Error is a fetch failure tagged with the URL it occurred on.
type Error struct {
	URL  string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %s failure: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Response is the outcome of a single GET.
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	Duration    time.Duration
}

// Config controls collector behavior.
type Config struct {
	UserAgent      string
	Timeout        time.Duration
	MaxConcurrency int
	RespectRobots  bool
	// RatePerHost caps requests per second against a single host.
	// Zero means unthrottled.
	RatePerHost float64
	Burst       int
}

// Fetcher issues bounded HTTP GETs through a shared Colly collector.
type Fetcher struct {
	cfg           Config
	sem           chan struct{}
	limiter       *hostLimiter
	baseCollector *colly.Collector
	log           *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, log *zap.Logger) *Fetcher {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 5
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	// Tasks legitimately refetch index pages within a run.
	c.AllowURLRevisit = true
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		sem:           make(chan struct{}, cfg.MaxConcurrency),
		limiter:       newHostLimiter(cfg.RatePerHost, cfg.Burst),
		baseCollector: c,
		log:           log,
	}
}

// Get fetches a URL and returns the raw response body. It blocks until
// a slot in the shared semaphore frees up or the context is canceled.
func (f *Fetcher) Get(ctx context.Context, url string) (Response, error) {
	if err := f.limiter.wait(ctx, url); err != nil {
		return Response{}, &Error{URL: url, Kind: KindNetwork, Err: err}
	}

	select {
	case f.sem <- struct{}{}:
		defer func() { <-f.sem }()
	case <-ctx.Done():
		return Response{}, &Error{URL: url, Kind: KindNetwork, Err: ctx.Err()}
	}

	var (
		result   Response
		fetchErr error
	)
	start := time.Now()
	collector := f.baseCollector.Clone()

	collector.OnResponse(func(r *colly.Response) {
		result = Response{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        append([]byte(nil), r.Body...),
			Duration:    time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = &Error{
				URL:  url,
				Kind: KindStatus,
				Err:  fmt.Errorf("status %d: %w", r.StatusCode, err),
			}
			return
		}
		fetchErr = &Error{URL: url, Kind: KindNetwork, Err: err}
	})

	if err := f.runCollector(ctx, collector, url, &fetchErr); err != nil {
		f.log.Debug("fetch failed", zap.String("url", url), zap.Error(err))
		metrics.ObserveFetch(url, "error", 0, time.Since(start))
		return Response{}, err
	}
	metrics.ObserveFetch(url, "ok", len(result.Body), result.Duration)
	f.log.Debug("fetched",
		zap.String("url", url),
		zap.Int("status", result.StatusCode),
		zap.Int("bytes", len(result.Body)),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// Text fetches a URL and decodes the body into UTF-8, honoring the
// charset declared in the Content-Type header or sniffed from the body.
// The parliament site serves most pages as windows-1253.
func (f *Fetcher) Text(ctx context.Context, url string) (string, error) {
	resp, err := f.Get(ctx, url)
	if err != nil {
		return "", err
	}
	decoded, err := DecodeBody(resp.Body, resp.ContentType)
	if err != nil {
		return "", &Error{URL: url, Kind: KindEncoding, Err: err}
	}
	return decoded, nil
}

// DecodeBody converts a response body to UTF-8 using the Content-Type
// charset, falling back to sniffing the body itself.
func DecodeBody(body []byte, contentType string) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", fmt.Errorf("determine charset: %w", err)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	return string(decoded), nil
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return &Error{URL: url, Kind: KindNetwork, Err: ctx.Err()}
	case err := <-done:
		if *fetchErr != nil {
			return *fetchErr
		}
		if err != nil {
			return &Error{URL: url, Kind: KindNetwork, Err: err}
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
