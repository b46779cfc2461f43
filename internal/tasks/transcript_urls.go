package tasks

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/openpatata/scrapers/internal/crawler"
	"github.com/openpatata/scrapers/internal/record"
	"github.com/openpatata/scrapers/internal/task"
	"github.com/openpatata/scrapers/internal/text"
)

func init() {
	task.Register("plenary_transcript_urls", func() task.Task { return &TranscriptURLs{} })
}

// transcriptLink pairs a sitting id with the transcript URL found for
// it in the archive.
type transcriptLink struct {
	sittingID string
	url       string
}

// TranscriptURLs attaches transcript links to plenary sitting records.
type TranscriptURLs struct {
	IndexURL string
}

func (t *TranscriptURLs) Name() string { return "plenary_transcript_urls" }

func (t *TranscriptURLs) index() string {
	if t.IndexURL != "" {
		return t.IndexURL
	}
	return "http://www.parliament.cy/easyconsole.cfm/id/159"
}

func (t *TranscriptURLs) Scrape(ctx context.Context, c *crawler.Crawler) (any, error) {
	index, err := c.Markup(ctx, t.index(), false)
	if err != nil {
		return nil, err
	}
	listings := hrefs(index, t.index(), "a.h3Style")

	ops := make([]func(context.Context) ([]transcriptLink, error), len(listings))
	for i, listing := range listings {
		ops[i] = func(ctx context.Context) ([]transcriptLink, error) {
			doc, err := c.Markup(ctx, listing, false)
			if err != nil {
				return nil, err
			}
			return parseTranscriptListing(listing, doc), nil
		}
	}
	batches, err := crawler.Gather(ctx, c.Limit(), ops)
	if err != nil {
		return nil, err
	}

	var links []transcriptLink
	for _, batch := range batches {
		links = append(links, batch...)
	}
	return links, nil
}

// Persist merges each transcript link into its sitting's links list,
// creating a bare sitting record when the agenda scrape has not seen
// that date yet.
func (t *TranscriptURLs) Persist(ctx context.Context, store record.Store, result any) error {
	links, ok := result.([]transcriptLink)
	if !ok {
		return fmt.Errorf("unexpected scrape result %T", result)
	}
	for _, link := range links {
		sitting, found, err := store.Get(ctx, record.CollectionPlenarySittings, link.sittingID)
		if err != nil {
			return err
		}
		if !found {
			sitting = record.Doc{"date": link.sittingID}
		}
		sitting = sitting.WithoutID()
		existing := listOf(sitting["links"])
		if !hasLink(existing, link.url) {
			existing = append(existing, map[string]any{"type": "transcript", "url": link.url})
		}
		sitting["links"] = existing
		if err := store.Upsert(ctx, record.CollectionPlenarySittings, link.sittingID, sitting); err != nil {
			return err
		}
	}
	return nil
}

func hasLink(links []any, url string) bool {
	for _, l := range links {
		if m, ok := l.(map[string]any); ok && m["url"] == url {
			return true
		}
	}
	return false
}

func parseTranscriptListing(url string, doc *goquery.Document) []transcriptLink {
	var links []transcriptLink
	for _, href := range hrefs(doc, url, `a[href*="praktiko"]`) {
		_, id, ok := text.ParseTranscriptDate(href)
		if !ok {
			continue
		}
		links = append(links, transcriptLink{sittingID: id, url: href})
	}
	return links
}
