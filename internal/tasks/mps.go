package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/openpatata/scrapers/internal/crawler"
	"github.com/openpatata/scrapers/internal/record"
	"github.com/openpatata/scrapers/internal/task"
	"github.com/openpatata/scrapers/internal/text"
)

func init() {
	task.Register("mps", func() task.Task { return &MPs{} })
}

// mpListing is one profile archive page and the parliamentary term it
// covers.
type mpListing struct {
	URL  string
	Term string
}

var defaultMPListings = []mpListing{
	{"http://www.parliament.cy/easyconsole.cfm/id/2004", "10"},
	{"http://www.parliament.cy/easyconsole.cfm/id/2033", "10"},
	{"http://www.parliament.cy/easyconsole.cfm/id/186", "11"},
	{"http://www.parliament.cy/easyconsole.cfm/id/182", "11"},
}

// MPs scrapes member profiles into mp records.
type MPs struct {
	Listings []mpListing
}

func (t *MPs) Name() string { return "mps" }

func (t *MPs) listings() []mpListing {
	if len(t.Listings) > 0 {
		return t.Listings
	}
	return defaultMPListings
}

func (t *MPs) Scrape(ctx context.Context, c *crawler.Crawler) (any, error) {
	type profile struct {
		url  string
		term string
	}

	var profiles []profile
	seen := map[string]bool{}
	for _, listing := range t.listings() {
		urls, err := t.scrapeListing(ctx, c, listing.URL)
		if err != nil {
			return nil, err
		}
		for _, u := range urls {
			if seen[u] {
				continue
			}
			seen[u] = true
			profiles = append(profiles, profile{url: u, term: listing.Term})
		}
	}

	ops := make([]func(context.Context) (record.Doc, error), len(profiles))
	for i, p := range profiles {
		ops[i] = func(ctx context.Context) (record.Doc, error) {
			doc, err := c.Markup(ctx, p.url, false)
			if err != nil {
				return nil, err
			}
			return parseMPProfile(p.url, p.term, doc)
		}
	}
	return crawler.Gather(ctx, c.Limit(), ops)
}

func (t *MPs) scrapeListing(ctx context.Context, c *crawler.Crawler, listing string) ([]string, error) {
	doc, err := c.Markup(ctx, listing, false)
	if err != nil {
		return nil, err
	}
	urls := hrefs(doc, listing, "a.h3Style")
	for _, page := range hrefs(doc, listing, "a.pagingStyle") {
		pageDoc, err := c.Markup(ctx, page, false)
		if err != nil {
			return nil, err
		}
		urls = append(urls, hrefs(pageDoc, page, "a.h3Style")...)
	}
	return urls, nil
}

// Persist upserts mp records, folding repeat appearances of the same
// member across terms into one record with a terms list.
func (t *MPs) Persist(ctx context.Context, store record.Store, result any) error {
	mps, ok := result.([]record.Doc)
	if !ok {
		return fmt.Errorf("unexpected scrape result %T", result)
	}
	for _, mp := range mps {
		id := mp.ID()
		existing, found, err := store.Get(ctx, record.CollectionMPs, id)
		if err != nil {
			return err
		}
		if found {
			mp = mergeMP(existing, mp)
		}
		if err := store.Upsert(ctx, record.CollectionMPs, id, mp); err != nil {
			return err
		}
	}
	return nil
}

func mergeMP(old, incoming record.Doc) record.Doc {
	merged := old.WithoutID()
	for k, v := range incoming.WithoutID() {
		if k == "terms" {
			merged[k] = mergeLists(listOf(old["terms"]), listOf(v))
			continue
		}
		merged[k] = v
	}
	for _, src := range old.Sources() {
		merged.AddSource(src)
	}
	return merged
}

// parseMPProfile builds an mp record from a profile page. The first
// paragraph of the article box carries the district on one line and
// the party on the next.
func parseMPProfile(url, term string, doc *goquery.Document) (record.Doc, error) {
	name := text.CleanSpaces(doc.Find("h1").First().Text(), true)
	if name == "" {
		return nil, fmt.Errorf("mp profile %s: no name heading", url)
	}
	slug, err := text.TruncateSlug(text.Slugify(name), 100)
	if err != nil {
		return nil, fmt.Errorf("mp profile %s: %w", url, err)
	}

	mp := record.Doc{
		"_id": slug,
		"name": map[string]any{
			"el": name,
			"en": text.TransliterateLatin(name),
		},
		"terms": []any{term},
	}

	info := doc.Find("div.articleBox p").First().Text()
	lines := strings.Split(strings.TrimSpace(info), "\n")
	if len(lines) >= 1 {
		district := text.CleanSpaces(lines[0], true)
		if i := strings.LastIndex(district, " "); i >= 0 {
			mp["district"] = district[i+1:]
		}
	}
	if len(lines) >= 2 {
		mp["party"] = text.CleanSpaces(lines[1], true)
	}

	mp.AddSource(url)
	return mp, nil
}
