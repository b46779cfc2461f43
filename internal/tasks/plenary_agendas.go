package tasks

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/openpatata/scrapers/internal/crawler"
	"github.com/openpatata/scrapers/internal/record"
	"github.com/openpatata/scrapers/internal/task"
	"github.com/openpatata/scrapers/internal/text"
)

func init() {
	task.Register("plenary_agendas", func() task.Task { return &PlenaryAgendas{} })
}

var (
	rePeriod  = regexp.MustCompile(`\p{L}+['΄] ΒΟΥΛΕΥΤΙΚΗ ΠΕΡΙΟΔΟΣ`)
	reSession = regexp.MustCompile(`ΣΥΝΟΔΟΣ \p{L}+['΄]`)
	reSitting = regexp.MustCompile(`(\d+)[ηή] ?συνεδρίαση`)
	reItemID  = regexp.MustCompile(`[12]3\.[0-9.-]+`)
)

// agendaResult is one parsed agenda page: the sitting record plus the
// bill records extracted from its legislative items.
type agendaResult struct {
	sitting record.Doc
	bills   []record.Doc
}

// PlenaryAgendas turns the plenary agenda archive into sitting and
// bill records.
type PlenaryAgendas struct {
	// IndexURL overrides the archive index, for tests.
	IndexURL string
}

func (t *PlenaryAgendas) Name() string { return "plenary_agendas" }

func (t *PlenaryAgendas) index() string {
	if t.IndexURL != "" {
		return t.IndexURL
	}
	return "http://www.parliament.cy/easyconsole.cfm/id/290"
}

func (t *PlenaryAgendas) Scrape(ctx context.Context, c *crawler.Crawler) (any, error) {
	index, err := c.Markup(ctx, t.index(), false)
	if err != nil {
		return nil, err
	}
	listings := hrefs(index, t.index(), "a.h3Style")

	pageOps := make([]func(context.Context) ([]string, error), len(listings))
	for i, listing := range listings {
		pageOps[i] = func(ctx context.Context) ([]string, error) {
			return t.scrapeListing(ctx, c, listing)
		}
	}
	agendaURLSets, err := crawler.Gather(ctx, c.Limit(), pageOps)
	if err != nil {
		return nil, err
	}

	var agendaURLs []string
	seen := map[string]bool{}
	for _, set := range agendaURLSets {
		for _, u := range set {
			if !seen[u] {
				seen[u] = true
				agendaURLs = append(agendaURLs, u)
			}
		}
	}

	agendaOps := make([]func(context.Context) (agendaResult, error), len(agendaURLs))
	for i, agendaURL := range agendaURLs {
		agendaOps[i] = func(ctx context.Context) (agendaResult, error) {
			doc, err := c.Markup(ctx, agendaURL, false)
			if err != nil {
				return agendaResult{}, err
			}
			return parseAgenda(agendaURL, doc)
		}
	}
	return crawler.Gather(ctx, c.Limit(), agendaOps)
}

// scrapeListing walks one year's listing, following pagination when
// the archive splits a year across pages.
func (t *PlenaryAgendas) scrapeListing(ctx context.Context, c *crawler.Crawler, listing string) ([]string, error) {
	doc, err := c.Markup(ctx, listing, false)
	if err != nil {
		return nil, err
	}
	agendas := hrefs(doc, listing, "a.h3Style")

	for _, page := range hrefs(doc, listing, "a.pagingStyle") {
		if digits(page) == "" {
			continue
		}
		pageDoc, err := c.Markup(ctx, page, false)
		if err != nil {
			return nil, err
		}
		agendas = append(agendas, hrefs(pageDoc, page, "a.h3Style")...)
	}
	return agendas, nil
}

func (t *PlenaryAgendas) Persist(ctx context.Context, store record.Store, result any) error {
	agendas, ok := result.([]agendaResult)
	if !ok {
		return fmt.Errorf("unexpected scrape result %T", result)
	}
	for _, agenda := range agendas {
		id := agenda.sitting.ID()
		if err := store.Upsert(ctx, record.CollectionPlenarySittings, id, agenda.sitting); err != nil {
			return err
		}
		for _, bill := range agenda.bills {
			if err := store.Upsert(ctx, record.CollectionBills, bill.ID(), bill); err != nil {
				return err
			}
		}
	}
	return nil
}

// parseAgenda creates a plenary sitting record from an agenda page.
func parseAgenda(url string, doc *goquery.Document) (agendaResult, error) {
	date, err := text.ParseLongDate(text.CleanSpaces(doc.Find("h1").Text(), true), true)
	if err != nil {
		return agendaResult{}, fmt.Errorf("agenda %s: %w", url, err)
	}

	bodyText := text.CleanSpaces(doc.Find("div.articleBox").Text(), true)

	items := agendaItems(doc)
	var legislative, debate []any
	var bills []record.Doc
	for _, item := range items {
		switch {
		case strings.HasPrefix(item.id, "23.01"),
			strings.HasPrefix(item.id, "23.02"),
			strings.HasPrefix(item.id, "23.03"):
			legislative = append(legislative, item.id)
			bills = append(bills, record.Doc{
				"_id":        item.id,
				"identifier": item.id,
				"title":      item.title,
			})
		case strings.HasPrefix(item.id, "23.05"):
			debate = append(debate, item.id)
		}
	}
	if legislative == nil {
		legislative = []any{}
	}
	if debate == nil {
		debate = []any{}
	}

	sitting := record.Doc{
		"_id": date,
		"agenda": map[string]any{
			"debate":           debate,
			"legislative_work": legislative,
		},
		"date":  date,
		"links": []any{map[string]any{"type": "agenda", "url": url}},
	}
	if m := rePeriod.FindString(bodyText); m != "" {
		sitting["parliamentary_period"] = m
	}
	if m := reSession.FindString(bodyText); m != "" {
		sitting["session"] = m
	}
	if m := reSitting.FindStringSubmatch(bodyText); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			sitting["sitting"] = n
		}
	}
	sitting.AddSource(url)
	return agendaResult{sitting: sitting, bills: bills}, nil
}

type agendaItem struct {
	id    string
	title string
}

// agendaItems pulls the numbered items out of the agenda table. Each
// item's last line carries its registry number; the first is its title.
func agendaItems(doc *goquery.Document) []agendaItem {
	var items []agendaItem
	seen := map[string]bool{}
	doc.Find("div.articleBox tr td:last-child").Each(func(_ int, sel *goquery.Selection) {
		var lines []string
		sel.Find("div, p").Each(func(_ int, inner *goquery.Selection) {
			lines = append(lines, text.CleanSpaces(inner.Text(), true))
		})
		if len(lines) < 2 {
			return
		}
		title := strings.TrimRight(lines[0], ".")
		id := reItemID.FindString(strings.Join(lines[1:], ""))
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		items = append(items, agendaItem{id: id, title: title})
	})
	return items
}
