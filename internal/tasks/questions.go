package tasks

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/openpatata/scrapers/internal/crawler"
	"github.com/openpatata/scrapers/internal/record"
	"github.com/openpatata/scrapers/internal/task"
	"github.com/openpatata/scrapers/internal/text"
)

func init() {
	task.Register("questions", func() task.Task { return &Questions{} })
}

var (
	// Post-2002 heading format.
	reHeading1 = regexp.MustCompile(`Ερώτηση με αρ\. ([\d.]+),? ημερομηνίας ([\p{L}\d ]+)`)
	// Heading format before 2002 or thereabouts.
	reHeading2 = regexp.MustCompile(`Ερώτηση με αρ\. ([\d.]+) που .* (?:την|στις) ([\p{L}\d ]+)`)
	reNames    = regexp.MustCompile(`(?:[ -][ΆΈ-ΊΌΎΏΑ-ΡΣ-Ϋ][ΐά-ώ]*\.?){2,3}`)
)

// headingSubs patches recurring typos in question headings before
// boundary matching.
var headingSubs = strings.NewReplacer(
	"-Ερώτηση", "Ερώτηση",
	"Λευκωσίας Χρήστου Στυλιανίδη", "Λευκωσίας κ. Χρήστου Στυλιανίδη",
	"Περδίκη Ερώτηση", "Ερώτηση",
	"φΕρώτηση", "Ερώτηση",
)

// Questions creates individual question records from the chronological
// question listings.
type Questions struct {
	IndexURL string
}

func (t *Questions) Name() string { return "questions" }

func (t *Questions) index() string {
	if t.IndexURL != "" {
		return t.IndexURL
	}
	return "http://www2.parliament.cy/parliamentgr/008_02.htm"
}

func (t *Questions) Scrape(ctx context.Context, c *crawler.Crawler) (any, error) {
	index, err := c.Markup(ctx, t.index(), false)
	if err != nil {
		return nil, err
	}
	listings := hrefs(index, t.index(), `a[href*="chronological"]`)

	ops := make([]func(context.Context) ([]record.Doc, error), len(listings))
	for i, listing := range listings {
		ops[i] = func(ctx context.Context) ([]record.Doc, error) {
			doc, err := c.Markup(ctx, listing, true)
			if err != nil {
				return nil, err
			}
			return parseQuestionListing(listing, doc), nil
		}
	}
	batches, err := crawler.Gather(ctx, c.Limit(), ops)
	if err != nil {
		return nil, err
	}

	var questions []record.Doc
	for _, batch := range batches {
		questions = append(questions, batch...)
	}
	return questions, nil
}

func (t *Questions) Persist(ctx context.Context, store record.Store, result any) error {
	questions, ok := result.([]record.Doc)
	if !ok {
		return fmt.Errorf("unexpected scrape result %T", result)
	}
	seen := map[string]bool{}
	for _, q := range questions {
		id := q.ID()
		if seen[id] {
			// The listings occasionally repeat a question; the later
			// occurrence carries the answer links.
			existing, found, err := store.Get(ctx, record.CollectionQuestions, id)
			if err != nil {
				return err
			}
			if found {
				q = mergeQuestion(existing, q)
			}
		}
		seen[id] = true
		if err := store.Upsert(ctx, record.CollectionQuestions, id, q); err != nil {
			return err
		}
	}
	return nil
}

func mergeQuestion(old, incoming record.Doc) record.Doc {
	merged := old.WithoutID()
	for k, v := range incoming.WithoutID() {
		if k == "answers" {
			merged[k] = mergeLists(listOf(old["answers"]), listOf(v))
			continue
		}
		merged[k] = v
	}
	for _, src := range old.Sources() {
		merged.AddSource(src)
	}
	return merged
}

func listOf(v any) []any {
	list, _ := v.([]any)
	return list
}

func mergeLists(a, b []any) []any {
	out := make([]any, 0, len(a)+len(b))
	seen := map[any]bool{}
	for _, v := range append(a, b...) {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// parseQuestionListing slices a listing page into individual
// questions. Headings open with a fixed phrase; paragraphs up to the
// next heading are the question body, except answer paragraphs, whose
// links become the answers list.
func parseQuestionListing(url string, doc *goquery.Document) []record.Doc {
	type paragraph struct {
		norm string
		sel  *goquery.Selection
	}

	var paragraphs []paragraph
	doc.Find("tr p").Each(func(_ int, sel *goquery.Selection) {
		cleaned := text.CleanSpaces(sel.Text(), true)
		paragraphs = append(paragraphs, paragraph{
			norm: headingSubs.Replace(text.UngarbleGreek(cleaned)),
			sel:  sel,
		})
	})
	// Sentinel flushes the final question.
	paragraphs = append(paragraphs, paragraph{norm: "Ερώτηση με αρ."})

	var questions []record.Doc
	var heading string
	var body []string
	var answers []any

	flush := func() {
		if heading == "" || len(body) == 0 {
			return
		}
		if q := parseQuestion(url, heading, body, answers); q != nil {
			questions = append(questions, q)
		}
	}
	for _, p := range paragraphs {
		switch {
		case strings.HasPrefix(p.norm, "Ερώτηση με αρ."):
			flush()
			heading = p.norm
			body = nil
			answers = nil
		case strings.HasPrefix(p.norm, "Απάντηση"):
			if p.sel != nil {
				if href, ok := p.sel.Find("a[href]").Attr("href"); ok {
					answers = append(answers, resolveURL(url, href))
				}
			}
		default:
			if p.norm != "" {
				body = append(body, p.norm)
			}
		}
	}
	return questions
}

func parseQuestion(url, heading string, body []string, answers []any) record.Doc {
	m := reHeading1.FindStringSubmatch(heading)
	if m == nil {
		m = reHeading2.FindStringSubmatch(heading)
	}
	if m == nil {
		return nil
	}
	id := m[1]
	date, err := text.ParseLongDate(m[2], false)
	if err != nil {
		return nil
	}

	var by []any
	for _, name := range reNames.FindAllString(heading, -1) {
		slug, err := text.TruncateSlug(text.Slugify(strings.TrimSpace(name)), 100)
		if err != nil {
			continue
		}
		by = append(by, map[string]any{"mp_id": slug})
	}
	if by == nil {
		by = []any{}
	}
	if answers == nil {
		answers = []any{}
	}

	q := record.Doc{
		"_id":        id,
		"answers":    answers,
		"by":         by,
		"date":       date,
		"heading":    strings.TrimRight(heading, "."),
		"identifier": id,
		"text":       strings.Join(body, "\n\n"),
	}
	q.AddSource(url)
	return q
}
