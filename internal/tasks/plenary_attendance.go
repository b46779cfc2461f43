package tasks

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/openpatata/scrapers/internal/convert"
	"github.com/openpatata/scrapers/internal/crawler"
	"github.com/openpatata/scrapers/internal/record"
	"github.com/openpatata/scrapers/internal/task"
	"github.com/openpatata/scrapers/internal/text"
)

func init() {
	task.Register("plenary_attendance", func() task.Task { return &PlenaryAttendance{} })
}

// Sentinels bracketing the attendee table once the heading variants
// have been substituted away.
const (
	attStart = "\x02"
	attEnd   = "\x03"
)

// attendanceSubs normalizes the attendee-table headings, including the
// garbled renderings some transcripts embed, and repairs two known
// typos in the source PDFs.
var attendanceSubs = strings.NewReplacer(
	"Παρόντες βουλευτές", attStart,
	"Παρόνηες βοσλεσηές", attStart,
	"Παξόληεο βνπιεπηέο", attStart,
	"(Ώρα λήξης: 6.15 μ.μ.)", attStart,
	"Παρόντες αντιπρόσωποι θρησκευτικών ομάδων", attEnd,
	"Παρόνηες ανηιπρόζωποι θρηζκεσηικών ομάδων", attEnd,
	"Παξόληεο αληηπξόζσπνη ζξεζθεπηηθώλ νκάδσλ", attEnd,
	"Αντιπρόσωποι θρησκευτικών ομάδων", attEnd,
	"Περιεχόμενα", attEnd,
	"ΠΕΡΙΕΧΟΜΕΝΑ", attEnd,
	"ΠΔΡΙΔΥΟΜΔΝΑ", attEnd,
	"Χαμπουλάς Ευγένιος", "Χαμπουλλάς Ευγένιος",
	"Δημητρίου Μισιαούλη Στέλλα Παπαγεωργίου Πάμπος",
	"Δημητρίου Μισιαούλη Στέλλα   Παπαγεωργίου Πάμπος",
)

var reAttendees = regexp.MustCompile(`(?s)[\n\f] *` + attStart + `(.*?)` + attEnd)

// attendance pairs a sitting with the MPs its transcript records as
// present.
type attendance struct {
	sittingID string
	date      string
	names     []string
}

// PlenaryAttendance extracts the attendee lists from plenary sitting
// transcripts.
type PlenaryAttendance struct {
	IndexURL string
}

func (t *PlenaryAttendance) Name() string { return "plenary_attendance" }

func (t *PlenaryAttendance) index() string {
	if t.IndexURL != "" {
		return t.IndexURL
	}
	return "http://www.parliament.cy/easyconsole.cfm/id/159"
}

func (t *PlenaryAttendance) Scrape(ctx context.Context, c *crawler.Crawler) (any, error) {
	index, err := c.Markup(ctx, t.index(), false)
	if err != nil {
		return nil, err
	}
	listings := hrefs(index, t.index(), "a.h3Style")

	listingOps := make([]func(context.Context) ([]transcriptLink, error), len(listings))
	for i, listing := range listings {
		listingOps[i] = func(ctx context.Context) ([]transcriptLink, error) {
			doc, err := c.Markup(ctx, listing, false)
			if err != nil {
				return nil, err
			}
			return parseTranscriptListing(listing, doc), nil
		}
	}
	batches, err := crawler.Gather(ctx, c.Limit(), listingOps)
	if err != nil {
		return nil, err
	}

	var links []transcriptLink
	for _, batch := range batches {
		for _, link := range batch {
			// Only the PDF transcripts carry a parsable table.
			if strings.HasSuffix(link.url, ".pdf") {
				links = append(links, link)
			}
		}
	}

	transcriptOps := make([]func(context.Context) (*attendance, error), len(links))
	for i, link := range links {
		transcriptOps[i] = func(ctx context.Context) (*attendance, error) {
			res, err := c.DecodePayload(ctx, link.url)
			if err != nil {
				return nil, err
			}
			if res.Converter != convert.ConverterPDF {
				return nil, nil
			}
			return parseAttendance(link.sittingID, res.Text), nil
		}
	}
	parsed, err := crawler.Gather(ctx, c.Limit(), transcriptOps)
	if err != nil {
		return nil, err
	}

	out := make([]*attendance, 0, len(parsed))
	for _, a := range parsed {
		if a != nil {
			out = append(out, a)
		}
	}
	return out, nil
}

// Persist records each attendee list on its sitting, creating a bare
// sitting when neither the agenda nor the transcript-URL scrape has
// seen that date yet.
func (t *PlenaryAttendance) Persist(ctx context.Context, store record.Store, result any) error {
	sheets, ok := result.([]*attendance)
	if !ok {
		return fmt.Errorf("unexpected scrape result %T", result)
	}
	for _, sheet := range sheets {
		sitting, found, err := store.Get(ctx, record.CollectionPlenarySittings, sheet.sittingID)
		if err != nil {
			return err
		}
		if !found {
			sitting = record.Doc{"date": sheet.date}
		}
		sitting = sitting.WithoutID()
		present := make([]any, len(sheet.names))
		for i, name := range sheet.names {
			present[i] = name
		}
		sitting["mps_present"] = present
		if err := store.Upsert(ctx, record.CollectionPlenarySittings, sheet.sittingID, sitting); err != nil {
			return err
		}
	}
	return nil
}

// parseAttendance pulls the attendee table out of a transcript's text.
// Returns nil when the table cannot be located; transcripts before the
// format settled simply do not have one.
func parseAttendance(sittingID, pdfText string) *attendance {
	body := attendanceSubs.Replace(pdfText)
	m := reAttendees.FindStringSubmatch(body)
	if m == nil {
		return nil
	}

	var names []string
	// Columns shift at page breaks, so each page is parsed on its own.
	for _, page := range strings.Split(m[1], "\f") {
		for _, value := range text.NewTable(page, 2).Values() {
			if value == digits(value) {
				// Page number.
				continue
			}
			names = append(names, value)
		}
	}

	// The President chairs the sitting and is not listed.
	if strings.Contains(body, "ΠΡΟΕΔΡΟΣ:") ||
		sittingID == "2015-04-02_1" || sittingID == "2015-04-02_2" {
		names = append(names, "Ομήρου Γιαννάκης")
	}
	sort.Strings(names)

	date, _, ok := splitSittingID(sittingID)
	if !ok {
		date = sittingID
	}
	return &attendance{sittingID: sittingID, date: date, names: names}
}

// splitSittingID separates a sitting id into its date and the optional
// same-day counter.
func splitSittingID(id string) (date, counter string, ok bool) {
	if i := strings.IndexByte(id, '_'); i >= 0 {
		return id[:i], id[i+1:], true
	}
	return id, "", id != ""
}
