// Package tasks holds the scraping jobs for the Cyprus parliament
// site. Each job registers itself with the task registry under the
// name the run command resolves.
package tasks

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// hrefs collects the href attributes of every element matched by the
// selector, resolved against base and deduplicated in page order.
func hrefs(doc *goquery.Document, base, selector string) []string {
	seen := map[string]bool{}
	var out []string
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		resolved := resolveURL(base, href)
		if resolved == "" || seen[resolved] {
			return
		}
		seen[resolved] = true
		out = append(out, resolved)
	})
	return out
}

func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(ref).String()
}

// digits strips everything but digits, for pagination fragments like
// "javascript:submitForm(2)".
func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
