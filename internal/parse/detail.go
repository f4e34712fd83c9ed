package parse

import (
	"bytes"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cmvp-api/cmvp-scraper/internal/cmvp"
)

// ParseDetail extracts the approved algorithm names and the security-policy
// PDF link from a certificate detail page. Algorithm names are returned
// sorted and deduplicated so enrichment output is stable across runs.
func ParseDetail(pageURL string, body []byte) (cmvp.Detail, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return cmvp.Detail{}, &cmvp.ParseError{URL: pageURL, Row: -1, Reason: err.Error()}
	}

	base, _ := url.Parse(pageURL)

	return cmvp.Detail{
		Algorithms:        algorithmNames(doc),
		SecurityPolicyURL: securityPolicyLink(doc, base),
	}, nil
}

// algorithmNames scans every table with an "Algorithm" column and collects
// the values of that column. Detail pages have carried the algorithm list
// under varying table layouts, so matching on the header keeps this robust.
func algorithmNames(doc *goquery.Document) []string {
	seen := map[string]struct{}{}

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		headers, headerInBody := tableHeaders(table)
		col := algorithmColumn(headers)
		if col < 0 {
			return
		}

		rows := table.Find("tbody tr")
		if rows.Length() == 0 {
			rows = table.Find("tr")
		}
		rows.Each(func(i int, row *goquery.Selection) {
			if headerInBody && i == 0 {
				return
			}
			cells := row.Find("td, th")
			if col >= cells.Length() {
				return
			}
			name := cleanText(cells.Eq(col).Text())
			if name != "" {
				seen[name] = struct{}{}
			}
		})
	})

	if len(seen) == 0 {
		return nil
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func algorithmColumn(headers []string) int {
	for i, h := range headers {
		switch strings.ToLower(h) {
		case "algorithm", "algorithm name", "validated algorithm":
			return i
		}
	}
	return -1
}

// securityPolicyLink finds the security-policy PDF URL when present.
func securityPolicyLink(doc *goquery.Document, base *url.URL) string {
	var link string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		lowerHref := strings.ToLower(href)
		label := strings.ToLower(cleanText(a.Text()))

		isPDF := strings.Contains(lowerHref, ".pdf")
		mentionsPolicy := strings.Contains(label, "security policy") ||
			strings.Contains(lowerHref, "security-policy")
		if isPDF && mentionsPolicy {
			link = resolveURL(base, href)
			return false
		}
		return true
	})
	return link
}
