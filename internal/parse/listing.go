// Package parse extracts structured rows from CMVP HTML pages.
package parse

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cmvp-api/cmvp-scraper/internal/cmvp"
)

// Listing is the result of parsing one listing page: the raw rows found and
// the next pagination URL, empty when no further pages are reported.
type Listing struct {
	Rows    []cmvp.RawRow
	NextURL string
}

// ParseListing extracts one raw field map per table row from a listing page.
// Column headers become map keys; a cell's first link contributes an extra
// "<header>_url" key with the href resolved against the page URL. Rows are
// never rejected here: dropping rows without a certificate number is the
// normalizer's job, where the accepted header variants are known.
func ParseListing(pageURL string, body []byte) (Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Listing{}, &cmvp.ParseError{URL: pageURL, Row: -1, Reason: err.Error()}
	}

	base, _ := url.Parse(pageURL)

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return Listing{NextURL: nextPageURL(doc, base)}, &cmvp.ParseError{
			URL: pageURL, Row: -1, Reason: "no table found on page",
		}
	}

	headers, headerInBody := tableHeaders(table)

	rows := table.Find("tbody tr")
	if rows.Length() == 0 {
		rows = table.Find("tr")
	}

	listing := Listing{NextURL: nextPageURL(doc, base)}
	rows.Each(func(i int, row *goquery.Selection) {
		if headerInBody && i == 0 {
			return
		}
		cells := row.Find("td, th")
		if cells.Length() == 0 {
			return
		}

		raw := cmvp.RawRow{}
		cells.Each(func(idx int, cell *goquery.Selection) {
			key := "column_" + strconv.Itoa(idx)
			if idx < len(headers) && headers[idx] != "" {
				key = headers[idx]
			}
			if href, ok := firstLink(cell, base); ok {
				raw[key+"_url"] = href
			}
			raw[key] = cleanText(cell.Text())
		})
		if len(raw) > 0 {
			listing.Rows = append(listing.Rows, raw)
		}
	})

	return listing, nil
}

// tableHeaders returns the column headers and whether they live in the
// table body (so the first body row must be skipped as data). Headers come
// from thead when present, otherwise from a leading all-th row.
func tableHeaders(table *goquery.Selection) ([]string, bool) {
	headerRow := table.Find("thead tr").First()
	if headerRow.Length() > 0 {
		return cellTexts(headerRow), false
	}

	firstRow := table.Find("tbody tr").First()
	if firstRow.Length() == 0 {
		firstRow = table.Find("tr").First()
	}
	if firstRow.Length() == 0 {
		return nil, false
	}

	cells := firstRow.Find("th, td")
	allTH := cells.Length() > 0
	cells.Each(func(_ int, cell *goquery.Selection) {
		if !cell.Is("th") {
			allTH = false
		}
	})
	if !allTH {
		return nil, false
	}
	return cellTexts(firstRow), true
}

func cellTexts(row *goquery.Selection) []string {
	var out []string
	row.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
		out = append(out, cleanText(cell.Text()))
	})
	return out
}

func firstLink(cell *goquery.Selection, base *url.URL) (string, bool) {
	href, ok := cell.Find("a[href]").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", false
	}
	return resolveURL(base, href), true
}

// nextPageURL locates the pagination "next" link when the listing spans
// multiple pages. An empty result means no further pages are reported.
func nextPageURL(doc *goquery.Document, base *url.URL) string {
	if href, ok := doc.Find("a[rel=next]").First().Attr("href"); ok {
		return resolveURL(base, href)
	}
	if href, ok := doc.Find(`a[aria-label="Next"]`).First().Attr("href"); ok {
		return resolveURL(base, href)
	}

	var next string
	doc.Find("ul.pagination a, nav a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		label := strings.ToLower(cleanText(a.Text()))
		if label == "next" || label == "next »" || label == "›" {
			if href, ok := a.Attr("href"); ok {
				next = resolveURL(base, href)
				return false
			}
		}
		return true
	})
	return next
}

func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// cleanText collapses runs of whitespace, matching how the source renders
// multi-line table cells.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
