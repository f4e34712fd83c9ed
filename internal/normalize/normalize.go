// Package normalize maps raw listing rows into canonical ModuleRecords.
package normalize

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cmvp-api/cmvp-scraper/internal/cmvp"
	"github.com/cmvp-api/cmvp-scraper/internal/metrics"
)

// fieldMapping binds the historical NIST column-name variants for one
// semantic field to its canonical destination. New column variants are
// added here declaratively instead of with ad hoc string matching.
type fieldMapping struct {
	canonical string
	aliases   []string
	assign    func(rec *cmvp.ModuleRecord, value string)
}

// Alias comparison is case-insensitive on the cleaned header text. Each
// field accepts its own canonical name so normalization is idempotent.
var fieldTable = []fieldMapping{
	{
		canonical: "certificate_number",
		aliases:   []string{"certificate_number", "certificate number", "certificate", "cert. #", "cert #", "cert#", "cert number"},
		assign:    func(r *cmvp.ModuleRecord, v string) { r.CertificateNumber = v },
	},
	{
		canonical: "vendor_name",
		aliases:   []string{"vendor_name", "vendor", "vendor name"},
		assign:    func(r *cmvp.ModuleRecord, v string) { r.VendorName = v },
	},
	{
		canonical: "module_name",
		aliases:   []string{"module_name", "module name", "module"},
		assign:    func(r *cmvp.ModuleRecord, v string) { r.ModuleName = v },
	},
	{
		canonical: "module_type",
		aliases:   []string{"module_type", "module type", "type"},
		assign:    func(r *cmvp.ModuleRecord, v string) { r.ModuleType = v },
	},
	{
		canonical: "validation_date",
		aliases:   []string{"validation_date", "validation date", "validation / posting date", "validation/posting date"},
		assign:    func(r *cmvp.ModuleRecord, v string) { r.ValidationDate = normalizeDate(v) },
	},
	{
		canonical: "standard",
		aliases:   []string{"standard", "validation standard"},
		assign:    func(r *cmvp.ModuleRecord, v string) { r.Standard = v },
	},
	{
		canonical: "status",
		aliases:   []string{"status"},
		assign:    func(r *cmvp.ModuleRecord, v string) { r.Status = v },
	},
	{
		canonical: "overall_level",
		aliases:   []string{"overall_level", "overall level", "level", "security level", "overall security level"},
		assign:    func(r *cmvp.ModuleRecord, v string) { r.OverallLevel = parseLevel(v) },
	},
	{
		canonical: "sunset_date",
		aliases:   []string{"sunset_date", "sunset date"},
		assign:    func(r *cmvp.ModuleRecord, v string) { r.SunsetDate = normalizeDate(v) },
	},
	{
		canonical: "caveat",
		aliases:   []string{"caveat", "caveats"},
		assign:    func(r *cmvp.ModuleRecord, v string) { r.Caveat = v },
	},
	{
		canonical: "embodiment",
		aliases:   []string{"embodiment", "module embodiment"},
		assign:    func(r *cmvp.ModuleRecord, v string) { r.Embodiment = v },
	},
	{
		canonical: "description",
		aliases:   []string{"description", "module description"},
		assign:    func(r *cmvp.ModuleRecord, v string) { r.Description = v },
	},
	{
		canonical: "lab",
		aliases:   []string{"lab", "testing lab", "lab name"},
		assign:    func(r *cmvp.ModuleRecord, v string) { r.Lab = v },
	},
	{
		canonical: "security_policy_url",
		aliases:   []string{"security_policy_url", "security policy_url"},
		assign:    func(r *cmvp.ModuleRecord, v string) { r.SecurityPolicyURL = v },
	},
	{
		canonical: "detail_url",
		aliases:   []string{"detail_url", "certificate_number_url", "certificate number_url", "certificate_url", "module name_url", "module_name_url"},
		assign:    func(r *cmvp.ModuleRecord, v string) { r.DetailURL = v },
	},
}

// Normalizer converts raw rows into ModuleRecords.
type Normalizer struct {
	logger *zap.Logger
}

// New returns a Normalizer logging through the given logger.
func New(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

// Rows normalizes every raw row from one page. A row that cannot yield a
// certificate number is dropped and logged with its index, not fatal.
func (n *Normalizer) Rows(pageURL string, rows []cmvp.RawRow, category cmvp.Category) []cmvp.ModuleRecord {
	records := make([]cmvp.ModuleRecord, 0, len(rows))
	for i, row := range rows {
		rec, ok := Record(row, category)
		if !ok {
			metrics.RowsDropped.WithLabelValues(category.String()).Inc()
			n.logger.Warn("dropping row without certificate number",
				zap.String("url", pageURL),
				zap.Int("row", i),
				zap.String("category", category.String()),
			)
			continue
		}
		metrics.RowsParsed.WithLabelValues(category.String()).Inc()
		records = append(records, rec)
	}
	return records
}

// Record maps one raw row through the canonical field table. The second
// return value is false when the row has no certificate number.
func Record(row cmvp.RawRow, category cmvp.Category) (cmvp.ModuleRecord, bool) {
	lookup := make(map[string]string, len(row))
	for k, v := range row {
		lookup[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}

	var rec cmvp.ModuleRecord
	for _, field := range fieldTable {
		for _, alias := range field.aliases {
			if v, ok := lookup[alias]; ok && v != "" {
				field.assign(&rec, v)
				break
			}
		}
	}

	if rec.CertificateNumber == "" {
		return cmvp.ModuleRecord{}, false
	}
	if rec.Status == "" {
		rec.Status = defaultStatus(category)
	}
	return rec, true
}

// Dedupe removes duplicate certificate numbers within one category. The
// later occurrence wins, matching the pipeline's "last parsed wins" policy
// for overlapping pagination. Output is ordered by certificate number so
// published files are stable across runs.
func Dedupe(records []cmvp.ModuleRecord) []cmvp.ModuleRecord {
	byCert := make(map[string]cmvp.ModuleRecord, len(records))
	for _, rec := range records {
		byCert[rec.CertificateNumber] = rec
	}

	out := make([]cmvp.ModuleRecord, 0, len(byCert))
	for _, rec := range byCert {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return CompareCertificates(out[i].CertificateNumber, out[j].CertificateNumber) < 0
	})
	return out
}

// CompareCertificates orders certificate numbers numerically when both
// parse as integers, falling back to lexicographic order.
func CompareCertificates(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

func defaultStatus(category cmvp.Category) string {
	switch category {
	case cmvp.CategoryValidated:
		return "Active"
	case cmvp.CategoryHistorical:
		return "Historical"
	case cmvp.CategoryInProcess:
		return "In Process"
	}
	return ""
}

// dateLayouts covers the formats NIST has used for validation and sunset
// dates. The canonical layout comes first so normalization is idempotent.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"01-02-2006",
	"02-Jan-2006",
}

// normalizeDate maps the source's date variants to YYYY-MM-DD. Unparseable
// values pass through trimmed rather than erroring.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

// parseLevel coerces the overall-level field to an integer when parseable,
// tolerating prefixes like "Level 2". Returns nil otherwise, never errors.
func parseLevel(s string) *int {
	for _, part := range strings.Fields(s) {
		part = strings.Trim(part, "()")
		if n, err := strconv.Atoi(part); err == nil {
			return &n
		}
	}
	return nil
}
