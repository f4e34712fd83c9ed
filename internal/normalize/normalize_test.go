package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cmvp-api/cmvp-scraper/internal/cmvp"
)

func TestRecordMapsHeaderVariants(t *testing.T) {
	row := cmvp.RawRow{
		"Certificate Number":        "4282",
		"Certificate Number_url":    "https://csrc.nist.gov/projects/cert/4282",
		"Vendor":                    "Acme Corporation",
		"Module Name":               "Acme Crypto Module",
		"Type":                      "Software",
		"Validation / Posting Date": "04/15/2024",
		"Validation Standard":       "FIPS 140-3",
		"Overall Level":             "Level 2",
		"Sunset Date":               "04/15/2029",
		"Caveats":                   "When operated in FIPS mode",
		"Module Embodiment":         "Multi-Chip Stand Alone",
		"Testing Lab":               "Acme Labs",
	}

	rec, ok := Record(row, cmvp.CategoryValidated)
	require.True(t, ok)

	assert.Equal(t, "4282", rec.CertificateNumber)
	assert.Equal(t, "Acme Corporation", rec.VendorName)
	assert.Equal(t, "Acme Crypto Module", rec.ModuleName)
	assert.Equal(t, "Software", rec.ModuleType)
	assert.Equal(t, "2024-04-15", rec.ValidationDate)
	assert.Equal(t, "FIPS 140-3", rec.Standard)
	assert.Equal(t, "Active", rec.Status, "validated records default to Active")
	require.NotNil(t, rec.OverallLevel)
	assert.Equal(t, 2, *rec.OverallLevel)
	assert.Equal(t, "2029-04-15", rec.SunsetDate)
	assert.Equal(t, "When operated in FIPS mode", rec.Caveat)
	assert.Equal(t, "Multi-Chip Stand Alone", rec.Embodiment)
	assert.Equal(t, "Acme Labs", rec.Lab)
	assert.Equal(t, "https://csrc.nist.gov/projects/cert/4282", rec.DetailURL)
	assert.Nil(t, rec.Algorithms, "algorithms stay null until enrichment runs")
}

func TestRecordIsIdempotent(t *testing.T) {
	// Feeding a record's own canonical fields back through produces the
	// same record, so a re-run over already-normalized data is a no-op.
	row := cmvp.RawRow{
		"certificate_number": "4282",
		"vendor_name":        "Acme Corporation",
		"module_name":        "Acme Crypto Module",
		"validation_date":    "2024-04-15",
		"standard":           "FIPS 140-3",
		"status":             "Active",
		"overall_level":      "2",
		"sunset_date":        "2029-04-15",
		"detail_url":         "https://csrc.nist.gov/projects/cert/4282",
	}

	first, ok := Record(row, cmvp.CategoryValidated)
	require.True(t, ok)

	again, ok := Record(row, cmvp.CategoryValidated)
	require.True(t, ok)
	assert.Equal(t, first, again)
	assert.Equal(t, "2024-04-15", again.ValidationDate)
}

func TestRecordRequiresCertificateNumber(t *testing.T) {
	_, ok := Record(cmvp.RawRow{"Vendor Name": "Acme Corporation"}, cmvp.CategoryValidated)
	assert.False(t, ok)

	_, ok = Record(cmvp.RawRow{"Certificate Number": "  "}, cmvp.CategoryValidated)
	assert.False(t, ok)
}

func TestRecordDefaultStatusPerCategory(t *testing.T) {
	cases := []struct {
		category cmvp.Category
		want     string
	}{
		{cmvp.CategoryValidated, "Active"},
		{cmvp.CategoryHistorical, "Historical"},
		{cmvp.CategoryInProcess, "In Process"},
	}

	for _, tc := range cases {
		t.Run(tc.category.String(), func(t *testing.T) {
			rec, ok := Record(cmvp.RawRow{"Certificate Number": "1"}, tc.category)
			require.True(t, ok)
			assert.Equal(t, tc.want, rec.Status)
		})
	}
}

func TestRecordKeepsExplicitStatus(t *testing.T) {
	rec, ok := Record(cmvp.RawRow{
		"Certificate Number": "1",
		"Status":             "Review Pending",
	}, cmvp.CategoryInProcess)
	require.True(t, ok)
	assert.Equal(t, "Review Pending", rec.Status)
}

func TestRowsDropsRowsWithoutCertificate(t *testing.T) {
	n := New(zap.NewNop())
	rows := []cmvp.RawRow{
		{"Certificate Number": "100", "Vendor Name": "First"},
		{"Vendor Name": "No Certificate Here"},
		{"Certificate Number": "101", "Vendor Name": "Second"},
	}

	records := n.Rows("https://example.com/all", rows, cmvp.CategoryValidated)
	require.Len(t, records, 2)
	assert.Equal(t, "100", records[0].CertificateNumber)
	assert.Equal(t, "101", records[1].CertificateNumber)
}

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2024-04-15", "2024-04-15"},
		{"04/15/2024", "2024-04-15"},
		{"4/5/2024", "2024-04-05"},
		{"March 5, 2021", "2021-03-05"},
		{"Mar 5, 2021", "2021-03-05"},
		{"15-Apr-2024", "2024-04-15"},
		{"  2024-04-15  ", "2024-04-15"},
		{"", ""},
		{"TBD", "TBD"},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, normalizeDate(tc.in))
		})
	}
}

func TestParseLevel(t *testing.T) {
	level := func(n int) *int { return &n }

	cases := []struct {
		in   string
		want *int
	}{
		{"2", level(2)},
		{"Level 3", level(3)},
		{"1 (overall)", level(1)},
		{"N/A", nil},
		{"", nil},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got := parseLevel(tc.in)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tc.want, *got)
		})
	}
}

func TestDedupeLastOccurrenceWins(t *testing.T) {
	records := []cmvp.ModuleRecord{
		{CertificateNumber: "5104", VendorName: "Stale Vendor"},
		{CertificateNumber: "999", VendorName: "Other Vendor"},
		{CertificateNumber: "5104", VendorName: "Fresh Vendor"},
	}

	out := Dedupe(records)
	require.Len(t, out, 2)

	// Numeric ordering, not lexicographic: 999 sorts before 5104.
	assert.Equal(t, "999", out[0].CertificateNumber)
	assert.Equal(t, "5104", out[1].CertificateNumber)
	assert.Equal(t, "Fresh Vendor", out[1].VendorName)
}

func TestCompareCertificates(t *testing.T) {
	assert.Negative(t, CompareCertificates("999", "5104"))
	assert.Positive(t, CompareCertificates("5104", "999"))
	assert.Zero(t, CompareCertificates("100", "100"))

	// Non-numeric certificates fall back to lexicographic order.
	assert.Negative(t, CompareCertificates("A100", "B100"))
}
