// Package cmvp defines core types shared across the scraping pipeline.
package cmvp

// Category identifies one of the CMVP record collections, each with its own
// listing source and output file.
type Category string

// Categories published by the scraper.
const (
	CategoryValidated  Category = "validated"
	CategoryHistorical Category = "historical"
	CategoryInProcess  Category = "in-process"
)

// String returns the category name used in logs and metric labels.
func (c Category) String() string { return string(c) }

// RawRow is one listing-table row as parsed from the page, keyed by column
// header. Link cells contribute an extra "<header>_url" key.
type RawRow map[string]string

// ModuleRecord is one validated, historical, or in-process cryptographic
// module. Records are immutable once written for a given run; a new run
// fully replaces the prior snapshot.
type ModuleRecord struct {
	CertificateNumber string `json:"certificate_number"`
	VendorName        string `json:"vendor_name,omitempty"`
	ModuleName        string `json:"module_name,omitempty"`
	ModuleType        string `json:"module_type,omitempty"`
	ValidationDate    string `json:"validation_date,omitempty"`
	Standard          string `json:"standard,omitempty"`
	Status            string `json:"status,omitempty"`
	OverallLevel      *int   `json:"overall_level,omitempty"`
	SunsetDate        string `json:"sunset_date,omitempty"`
	Caveat            string `json:"caveat,omitempty"`
	Embodiment        string `json:"embodiment,omitempty"`
	Description       string `json:"description,omitempty"`
	Lab               string `json:"lab,omitempty"`
	SecurityPolicyURL string `json:"security_policy_url,omitempty"`
	DetailURL         string `json:"detail_url,omitempty"`

	// Algorithms is nil unless enrichment ran and succeeded for this
	// certificate, and serializes as null so consumers can tell "not
	// extracted" apart from "none approved".
	Algorithms []string `json:"algorithms"`
}

// Detail holds what the enricher extracts from a certificate detail page.
type Detail struct {
	Algorithms        []string
	SecurityPolicyURL string
}

// AlgorithmEntry is the aggregated view of one algorithm name across the
// validated collection. Count always equals len(Certificates).
type AlgorithmEntry struct {
	Count        int      `json:"count"`
	Certificates []string `json:"certificates"`
}

// AlgorithmReport is the payload of algorithms.json.
type AlgorithmReport struct {
	TotalUniqueAlgorithms int                       `json:"total_unique_algorithms"`
	TotalPairs            int                       `json:"total_certificate_algorithm_pairs"`
	Algorithms            map[string]AlgorithmEntry `json:"algorithms"`
}

// DatasetMetadata describes one published snapshot. It is recomputed fresh
// on every run and never merged with prior state.
type DatasetMetadata struct {
	GeneratedAt        string `json:"generated_at"`
	RunID              string `json:"run_id"`
	TotalModules       int    `json:"total_modules"`
	TotalHistorical    int    `json:"total_historical"`
	TotalInProcess     int    `json:"total_in_process"`
	AlgorithmsIncluded bool   `json:"algorithms_included"`
	Source             string `json:"source,omitempty"`
	InProcessSource    string `json:"modules_in_process_source,omitempty"`
	Version            string `json:"version"`
}
