package normalize

import (
	"sort"

	"github.com/cmvp-api/cmvp-scraper/internal/cmvp"
)

// Aggregate computes the algorithm summary over the validated collection.
// Algorithm name comparison is case-sensitive and exact; no fuzzy merging
// of name variants. Records whose algorithms were never extracted (nil)
// contribute nothing.
func Aggregate(records []cmvp.ModuleRecord) cmvp.AlgorithmReport {
	certs := make(map[string]map[string]struct{})
	for _, rec := range records {
		for _, name := range rec.Algorithms {
			if name == "" {
				continue
			}
			if certs[name] == nil {
				certs[name] = make(map[string]struct{})
			}
			certs[name][rec.CertificateNumber] = struct{}{}
		}
	}

	report := cmvp.AlgorithmReport{
		TotalUniqueAlgorithms: len(certs),
		Algorithms:            make(map[string]cmvp.AlgorithmEntry, len(certs)),
	}
	for name, set := range certs {
		list := make([]string, 0, len(set))
		for cert := range set {
			list = append(list, cert)
		}
		sort.Slice(list, func(i, j int) bool {
			return CompareCertificates(list[i], list[j]) < 0
		})
		report.Algorithms[name] = cmvp.AlgorithmEntry{
			Count:        len(list),
			Certificates: list,
		}
		report.TotalPairs += len(list)
	}
	return report
}
