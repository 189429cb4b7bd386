// Package report turns scan results into human and machine readable
// output: summaries, CSV exports, dependency trees and Graphviz diagrams.
package report

import (
	"sort"

	"github.com/licenscan/licenscan/pkg/deps"
	"github.com/licenscan/licenscan/pkg/license"
)

// LicenseCount is one histogram bucket of the summary.
type LicenseCount struct {
	License string
	URL     string
	Count   int
}

// Summary aggregates a scan's records for display.
type Summary struct {
	Total      int
	Unknown    int
	Violations []*deps.Record
	ByLicense  []LicenseCount
}

// Summarize builds a summary over records, checking each against the
// allowed-license patterns. Packages with UNKNOWN licenses never count as
// violations; they are surfaced separately.
func Summarize(records []*deps.Record, checker *license.Checker) Summary {
	s := Summary{Total: len(records)}

	counts := make(map[string]int)
	for _, rec := range records {
		counts[rec.License]++
		if rec.License == deps.UnknownLicense {
			s.Unknown++
			continue
		}
		if checker != nil && !checker.Allowed(rec.License) {
			s.Violations = append(s.Violations, rec)
		}
	}

	for lic, count := range counts {
		s.ByLicense = append(s.ByLicense, LicenseCount{
			License: lic,
			URL:     license.CanonicalURL(lic),
			Count:   count,
		})
	}
	sort.Slice(s.ByLicense, func(i, j int) bool {
		if s.ByLicense[i].Count != s.ByLicense[j].Count {
			return s.ByLicense[i].Count > s.ByLicense[j].Count
		}
		return s.ByLicense[i].License < s.ByLicense[j].License
	})

	sort.Slice(s.Violations, func(i, j int) bool {
		return s.Violations[i].Display() < s.Violations[j].Display()
	})

	return s
}
