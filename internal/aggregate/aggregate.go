// Package aggregate implements the C11 result aggregator: it collects the
// per-(route, user) comparison results produced by the comparator into the
// top-level report shape, preserving user insertion order and deriving the
// run-wide summary counts.
package aggregate

import (
	"github.com/l0p7/httpdiff/internal/classify"
	"github.com/l0p7/httpdiff/internal/compare"
)

// Report is the complete outcome of one run.
type Report struct {
	Results     []compare.Result `json:"results"`
	IsIdentical bool             `json:"is_identical"`
	Cancelled   bool             `json:"cancelled"`

	Total     int `json:"total"`
	Identical int `json:"identical"`
	Differing int `json:"differing"`
	Errored   int `json:"errored"`
	Skipped   int `json:"skipped"`

	Errors classify.Summary `json:"errors"`
}

// Build collects results (in the order they were produced — insertion order
// of users is preserved by the caller appending per-user results in that
// order) into a Report, deriving every count from the individual results
// rather than tracking them incrementally during the run.
func Build(results []compare.Result, errs classify.Summary, cancelled bool) Report {
	r := Report{Results: results, Cancelled: cancelled, Errors: errs, Total: len(results)}

	allIdentical := true
	for _, res := range results {
		if len(res.Responses) == 0 {
			r.Skipped++
		}
		if res.IsIdentical {
			r.Identical++
		} else {
			r.Differing++
			allIdentical = false
		}
		if res.HasErrors {
			r.Errored++
		}
	}
	r.IsIdentical = allIdentical

	return r
}
