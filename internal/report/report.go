// Package report renders a run's comparison results to the external JSON
// contract from spec §6: a flat array of ComparisonResult objects, no
// wrapper, in either pretty or compact form.
package report

import (
	"encoding/json"
	"fmt"

	"github.com/l0p7/httpdiff/internal/compare"
)

// JSON renders results as the bit-exact JSON array contract: pretty
// controls indentation, matching the original renderer's pretty/compact
// modes.
func JSON(results []compare.Result, pretty bool) ([]byte, error) {
	if results == nil {
		results = []compare.Result{}
	}
	if pretty {
		return json.MarshalIndent(results, "", "  ")
	}
	return json.Marshal(results)
}

// ErrorsOnly filters results down to those with HasErrors set, preserving
// order, for the CLI's --errors-only contract.
func ErrorsOnly(results []compare.Result) []compare.Result {
	out := make([]compare.Result, 0, len(results))
	for _, r := range results {
		if r.HasErrors {
			out = append(out, r)
		}
	}
	return out
}

// CLISummary renders a short human-readable one-line-per-route summary, the
// input contract the teacher's own CLI renderer consumes (full table
// rendering, colour, and key bindings are out of scope — see spec §1).
func CLISummary(results []compare.Result) string {
	var out string
	for _, r := range results {
		status := "identical"
		switch {
		case r.HasErrors:
			status = "errors"
		case !r.IsIdentical:
			status = "differs"
		}
		out += fmt.Sprintf("%s [%v]: %s (%d differences)\n", r.RouteName, r.UserContext, status, len(r.Differences))
	}
	return out
}
