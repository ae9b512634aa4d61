// Package classify implements the C10 error classifier: it partitions the
// cells that produced an error response into the taxonomy from spec §4.10 —
// client error, server error, transport failure, timeout, or other — and
// keeps one exemplar body per category for the report.
package classify

import (
	"context"
	"errors"
	"net"

	"github.com/l0p7/httpdiff/internal/httpclient"
)

// Category is one bucket of the error taxonomy.
type Category string

const (
	ClientError Category = "client_error"
	ServerError Category = "server_error"
	Transport   Category = "transport"
	Timeout     Category = "timeout"
	Other       Category = "other"
)

// Entry is one executed cell considered for classification.
type Entry struct {
	Route       string
	Environment string
	Response    httpclient.Response
}

// IsError reports whether resp counts as a failing cell: a transport
// failure, or an HTTP status of 400 or above.
func IsError(resp httpclient.Response) bool {
	return resp.Failed() || resp.StatusCode >= 400
}

// Classify buckets one response into the error taxonomy. Callers should
// only classify responses where IsError reports true.
func Classify(resp httpclient.Response) Category {
	if resp.Failed() {
		if isTimeout(resp.TransportError) {
			return Timeout
		}
		return Transport
	}
	switch {
	case resp.StatusCode >= 500:
		return ServerError
	case resp.StatusCode >= 400:
		return ClientError
	default:
		return Other
	}
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// Exemplar is one representative failing body kept per category.
type Exemplar struct {
	Route       string
	Environment string
	Body        string
}

// Summary is the aggregated taxonomy counts across a run: total per
// category, broken down by route and by environment, plus one exemplar
// body per category.
type Summary struct {
	Counts        map[Category]int
	ByRoute       map[string]map[Category]int
	ByEnvironment map[string]map[Category]int
	Exemplars     map[Category]Exemplar
}

// Summarize classifies every failing entry and aggregates the result.
// Entries whose response is not an error are ignored, so callers may pass
// every executed cell without pre-filtering.
func Summarize(entries []Entry) Summary {
	summary := Summary{
		Counts:        make(map[Category]int),
		ByRoute:       make(map[string]map[Category]int),
		ByEnvironment: make(map[string]map[Category]int),
		Exemplars:     make(map[Category]Exemplar),
	}

	for _, e := range entries {
		if !IsError(e.Response) {
			continue
		}
		cat := Classify(e.Response)
		summary.Counts[cat]++

		if summary.ByRoute[e.Route] == nil {
			summary.ByRoute[e.Route] = make(map[Category]int)
		}
		summary.ByRoute[e.Route][cat]++

		if summary.ByEnvironment[e.Environment] == nil {
			summary.ByEnvironment[e.Environment] = make(map[Category]int)
		}
		summary.ByEnvironment[e.Environment][cat]++

		if _, exists := summary.Exemplars[cat]; !exists {
			body := string(e.Response.Body)
			if e.Response.Failed() {
				body = e.Response.TransportError.Error()
			}
			summary.Exemplars[cat] = Exemplar{Route: e.Route, Environment: e.Environment, Body: body}
		}
	}

	return summary
}
