// Package compare implements the C9 comparator: given the responses
// collected for one (route, user) across every environment that actually
// ran, it produces a structured ComparisonResult describing how the
// non-reference environments diverge from the reference. The comparator is
// pure — its output depends only on its inputs and the configured ignored
// headers, never on I/O. The diff style is not configurable: when both
// bodies look like JSON and parse, the body diff is a structural JSON-pointer
// diff; otherwise it is a line diff.
package compare

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/l0p7/httpdiff/internal/config"
	"github.com/l0p7/httpdiff/internal/httpclient"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultIgnoredHeaders are volatile headers excluded from comparison unless
// the caller overrides the set.
var DefaultIgnoredHeaders = []string{"Date", "Server", "X-Request-Id", "Set-Cookie", "ETag"}

// Kind discriminates the tagged Difference variants for JSON output.
type Kind string

const (
	KindStatusDiffers      Kind = "status_differs"
	KindHeaderDiffers      Kind = "header_differs"
	KindBodyDiffers        Kind = "body_differs"
	KindOnlyInEnvironment  Kind = "only_in_environment"
)

// Difference is one structured finding from comparing two environments'
// responses for the same (route, user). Only the fields relevant to Kind
// are populated; the rest are zero/omitted in JSON.
type Difference struct {
	Kind Kind `json:"kind"`

	EnvA  string `json:"env_a,omitempty"`
	CodeA int    `json:"code_a,omitempty"`
	EnvB  string `json:"env_b,omitempty"`
	CodeB int    `json:"code_b,omitempty"`

	Name        string            `json:"name,omitempty"`
	ValuesByEnv map[string]string `json:"values_by_env,omitempty"`

	UnifiedDiff      string   `json:"unified_diff,omitempty"`
	JSONPointerPaths []string `json:"json_pointer_paths,omitempty"`

	// Env and Reason together are the OnlyInEnvironment payload — spec's
	// `OnlyInEnvironment { env, kind }`. Reason is named distinctly from the
	// top-level Kind discriminator since both can't share the JSON key
	// "kind" on the same object; see DESIGN.md.
	Env    string `json:"env,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Response is the JSON-facing view of an executed HTTP response: headers
// are flattened to a single value per name, matching the report's bit-exact
// contract in spec §6.
type Response struct {
	Status      int               `json:"status"`
	Headers     map[string]string `json:"headers"`
	Body        string            `json:"body"`
	URL         string            `json:"url"`
	CurlCommand string            `json:"curl_command"`
}

// FromClientResponse builds the JSON-facing view of a raw httpclient
// Response, keeping only the first value of each header name and decoding
// the body lossily as UTF-8 text (binary responses keep their lossy
// rendering, per spec §4.5).
func FromClientResponse(r httpclient.Response) Response {
	headers := make(map[string]string, len(r.Headers))
	for name, values := range r.Headers {
		if len(values) == 0 {
			continue
		}
		headers[http.CanonicalHeaderKey(name)] = values[0]
	}
	body := string(r.Body)
	if r.Failed() {
		body = r.TransportError.Error()
	}
	return Response{
		Status:      r.StatusCode,
		Headers:     headers,
		Body:        body,
		URL:         r.URL,
		CurlCommand: r.CurlCmd,
	}
}

// Result is the top-level comparison outcome for one (route, user) pair
// across every environment it was asked to run in.
type Result struct {
	RouteName    string            `json:"route_name"`
	UserContext  map[string]string `json:"user_context"`
	Responses    map[string]Response `json:"responses"`
	Differences  []Difference      `json:"differences"`
	IsIdentical  bool              `json:"is_identical"`
	StatusCodes  map[string]int    `json:"status_codes"`
	HasErrors    bool              `json:"has_errors"`
	ErrorBodies  map[string]string `json:"error_bodies,omitempty"`
}

// Comparator diffs responses across environments using a configurable
// ignored-header set.
type Comparator struct {
	ignored map[string]struct{}
}

// New builds a Comparator. A nil or empty ignoredHeaders uses
// DefaultIgnoredHeaders.
func New(ignoredHeaders []string) *Comparator {
	if len(ignoredHeaders) == 0 {
		ignoredHeaders = DefaultIgnoredHeaders
	}
	set := make(map[string]struct{}, len(ignoredHeaders))
	for _, h := range ignoredHeaders {
		set[http.CanonicalHeaderKey(h)] = struct{}{}
	}
	return &Comparator{ignored: set}
}

// Compare builds the ComparisonResult for one (route, user): reference is
// the reference environment's name; ran holds the raw client response for
// every environment that actually executed the route; requestedEnvs is the
// full set of environments the run asked for (some of which may be absent
// from ran because the route's conditions skipped them or it never got a
// chance to run before cancellation).
func (c *Comparator) Compare(routeName string, user config.UserData, reference string, ran map[string]httpclient.Response, requestedEnvs []string) Result {
	res := Result{
		RouteName:   routeName,
		UserContext: user.Columns,
		Responses:   make(map[string]Response, len(ran)),
		StatusCodes: make(map[string]int, len(ran)),
	}

	for _, env := range sortedKeys(ran) {
		resp := ran[env]
		res.Responses[env] = FromClientResponse(resp)
		res.StatusCodes[env] = resp.StatusCode
		if resp.Failed() || resp.StatusCode >= 400 {
			res.HasErrors = true
			if res.ErrorBodies == nil {
				res.ErrorBodies = make(map[string]string)
			}
			res.ErrorBodies[env] = res.Responses[env].Body
		}
	}

	res.Differences = append(res.Differences, participationDifferences(ran, requestedEnvs)...)

	refResp, refRan := ran[reference]
	if refRan {
		for _, env := range sortedKeys(ran) {
			if env == reference {
				continue
			}
			res.Differences = append(res.Differences, c.compareCell(reference, refResp, env, ran[env])...)
		}
	}

	res.IsIdentical = len(res.Differences) == 0
	return res
}

// participationDifferences reports, for a route that ran in some requested
// environments but not all of them, one OnlyInEnvironment entry per
// environment describing whether it ran or was skipped/missing. No such
// entry is produced when every requested environment agrees (all ran, or
// all were skipped).
func participationDifferences(ran map[string]httpclient.Response, requestedEnvs []string) []Difference {
	if len(requestedEnvs) == 0 {
		return nil
	}
	ranCount := 0
	for _, env := range requestedEnvs {
		if _, ok := ran[env]; ok {
			ranCount++
		}
	}
	if ranCount == 0 || ranCount == len(requestedEnvs) {
		return nil
	}

	var diffs []Difference
	envs := append([]string{}, requestedEnvs...)
	sort.Strings(envs)
	for _, env := range envs {
		kind := "skipped"
		if _, ok := ran[env]; ok {
			kind = "ran"
		}
		diffs = append(diffs, Difference{Kind: KindOnlyInEnvironment, Env: env, Reason: kind})
	}
	return diffs
}

func (c *Comparator) compareCell(refEnv string, ref httpclient.Response, env string, resp httpclient.Response) []Difference {
	var diffs []Difference

	if ref.StatusCode != resp.StatusCode {
		diffs = append(diffs, Difference{
			Kind: KindStatusDiffers, EnvA: refEnv, CodeA: ref.StatusCode, EnvB: env, CodeB: resp.StatusCode,
		})
	}

	diffs = append(diffs, c.headerDifferences(refEnv, ref, env, resp)...)
	diffs = append(diffs, c.bodyDifference(refEnv, ref, env, resp)...)
	return diffs
}

func (c *Comparator) headerDifferences(refEnv string, ref httpclient.Response, env string, resp httpclient.Response) []Difference {
	names := make(map[string]struct{})
	for name := range ref.Headers {
		names[http.CanonicalHeaderKey(name)] = struct{}{}
	}
	for name := range resp.Headers {
		names[http.CanonicalHeaderKey(name)] = struct{}{}
	}

	var diffs []Difference
	for _, name := range sortedSet(names) {
		if _, skip := c.ignored[name]; skip {
			continue
		}
		a, aok := firstHeaderValue(ref.Headers, name)
		b, bok := firstHeaderValue(resp.Headers, name)
		if aok == bok && a == b {
			continue
		}
		values := map[string]string{}
		if aok {
			values[refEnv] = a
		}
		if bok {
			values[env] = b
		}
		diffs = append(diffs, Difference{Kind: KindHeaderDiffers, Name: name, ValuesByEnv: values})
	}
	return diffs
}

func (c *Comparator) bodyDifference(refEnv string, ref httpclient.Response, env string, resp httpclient.Response) []Difference {
	refBody, body := string(ref.Body), string(resp.Body)
	if refBody == body {
		return nil
	}

	if looksJSON(ref.Headers, ref.Body) && looksJSON(resp.Headers, resp.Body) {
		var a, b any
		if err := json.Unmarshal(ref.Body, &a); err == nil {
			if err := json.Unmarshal(resp.Body, &b); err == nil {
				paths := diffJSONPaths("", a, b, nil)
				if len(paths) == 0 {
					return nil
				}
				return []Difference{{Kind: KindBodyDiffers, JSONPointerPaths: paths}}
			}
		}
	}

	return []Difference{{Kind: KindBodyDiffers, UnifiedDiff: unifiedLineDiff(refEnv, refBody, env, body)}}
}

// looksJSON reports whether a response should be treated as JSON for the
// body comparison: either it advertises a JSON content-type, or its body
// parses as valid JSON outright.
func looksJSON(headers map[string][]string, body []byte) bool {
	if ct, ok := firstHeaderValue(headers, "Content-Type"); ok && strings.Contains(strings.ToLower(ct), "json") {
		return true
	}
	var v any
	return json.Unmarshal(body, &v) == nil
}

// diffJSONPaths walks a and b structurally, returning one JSON pointer
// (RFC 6901) per differing leaf or shape mismatch. Object key order never
// matters; array element order does.
func diffJSONPaths(pointer string, a, b any, out []string) []string {
	am, aIsMap := a.(map[string]any)
	bm, bIsMap := b.(map[string]any)
	if aIsMap && bIsMap {
		keys := make(map[string]struct{}, len(am)+len(bm))
		for k := range am {
			keys[k] = struct{}{}
		}
		for k := range bm {
			keys[k] = struct{}{}
		}
		for _, k := range sortedSet(keys) {
			av, aok := am[k]
			bv, bok := bm[k]
			child := pointer + "/" + escapePointerToken(k)
			switch {
			case !aok || !bok:
				out = append(out, child)
			default:
				out = diffJSONPaths(child, av, bv, out)
			}
		}
		return out
	}

	aArr, aIsArr := a.([]any)
	bArr, bIsArr := b.([]any)
	if aIsArr && bIsArr {
		n := len(aArr)
		if len(bArr) > n {
			n = len(bArr)
		}
		for i := 0; i < n; i++ {
			child := fmt.Sprintf("%s/%d", pointer, i)
			if i >= len(aArr) || i >= len(bArr) {
				out = append(out, child)
				continue
			}
			out = diffJSONPaths(child, aArr[i], bArr[i], out)
		}
		return out
	}

	if !reflect.DeepEqual(a, b) {
		if pointer == "" {
			pointer = "/"
		}
		out = append(out, pointer)
	}
	return out
}

func escapePointerToken(s string) string {
	s = strings.ReplaceAll(s, "~", "~0")
	s = strings.ReplaceAll(s, "/", "~1")
	return s
}

// unifiedLineDiff renders a unified-style, line-granular diff between two
// text bodies using diffmatchpatch's line-hashing trick: each distinct line
// becomes one "character" so DiffMain operates at line granularity, then
// the result is re-expanded back to text.
func unifiedLineDiff(envA, a, envB, b string) string {
	dmp := diffmatchpatch.New()
	charsA, charsB, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffMain(charsA, charsB, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var out strings.Builder
	fmt.Fprintf(&out, "--- %s\n+++ %s\n", envA, envB)
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(prefix)
			out.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				out.WriteString("\n")
			}
		}
	}
	return out.String()
}

func firstHeaderValue(headers map[string][]string, name string) (string, bool) {
	canon := http.CanonicalHeaderKey(name)
	for k, values := range headers {
		if http.CanonicalHeaderKey(k) == canon && len(values) > 0 {
			return values[0], true
		}
	}
	return "", false
}

func sortedKeys(m map[string]httpclient.Response) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedSet(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
