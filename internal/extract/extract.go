// Package extract pulls a named value out of an executed response so it can
// be fed into dependent routes and execution conditions.
package extract

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/l0p7/httpdiff/internal/config"
	"github.com/l0p7/httpdiff/internal/httpclient"
	"github.com/yalp/jsonpath"
)

// Result is the outcome of one extraction rule: the resolved value, or a
// fallback to the rule's configured default when the source couldn't be
// read. Extraction is fail-open — a missing value never aborts the run.
type Result struct {
	Name      string
	Value     string
	Found     bool
	Defaulted bool
}

// Contributes reports whether this result should be bound into a scope:
// either the rule resolved its source directly, or it fell back to a
// configured default. A rule with neither fails open and contributes
// nothing, per spec.
func (r Result) Contributes() bool {
	return r.Found || r.Defaulted
}

// Apply runs every rule in order against resp, returning one Result per
// rule. Values never block a run: a rule that can't resolve its source
// falls back to its configured default (or the empty string) and Found is
// false.
func Apply(rules []config.ValueExtractionRule, resp httpclient.Response) []Result {
	results := make([]Result, 0, len(rules))
	for _, rule := range rules {
		results = append(results, apply(rule, resp))
	}
	return results
}

func apply(rule config.ValueExtractionRule, resp httpclient.Response) Result {
	value, found, err := extractOne(rule, resp)
	if err != nil || !found {
		if rule.Default != nil {
			return Result{Name: rule.Name, Value: *rule.Default, Defaulted: true}
		}
		return Result{Name: rule.Name, Value: "", Found: false}
	}
	return Result{Name: rule.Name, Value: value, Found: true}
}

func extractOne(rule config.ValueExtractionRule, resp httpclient.Response) (string, bool, error) {
	switch rule.Kind {
	case config.ExtractStatus:
		return strconv.Itoa(resp.StatusCode), true, nil
	case config.ExtractHeader:
		return extractHeader(resp.Headers, rule.Source)
	case config.ExtractJSONPath:
		return extractJSONPath(resp.Body, rule.Source)
	case config.ExtractRegex:
		return extractRegex(resp.Body, rule.Source)
	default:
		return "", false, fmt.Errorf("extract: unsupported kind %q", rule.Kind)
	}
}

func extractHeader(headers map[string][]string, name string) (string, bool, error) {
	canonical := http.CanonicalHeaderKey(name)
	for k, values := range headers {
		if http.CanonicalHeaderKey(k) == canonical && len(values) > 0 {
			return values[0], true, nil
		}
	}
	return "", false, nil
}

func extractJSONPath(body []byte, path string) (string, bool, error) {
	if len(body) == 0 {
		return "", false, nil
	}
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return "", false, fmt.Errorf("extract: decode json: %w", err)
	}
	value, err := jsonpath.Read(data, path)
	if err != nil {
		return "", false, nil
	}
	return stringify(value), true, nil
}

func extractRegex(body []byte, pattern string) (string, bool, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", false, fmt.Errorf("extract: compile regex %q: %w", pattern, err)
	}
	match := re.FindSubmatch(body)
	if match == nil {
		return "", false, nil
	}
	if len(match) > 1 {
		return string(match[1]), true, nil
	}
	return string(match[0]), true, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return strings.TrimSpace(string(b))
	}
}
