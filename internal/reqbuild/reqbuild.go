// Package reqbuild assembles the rendered request pieces (method, headers,
// body) for one route against one environment and scope.
package reqbuild

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/l0p7/httpdiff/internal/config"
	"github.com/l0p7/httpdiff/internal/scope"
	"github.com/l0p7/httpdiff/internal/substitute"
)

// Rendered is the fully resolved, substituted request ready to be sent.
type Rendered struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// Headers merges global, environment, and route headers (route wins) and
// substitutes `{ident}` placeholders into each value. Header names are
// treated case-insensitively on merge, matching net/http's own header
// canonicalization.
func Headers(global, env, route map[string]string, sc *scope.Scope) (map[string]string, error) {
	merged := make(map[string]string)
	layers := []map[string]string{global, env, route}
	for _, layer := range layers {
		for _, name := range sortedKeys(layer) {
			merged[http.CanonicalHeaderKey(name)] = layer[name]
		}
	}

	rendered := make(map[string]string, len(merged))
	for _, name := range sortedKeys(merged) {
		value, err := substitute.Substitute(merged[name], sc.Lookup, substitute.Options{Strict: true})
		if err != nil {
			return nil, fmt.Errorf("reqbuild: header %s: %w", name, err)
		}
		rendered[name] = value
	}
	return rendered, nil
}

// Body substitutes `{ident}` placeholders into a route's raw body template.
// An empty template yields an empty body, with no placeholder scan.
func Body(template string, sc *scope.Scope) (string, error) {
	if template == "" {
		return "", nil
	}
	body, err := substitute.Substitute(template, sc.Lookup, substitute.Options{Strict: true})
	if err != nil {
		return "", fmt.Errorf("reqbuild: body: %w", err)
	}
	return body, nil
}

// Method normalises a configured HTTP method to its canonical upper-case
// form, defaulting to GET when unset.
func Method(route config.Route) string {
	m := strings.ToUpper(strings.TrimSpace(route.Method))
	if m == "" {
		return http.MethodGet
	}
	return m
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
