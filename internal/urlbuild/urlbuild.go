// Package urlbuild resolves a route's target URL for one environment: base
// URL selection, path placeholder substitution, and query parameter merge.
package urlbuild

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/l0p7/httpdiff/internal/config"
	"github.com/l0p7/httpdiff/internal/scope"
	"github.com/l0p7/httpdiff/internal/substitute"
)

// BaseURL picks the base URL a route uses for envName: the route's
// per-environment override when present, otherwise the environment's own
// baseUrl.
func BaseURL(route config.Route, envName string, env config.Environment) string {
	if override, ok := route.BaseURLs[envName]; ok && strings.TrimSpace(override) != "" {
		return override
	}
	return env.BaseURL
}

// Build resolves the full request URL for route against one environment and
// scope: substitutes `{ident}` tokens into the path (URL-encoded, strict),
// joins it to the base URL, and merges query parameters with route params
// taking precedence over global ones.
func Build(route config.Route, globalParams map[string]string, base string, sc *scope.Scope) (string, error) {
	path, err := substitute.Substitute(route.Path, sc.Lookup, substitute.Options{Encode: substitute.EncodePath, Strict: true})
	if err != nil {
		return "", fmt.Errorf("urlbuild: route %s path: %w", route.Name, err)
	}

	joined, err := joinURL(base, path)
	if err != nil {
		return "", fmt.Errorf("urlbuild: route %s: %w", route.Name, err)
	}

	merged := mergeParams(globalParams, route.Params)
	if len(merged) == 0 {
		return joined.String(), nil
	}

	q := joined.Query()
	for _, name := range sortedKeys(merged) {
		rendered, err := substitute.Substitute(merged[name], sc.Lookup, substitute.Options{Strict: true})
		if err != nil {
			return "", fmt.Errorf("urlbuild: route %s param %s: %w", route.Name, name, err)
		}
		q.Set(name, rendered)
	}
	joined.RawQuery = q.Encode()
	return joined.String(), nil
}

// joinURL appends path to base, tolerating either side's leading/trailing
// slash so "https://api.example.com" + "/users/1" and
// "https://api.example.com/" + "users/1" both produce the same result.
func joinURL(base, path string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", base, err)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	escaped := u.EscapedPath() + path
	if unescaped, err := url.PathUnescape(escaped); err == nil {
		u.Path, u.RawPath = unescaped, escaped
	} else {
		u.Path = u.Path + path
	}
	return u, nil
}

// mergeParams overlays route params on top of global params, route values
// winning on key collision.
func mergeParams(global, route map[string]string) map[string]string {
	merged := make(map[string]string, len(global)+len(route))
	for k, v := range global {
		merged[k] = v
	}
	for k, v := range route {
		merged[k] = v
	}
	return merged
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
