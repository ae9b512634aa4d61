// Package substitute implements the placeholder substitution grammar used
// throughout request construction: `{name}` tokens resolved against a
// scope, with `{{` producing a literal `{` and no nested substitution.
//
// This is deliberately not text/template: the grammar is a single-brace
// token scan, not Go's double-brace action syntax.
package substitute

import (
	"fmt"
	"net/url"
	"strings"
)

// Encoding selects how a substituted value is percent-encoded, since the
// escaping rules differ by where the result is embedded in a URL: a path
// segment has no special meaning for `+`, while a query value does.
type Encoding int

const (
	// EncodeNone substitutes the raw value verbatim.
	EncodeNone Encoding = iota
	// EncodePath escapes a value for use inside a URL path segment
	// (net/url.PathEscape — space becomes %20, not +).
	EncodePath
	// EncodeQuery escapes a value for use inside a URL query string
	// (net/url.QueryEscape — space becomes +).
	EncodeQuery
)

// Options controls how substitution treats unresolved and resolved tokens.
type Options struct {
	// Encode selects the percent-encoding applied to each substituted
	// value. Zero value is EncodeNone.
	Encode Encoding
	// Strict, when true, turns an unresolved placeholder into a
	// MissingPlaceholderError instead of leaving the token literal.
	Strict bool
}

// MissingPlaceholderError reports a `{name}` token that could not be
// resolved against the scope under strict substitution.
type MissingPlaceholderError struct {
	Ident     string
	Available []string
}

func (e *MissingPlaceholderError) Error() string {
	return fmt.Sprintf("substitute: missing placeholder %q (available: %s)", e.Ident, strings.Join(e.Available, ", "))
}

func isIdentChar(r byte) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-' || r == '.':
		return true
	}
	return false
}

// Substitute scans template for `{ident}` tokens and replaces each with the
// corresponding value from scope. lookup must return the value and whether
// it was found.
func Substitute(template string, lookup func(ident string) (string, bool), opts Options) (string, error) {
	var out strings.Builder
	out.Grow(len(template))

	i := 0
	n := len(template)
	for i < n {
		c := template[i]
		if c != '{' {
			out.WriteByte(c)
			i++
			continue
		}
		// Literal `{{` escape.
		if i+1 < n && template[i+1] == '{' {
			out.WriteByte('{')
			i += 2
			continue
		}
		end := strings.IndexByte(template[i+1:], '}')
		if end < 0 {
			// No closing brace: treat the rest as literal text.
			out.WriteString(template[i:])
			break
		}
		ident := template[i+1 : i+1+end]
		if ident == "" || !isValidIdent(ident) {
			// Not a placeholder token; emit literally and continue scanning
			// just past the opening brace.
			out.WriteByte('{')
			i++
			continue
		}
		value, found := lookup(ident)
		if !found {
			if opts.Strict {
				return "", &MissingPlaceholderError{Ident: ident, Available: []string{}}
			}
			out.WriteString(template[i : i+1+end+1])
			i = i + 1 + end + 1
			continue
		}
		switch opts.Encode {
		case EncodePath:
			out.WriteString(url.PathEscape(value))
		case EncodeQuery:
			out.WriteString(url.QueryEscape(value))
		default:
			out.WriteString(value)
		}
		i = i + 1 + end + 1
	}
	return out.String(), nil
}

func isValidIdent(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return true
}

// Placeholders returns the set of distinct `{ident}` names referenced by
// template, ignoring `{{` escapes. Used by config validation to confirm
// every placeholder is resolvable before any request is issued.
func Placeholders(template string) []string {
	seen := make(map[string]struct{})
	var out []string
	i := 0
	n := len(template)
	for i < n {
		c := template[i]
		if c != '{' {
			i++
			continue
		}
		if i+1 < n && template[i+1] == '{' {
			i += 2
			continue
		}
		end := strings.IndexByte(template[i+1:], '}')
		if end < 0 {
			break
		}
		ident := template[i+1 : i+1+end]
		if ident != "" && isValidIdent(ident) {
			if _, ok := seen[ident]; !ok {
				seen[ident] = struct{}{}
				out = append(out, ident)
			}
		}
		i = i + 1 + end + 1
	}
	return out
}
