package substitute

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(ident string) (string, bool) {
		v, ok := m[ident]
		return v, ok
	}
}

func TestSubstitute_Basic(t *testing.T) {
	out, err := Substitute("/users/{id}", lookupFrom(map[string]string{"id": "42"}), Options{})
	require.NoError(t, err)
	require.Equal(t, "/users/42", out)
}

func TestSubstitute_EncodeQuery(t *testing.T) {
	out, err := Substitute("/search?q={q}", lookupFrom(map[string]string{"q": "a b&c"}), Options{Encode: EncodeQuery})
	require.NoError(t, err)
	require.Equal(t, "/search?q=a+b%26c", out)
}

func TestSubstitute_EncodePath(t *testing.T) {
	out, err := Substitute("/q/{term}", lookupFrom(map[string]string{"term": "a b"}), Options{Encode: EncodePath})
	require.NoError(t, err)
	require.Equal(t, "/q/a%20b", out)
}

func TestSubstitute_LiteralEscape(t *testing.T) {
	out, err := Substitute("{{not a placeholder}", lookupFrom(nil), Options{})
	require.NoError(t, err)
	require.Equal(t, "{not a placeholder}", out)
}

func TestSubstitute_StrictMissing(t *testing.T) {
	_, err := Substitute("/users/{id}", lookupFrom(nil), Options{Strict: true})
	require.Error(t, err)
	var missing *MissingPlaceholderError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "id", missing.Ident)
}

func TestSubstitute_NonStrictLeavesLiteral(t *testing.T) {
	out, err := Substitute("/users/{id}", lookupFrom(nil), Options{})
	require.NoError(t, err)
	require.Equal(t, "/users/{id}", out)
}

func TestSubstitute_NoNestedSubstitution(t *testing.T) {
	out, err := Substitute("{outer}", lookupFrom(map[string]string{"outer": "{inner}", "inner": "nope"}), Options{})
	require.NoError(t, err)
	require.Equal(t, "{inner}", out)
}

func TestPlaceholders(t *testing.T) {
	got := Placeholders("/users/{id}/sites/{siteId}?x={id}")
	require.Equal(t, []string{"id", "siteId"}, got)
}

func TestPlaceholders_IgnoresEscapes(t *testing.T) {
	got := Placeholders("{{literal}} {real}")
	require.Equal(t, []string{"real"}, got)
}
