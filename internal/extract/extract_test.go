package extract

import (
	"testing"

	"github.com/l0p7/httpdiff/internal/config"
	"github.com/l0p7/httpdiff/internal/httpclient"
	"github.com/stretchr/testify/require"
)

func defStr(s string) *string { return &s }

func TestApply_JSONPath(t *testing.T) {
	resp := httpclient.Response{Body: []byte(`{"token":"abc123","user":{"id":7}}`)}
	rules := []config.ValueExtractionRule{
		{Name: "token", Kind: config.ExtractJSONPath, Source: "$.token"},
		{Name: "id", Kind: config.ExtractJSONPath, Source: "$.user.id"},
	}
	results := Apply(rules, resp)
	require.Equal(t, "abc123", results[0].Value)
	require.True(t, results[0].Found)
	require.Equal(t, "7", results[1].Value)
}

func TestApply_Header(t *testing.T) {
	resp := httpclient.Response{Headers: map[string][]string{"X-Request-Id": {"r-1"}}}
	rules := []config.ValueExtractionRule{{Name: "rid", Kind: config.ExtractHeader, Source: "x-request-id"}}
	results := Apply(rules, resp)
	require.Equal(t, "r-1", results[0].Value)
	require.True(t, results[0].Found)
}

func TestApply_Status(t *testing.T) {
	resp := httpclient.Response{StatusCode: 201}
	rules := []config.ValueExtractionRule{{Name: "code", Kind: config.ExtractStatus}}
	results := Apply(rules, resp)
	require.Equal(t, "201", results[0].Value)
}

func TestApply_RegexCapturesGroup(t *testing.T) {
	resp := httpclient.Response{Body: []byte(`token=abc123;expires=60`)}
	rules := []config.ValueExtractionRule{{Name: "token", Kind: config.ExtractRegex, Source: `token=(\w+)`}}
	results := Apply(rules, resp)
	require.Equal(t, "abc123", results[0].Value)
}

func TestApply_RegexNoGroupUsesFullMatch(t *testing.T) {
	resp := httpclient.Response{Body: []byte(`status:ok`)}
	rules := []config.ValueExtractionRule{{Name: "m", Kind: config.ExtractRegex, Source: `status:\w+`}}
	results := Apply(rules, resp)
	require.Equal(t, "status:ok", results[0].Value)
}

func TestApply_MissingFallsBackToDefault(t *testing.T) {
	resp := httpclient.Response{Body: []byte(`{}`)}
	rules := []config.ValueExtractionRule{
		{Name: "token", Kind: config.ExtractJSONPath, Source: "$.token", Default: defStr("none")},
	}
	results := Apply(rules, resp)
	require.Equal(t, "none", results[0].Value)
	require.False(t, results[0].Found)
}

func TestApply_MissingNoDefaultIsEmpty(t *testing.T) {
	resp := httpclient.Response{Body: []byte(`{}`)}
	rules := []config.ValueExtractionRule{{Name: "token", Kind: config.ExtractJSONPath, Source: "$.token"}}
	results := Apply(rules, resp)
	require.Equal(t, "", results[0].Value)
	require.False(t, results[0].Found)
}

func TestApply_InvalidJSONBodyIsFailOpen(t *testing.T) {
	resp := httpclient.Response{Body: []byte(`not json`)}
	rules := []config.ValueExtractionRule{{Name: "token", Kind: config.ExtractJSONPath, Source: "$.token", Default: defStr("fallback")}}
	results := Apply(rules, resp)
	require.Equal(t, "fallback", results[0].Value)
}

func TestResult_Contributes(t *testing.T) {
	require.True(t, Result{Found: true}.Contributes())
	require.True(t, Result{Defaulted: true}.Contributes())
	require.False(t, Result{}.Contributes())
}
