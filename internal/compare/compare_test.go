package compare

import (
	"testing"

	"github.com/l0p7/httpdiff/internal/config"
	"github.com/l0p7/httpdiff/internal/httpclient"
	"github.com/stretchr/testify/require"
)

func jsonResp(status int, body string) httpclient.Response {
	return httpclient.Response{
		StatusCode: status,
		Headers:    map[string][]string{"Content-Type": {"application/json"}},
		Body:       []byte(body),
	}
}

func TestCompare_IdenticalJSON(t *testing.T) {
	c := New(nil)
	ran := map[string]httpclient.Response{
		"A": jsonResp(200, `{"name":"x"}`),
		"B": jsonResp(200, `{"name":"x"}`),
	}
	res := c.Compare("u/{id}", config.UserData{Columns: map[string]string{"id": "1"}}, "A", ran, []string{"A", "B"})
	require.True(t, res.IsIdentical)
	require.Empty(t, res.Differences)
	require.Equal(t, map[string]int{"A": 200, "B": 200}, res.StatusCodes)
}

func TestCompare_StatusDivergence(t *testing.T) {
	c := New(nil)
	ran := map[string]httpclient.Response{
		"A": jsonResp(200, `{"name":"x"}`),
		"B": jsonResp(500, `{"error":"boom"}`),
	}
	res := c.Compare("u", config.UserData{}, "A", ran, []string{"A", "B"})
	require.True(t, res.HasErrors)
	require.Equal(t, map[string]string{"B": `{"error":"boom"}`}, res.ErrorBodies)

	var found bool
	for _, d := range res.Differences {
		if d.Kind == KindStatusDiffers {
			found = true
			require.Equal(t, "A", d.EnvA)
			require.Equal(t, 200, d.CodeA)
			require.Equal(t, "B", d.EnvB)
			require.Equal(t, 500, d.CodeB)
		}
	}
	require.True(t, found)
}

func TestCompare_JSONFieldDiffProducesPointer(t *testing.T) {
	c := New(nil)
	ran := map[string]httpclient.Response{
		"A": jsonResp(200, `{"k":1,"v":2}`),
		"B": jsonResp(200, `{"k":1,"v":3}`),
	}
	res := c.Compare("u", config.UserData{}, "A", ran, []string{"A", "B"})
	require.Len(t, res.Differences, 1)
	require.Equal(t, KindBodyDiffers, res.Differences[0].Kind)
	require.Equal(t, []string{"/v"}, res.Differences[0].JSONPointerPaths)
}

func TestCompare_IgnoredHeaderByDefault(t *testing.T) {
	c := New(nil)
	a := jsonResp(200, `{"ok":true}`)
	a.Headers["Date"] = []string{"Mon, 01 Jan 2024 00:00:00 GMT"}
	b := jsonResp(200, `{"ok":true}`)
	b.Headers["Date"] = []string{"Tue, 02 Jan 2024 00:00:00 GMT"}

	ran := map[string]httpclient.Response{"A": a, "B": b}
	res := c.Compare("u", config.UserData{}, "A", ran, []string{"A", "B"})
	require.True(t, res.IsIdentical)
}

func TestCompare_NonDefaultHeaderDiffers(t *testing.T) {
	c := New(nil)
	a := jsonResp(200, `{"ok":true}`)
	a.Headers["X-Env"] = []string{"prod"}
	b := jsonResp(200, `{"ok":true}`)
	b.Headers["X-Env"] = []string{"staging"}

	ran := map[string]httpclient.Response{"A": a, "B": b}
	res := c.Compare("u", config.UserData{}, "A", ran, []string{"A", "B"})
	require.False(t, res.IsIdentical)
	require.Equal(t, KindHeaderDiffers, res.Differences[0].Kind)
	require.Equal(t, map[string]string{"A": "prod", "B": "staging"}, res.Differences[0].ValuesByEnv)
}

func TestCompare_PartialParticipationProducesOnlyInEnvironment(t *testing.T) {
	c := New(nil)
	ran := map[string]httpclient.Response{"A": jsonResp(200, `{}`)}
	res := c.Compare("u", config.UserData{}, "A", ran, []string{"A", "B"})
	require.False(t, res.IsIdentical)

	var kinds []string
	for _, d := range res.Differences {
		if d.Kind == KindOnlyInEnvironment {
			kinds = append(kinds, d.Env+":"+d.Reason)
		}
	}
	require.ElementsMatch(t, []string{"A:ran", "B:skipped"}, kinds)
}

func TestCompare_FullySkippedIsIdenticalWithNoResponses(t *testing.T) {
	c := New(nil)
	res := c.Compare("u", config.UserData{}, "A", map[string]httpclient.Response{}, []string{"A", "B"})
	require.True(t, res.IsIdentical)
	require.Empty(t, res.Differences)
}

func TestCompare_MissingReferenceIsParticipationDifference(t *testing.T) {
	c := New(nil)
	ran := map[string]httpclient.Response{"B": jsonResp(200, `{}`)}
	res := c.Compare("u", config.UserData{}, "A", ran, []string{"A", "B"})
	require.False(t, res.IsIdentical)
	require.Len(t, res.Differences, 2)
	for _, d := range res.Differences {
		require.Equal(t, KindOnlyInEnvironment, d.Kind)
	}
}

func TestCompare_TextBodyUnifiedDiff(t *testing.T) {
	c := New(nil)
	ran := map[string]httpclient.Response{
		"A": {StatusCode: 200, Body: []byte("line1\nline2\n")},
		"B": {StatusCode: 200, Body: []byte("line1\nline2-changed\n")},
	}
	res := c.Compare("u", config.UserData{}, "A", ran, []string{"A", "B"})
	require.Len(t, res.Differences, 1)
	require.Equal(t, KindBodyDiffers, res.Differences[0].Kind)
	require.Contains(t, res.Differences[0].UnifiedDiff, "-line2")
	require.Contains(t, res.Differences[0].UnifiedDiff, "+line2-changed")
}

func TestCompare_SelfComparisonIsIdentical(t *testing.T) {
	c := New(nil)
	r := jsonResp(200, `{"a":[1,2,{"b":"x"}]}`)
	ran := map[string]httpclient.Response{"A": r, "B": r}
	res := c.Compare("u", config.UserData{}, "A", ran, []string{"A", "B"})
	require.True(t, res.IsIdentical)
}
