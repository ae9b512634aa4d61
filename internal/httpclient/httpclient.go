// Package httpclient executes a rendered request against one environment
// and captures a uniform Response, converting transport failures into a
// synthetic response rather than propagating an error up the call stack.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/l0p7/httpdiff/internal/reqbuild"
	"moul.io/http2curl/v2"
)

// Response is the normalised outcome of one request, whether it reached the
// backend or failed before a status line was ever read.
type Response struct {
	StatusCode int
	Headers    map[string][]string
	Body       []byte
	URL        string
	CurlCmd    string
	Duration   time.Duration

	// TransportError holds the underlying network/timeout failure when the
	// request never produced a response. StatusCode is 0 in that case.
	TransportError error
}

// Failed reports whether the request never reached the backend.
func (r Response) Failed() bool {
	return r.TransportError != nil
}

// Client executes rendered requests with a configured timeout and redirect
// policy.
type Client struct {
	http *http.Client
}

// New builds a Client honouring the given timeout and redirect policy.
func New(timeout time.Duration, followRedirects bool) *Client {
	c := &http.Client{Timeout: timeout}
	if !followRedirects {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return &Client{http: c}
}

// Do issues rendered against the client. Transport-level failures (DNS,
// connection refused, timeout) are captured in Response.TransportError
// rather than returned as an error, so callers can treat every executed
// request uniformly for comparison.
func (c *Client) Do(ctx context.Context, rendered reqbuild.Rendered) Response {
	var body io.Reader
	if rendered.Body != "" {
		body = strings.NewReader(rendered.Body)
	}

	req, err := http.NewRequestWithContext(ctx, rendered.Method, rendered.URL, body)
	if err != nil {
		return Response{URL: rendered.URL, TransportError: fmt.Errorf("httpclient: build request: %w", err)}
	}
	for _, name := range sortedKeys(rendered.Headers) {
		req.Header.Set(name, rendered.Headers[name])
	}

	curlCmd := curlCommand(req, rendered.Body)

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return Response{
			URL:            rendered.URL,
			CurlCmd:        curlCmd,
			Duration:       elapsed,
			TransportError: err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{
			URL:            rendered.URL,
			CurlCmd:        curlCmd,
			Duration:       elapsed,
			TransportError: fmt.Errorf("httpclient: read body: %w", err),
		}
	}

	finalURL := rendered.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return Response{
		StatusCode: resp.StatusCode,
		Headers:    map[string][]string(resp.Header),
		Body:       data,
		URL:        finalURL,
		CurlCmd:    curlCmd,
		Duration:   elapsed,
	}
}

// curlCommand reconstructs the equivalent curl invocation for req, preferring
// http2curl and falling back to a hand-rolled rendering (method, then one -H
// per header, then -d for the body, URL last) if http2curl cannot represent
// the request.
func curlCommand(req *http.Request, body string) string {
	if cmd, err := http2curl.GetCurlCommand(req); err == nil && cmd != nil {
		return cmd.String()
	}
	return fallbackCurlCommand(req, body)
}

// fallbackCurlCommand hand-renders a curl invocation when http2curl cannot
// represent the request: curl, method flag (omitted for GET), one -H per
// header, -d for the body, URL last.
func fallbackCurlCommand(req *http.Request, body string) string {
	var parts []string
	parts = append(parts, "curl")
	if req.Method != http.MethodGet {
		parts = append(parts, "-X", req.Method)
	}
	for _, name := range sortedKeys(headerMap(req.Header)) {
		parts = append(parts, "-H", fmt.Sprintf("'%s: %s'", name, req.Header.Get(name)))
	}
	if body != "" {
		parts = append(parts, "-d", fmt.Sprintf("'%s'", body))
	}
	parts = append(parts, fmt.Sprintf("'%s'", req.URL.String()))
	return strings.Join(parts, " ")
}

func headerMap(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name := range h {
		out[name] = h.Get(name)
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
