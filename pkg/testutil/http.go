// Package testutil provides common test utilities for handler and integration tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"customers/pkg/platform/httputil"
)

// Response is a captured HTTP response with the body already read.
type Response struct {
	t      *testing.T
	Code   int
	Header http.Header
	Body   string
}

// Error decodes the body as the standard error envelope.
func (r *Response) Error() httputil.ErrorResponse {
	r.t.Helper()
	var resp httputil.ErrorResponse
	require.NoError(r.t, json.Unmarshal([]byte(r.Body), &resp), "failed to unmarshal error response: %s", r.Body)
	return resp
}

// NewJSONRequest creates an HTTP request with JSON body.
// The body is marshaled to JSON automatically.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewRequest creates a simple HTTP request without a body.
func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

// NewRequestWithBody creates an HTTP request with a raw JSON string body.
func NewRequestWithBody(t *testing.T, method, path string, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// Do executes a request against a handler and captures the response.
func Do(t *testing.T, handler http.Handler, req *http.Request) *Response {
	t.Helper()
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return &Response{t: t, Code: rr.Code, Header: rr.Header(), Body: rr.Body.String()}
}

// Decode unmarshals the response body into T, failing the test on error.
func Decode[T any](t *testing.T, resp *Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &out), "failed to unmarshal response: %s", resp.Body)
	return out
}
