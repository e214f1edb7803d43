// Package model defines the per-request types passed through the proxy pipeline.
package model

import (
	"context"
	"io"
	"net/http"

	"origin-proxy-go/internal/proxyurl"
)

// ProxyRequest represents a client request to be fetched from the target origin.
// Path carries the escaped request path so the percent-encoded target URL
// embedded in it survives routing intact.
type ProxyRequest struct {
	Ctx    context.Context
	Method string
	Path   string
	Header http.Header
	Body   io.ReadCloser
	// ProxyOrigin is the proxy's own externally visible origin, used where a
	// rewritten reference must be absolute (inline script literals).
	ProxyOrigin string
}

// ProxyResponse represents the transformed upstream response. For HTML
// responses Document holds the fully rewritten markup and Body is nil; for
// everything else Body streams the upstream bytes through untouched.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
	Document   []byte
	Target     proxyurl.Target
}

// IsStream reports whether the response body passes through as a stream.
func (r *ProxyResponse) IsStream() bool { return r.Body != nil }
