// Package rewrite transforms upstream responses so every reference inside
// them keeps flowing through the proxy's own origin: response headers, HTML
// element attributes, a narrow set of inline script navigation patterns, and
// an injected script that spoofs the page's apparent origin at runtime.
package rewrite

import (
	"net/http"
	"regexp"

	"origin-proxy-go/internal/proxyurl"
)

// securityHeaders are removed from every response. They would be evaluated
// against the upstream origin and break the spoofed-origin page when it is
// embedded or scripted.
var securityHeaders = []string{
	"Content-Security-Policy",
	"X-Frame-Options",
	"X-Content-Type-Options",
}

// cookieDomainAttr matches a Domain attribute inside a Set-Cookie value, up
// to the next ';' or end of string.
var cookieDomainAttr = regexp.MustCompile(`(?i);[ \t]*domain=[^;]*`)

// TransformHeaders rewrites an upstream response header set in place. Every
// Set-Cookie entry loses its Domain attribute, turning it into a host-only
// cookie scoped to the proxy's own origin (the original Domain names the
// upstream host, which the client is not actually visiting). A Location
// header is re-encoded into the proxy namespace; a Location that does not
// resolve passes through unchanged rather than being dropped. The security
// headers are deleted unconditionally. Applied to every response regardless
// of content type.
func TransformHeaders(h http.Header, target proxyurl.Target) {
	if cookies := h.Values("Set-Cookie"); len(cookies) > 0 {
		stripped := make([]string, len(cookies))
		for i, c := range cookies {
			stripped[i] = cookieDomainAttr.ReplaceAllString(c, "")
		}
		h["Set-Cookie"] = stripped
	}

	if loc := h.Get("Location"); loc != "" {
		h.Set("Location", target.RewriteReference(loc))
	}

	for _, name := range securityHeaders {
		h.Del(name)
	}
}
