// Package proxyurl implements the /proxy/<url> path codec: embedding an
// absolute target URL inside the proxy's own path namespace and resolving
// in-page references back into that namespace.
package proxyurl

import (
	"errors"
	"net/url"
	"strings"
)

// PathPrefix is the path namespace under which target URLs are embedded.
const PathPrefix = "/proxy/"

// ErrInvalidTargetURL is returned when the URL embedded in a proxy path
// cannot be decoded or does not parse.
var ErrInvalidTargetURL = errors.New("invalid target URL")

// Encode embeds an absolute URL into the proxy path namespace as
// /proxy/<percent-encoded-url>.
func Encode(raw string) string {
	return PathPrefix + url.PathEscape(raw)
}

// Decode extracts the target URL embedded in a proxy path. An empty embedded
// segment yields fallback. A decoded value without an http(s) scheme gets
// "https://" prepended before validation.
func Decode(path, fallback string) (string, error) {
	enc := strings.TrimPrefix(path, "/proxy")
	enc = strings.TrimPrefix(enc, "/")

	raw, err := url.PathUnescape(enc)
	if err != nil {
		return "", ErrInvalidTargetURL
	}
	if raw == "" {
		raw = fallback
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", ErrInvalidTargetURL
	}
	return raw, nil
}

// IsProxyPath reports whether path falls inside the proxy namespace.
func IsProxyPath(path string) bool {
	return path == "/proxy" || strings.HasPrefix(path, PathPrefix)
}

// Target describes the upstream origin one request resolves to. It is built
// once per request and is immutable for the request's duration.
type Target struct {
	base *url.URL
}

// ParseTarget builds a Target from an absolute http(s) URL.
func ParseTarget(raw string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Target{}, ErrInvalidTargetURL
	}
	return Target{base: u}, nil
}

// URL returns the target's full URL string.
func (t Target) URL() string { return t.base.String() }

// Scheme returns the target's URL scheme.
func (t Target) Scheme() string { return t.base.Scheme }

// Host returns the target's host, including any port.
func (t Target) Host() string { return t.base.Host }

// Hostname returns the target's host without any port.
func (t Target) Hostname() string { return t.base.Hostname() }

// Origin returns the target's origin as scheme://host.
func (t Target) Origin() string { return t.base.Scheme + "://" + t.base.Host }

// RewriteReference resolves a reference found in page content against the
// target and re-encodes it into the proxy path namespace. Relative paths,
// root-relative paths, protocol-relative //host/path references, and
// query/fragment-only references all resolve against the target as base.
// References that fail to resolve, or whose resolved scheme is not http(s)
// (mailto:, javascript:, data:, ...), are returned unchanged.
func (t Target) RewriteReference(raw string) string {
	if raw == "" {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	resolved := t.base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return raw
	}
	return Encode(resolved.String())
}
