// Package service implements the per-request rewriting pipeline: decode the
// target from the proxy path, fetch it, transform headers, and for HTML
// responses run the element, script, and spoof passes over the body.
package service

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"origin-proxy-go/internal/client"
	"origin-proxy-go/internal/config"
	"origin-proxy-go/internal/metrics"
	"origin-proxy-go/internal/model"
	"origin-proxy-go/internal/proxyurl"
	"origin-proxy-go/internal/rewrite"
)

// droppedRequestHeaders are removed from the outbound request. Accept-Encoding
// is dropped so the transport negotiates and transparently decodes gzip
// itself; the rewrite passes need plaintext bodies.
var droppedRequestHeaders = []string{
	"Accept-Encoding",
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ProxyService orchestrates one stateless pipeline execution per request.
type ProxyService struct {
	client  *client.UpstreamClient
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewProxyService creates a ProxyService. The metrics parameter is optional;
// pass nil to disable rewrite metrics recording.
func NewProxyService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *ProxyService {
	return &ProxyService{
		client:  c,
		cfg:     cfg,
		logger:  logger.With("component", "proxy_service"),
		metrics: m,
	}
}

// Forward decodes the target embedded in the request path, fetches it, and
// returns the transformed response. Decoding failures surface as
// proxyurl.ErrInvalidTargetURL; transport failures are wrapped fetch errors.
// For streamed responses the caller is responsible for closing the body.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	rawURL, err := proxyurl.Decode(pr.Path, s.cfg.Proxy.DefaultTarget)
	if err != nil {
		return nil, err
	}
	target, err := proxyurl.ParseTarget(rawURL)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("forwarding request",
		"method", pr.Method,
		"target", target.Host(),
	)

	var body io.Reader
	if pr.Method != http.MethodGet && pr.Method != http.MethodHead {
		body = pr.Body
	}

	resp, err := s.client.Fetch(pr.Ctx, pr.Method, rawURL, s.outboundHeaders(pr.Header, target), body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target.Host(), err)
	}
	resp.Target = target

	rewrite.TransformHeaders(resp.Header, target)

	if !isHTML(resp.Header.Get("Content-Type")) {
		return resp, nil
	}

	doc, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	resp.Body = nil
	if err != nil {
		return nil, fmt.Errorf("read %s body: %w", target.Host(), err)
	}

	rewritten, refs := rewrite.RewriteDocument(doc, target)
	text, patched := rewrite.PatchInlineScripts(string(rewritten), target, pr.ProxyOrigin)
	if !s.cfg.Proxy.DisableSpoof {
		text = rewrite.InjectSpoof(text, target)
	}
	resp.Document = []byte(text)

	// The body length changed; the dispatcher recomputes it.
	resp.Header.Del("Content-Length")

	if s.metrics != nil {
		s.metrics.DocumentsRewritten.Inc()
		s.metrics.ReferencesRewritten.Add(float64(refs + patched))
	}

	return resp, nil
}

// outboundHeaders copies the inbound headers, drops the ones that must not
// travel upstream, forces Host to the target host, and de-proxies a Referer
// that points back into the proxy namespace so the upstream sees the URL it
// actually expects.
func (s *ProxyService) outboundHeaders(src http.Header, target proxyurl.Target) http.Header {
	dst := make(http.Header, len(src))
	for key, vals := range src {
		dst[http.CanonicalHeaderKey(key)] = vals
	}
	for _, key := range droppedRequestHeaders {
		dst.Del(key)
	}
	dst.Set("Host", target.Host())

	if ref := dst.Get("Referer"); ref != "" {
		if u, err := url.Parse(ref); err == nil && proxyurl.IsProxyPath(u.EscapedPath()) {
			if decoded, err := proxyurl.Decode(u.EscapedPath(), ""); err == nil {
				dst.Set("Referer", decoded)
			}
		}
	}

	return dst
}

// isHTML reports whether the rewrite passes apply to this content type.
func isHTML(contentType string) bool {
	return strings.Contains(contentType, "text/html")
}
