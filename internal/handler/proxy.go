package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"origin-proxy-go/internal/config"
	"origin-proxy-go/internal/model"
	"origin-proxy-go/internal/proxyurl"
	"origin-proxy-go/internal/service"
)

// Fixed plain-text error bodies. Clients of the proxy are browsers rendering
// arbitrary pages; errors stay deliberately terse.
const (
	invalidURLMessage     = "Invalid URL"
	upstreamFailedMessage = "Upstream fetch failed"
	notImplementedMessage = "Not implemented: only /proxy/<url> paths are served"
)

// ProxyHandler serves the /proxy namespace.
type ProxyHandler struct {
	service *service.ProxyService
	cfg     *config.Config
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, cfg *config.Config, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		cfg:     cfg,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle runs the rewriting pipeline for one request and writes the result.
// HTML documents are fully materialized by the pipeline; everything else
// streams straight through.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	pr := &model.ProxyRequest{
		Ctx:    req.Context(),
		Method: req.Method,
		// The escaped path keeps the embedded percent-encoded target intact.
		Path:        req.URL.EscapedPath(),
		Header:      req.Header,
		Body:        req.Body,
		ProxyOrigin: h.proxyOrigin(c),
	}

	resp, err := h.service.Forward(pr)
	if err != nil {
		return h.mapError(c, err)
	}

	for key, vals := range resp.Header {
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}

	if resp.IsStream() {
		defer func() { _ = resp.Body.Close() }()
		c.Response().WriteHeader(resp.StatusCode)

		// If io.Copy fails mid-stream (client disconnect, network error),
		// the status has already been sent and the client receives a
		// truncated response. Inherent trade-off of streaming proxies;
		// logged for observability.
		if _, err := io.Copy(c.Response(), resp.Body); err != nil {
			h.logger.Error("streaming response body",
				"err", err,
				"target", resp.Target.Host(),
			)
		}
		return nil
	}

	c.Response().WriteHeader(resp.StatusCode)
	if _, err := c.Response().Write(resp.Document); err != nil {
		h.logger.Error("writing rewritten document",
			"err", err,
			"target", resp.Target.Host(),
		)
	}
	return nil
}

// NotImplemented rejects any path outside the proxy namespace without ever
// reaching the fetcher.
func (h *ProxyHandler) NotImplemented(c echo.Context) error {
	return c.String(http.StatusNotImplemented, notImplementedMessage)
}

// proxyOrigin returns the origin to embed in rewritten absolute references:
// the configured public origin when set, otherwise the origin the client
// used to reach this request.
func (h *ProxyHandler) proxyOrigin(c echo.Context) string {
	if h.cfg.Proxy.PublicOrigin != "" {
		return h.cfg.Proxy.PublicOrigin
	}
	return c.Scheme() + "://" + c.Request().Host
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	if errors.Is(err, proxyurl.ErrInvalidTargetURL) {
		return c.String(http.StatusBadRequest, invalidURLMessage)
	}

	h.logger.Error("proxy error",
		"err", err,
		"path", c.Request().URL.Path,
	)
	return c.String(http.StatusInternalServerError, upstreamFailedMessage)
}
