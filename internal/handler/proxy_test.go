package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"origin-proxy-go/internal/client"
	"origin-proxy-go/internal/config"
	"origin-proxy-go/internal/proxyurl"
	"origin-proxy-go/internal/service"
)

// newTestEcho builds an Echo instance with the full route table wired to a
// real pipeline pointed at cfg.
func newTestEcho(t *testing.T, cfg *config.Config) *echo.Echo {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewProxyService(client.NewUpstreamClient(cfg, logger, nil), cfg, logger, nil)

	e := echo.New()
	RegisterRoutes(e, NewProxyHandler(svc, cfg, logger), NewHealthHandler(cfg, "test"))
	return e
}

func testCfg() *config.Config {
	return &config.Config{
		Proxy: config.ProxyConfig{DefaultTarget: "https://example.com"},
		Upstream: config.UpstreamConfig{
			TimeoutSeconds:  10,
			IdleConnections: 10,
		},
	}
}

func TestHandle_RewritesHTMLEndToEnd(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		_, _ = w.Write([]byte(`<html><head></head><body><a href="/a">a</a></body></html>`))
	}))
	defer upstream.Close()

	e := newTestEcho(t, testCfg())

	req := httptest.NewRequest(http.MethodGet, proxyurl.Encode(upstream.URL+"/page"), http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, proxyurl.Encode(upstream.URL+"/a")) {
		t.Errorf("link not rewritten:\n%s", body)
	}
	if !strings.Contains(body, `data-origin-proxy="spoof"`) {
		t.Error("spoof script missing from response")
	}
	if v := rec.Header().Get("Content-Security-Policy"); v != "" {
		t.Errorf("Content-Security-Policy = %q, want deleted", v)
	}
}

func TestHandle_JSONPassthrough(t *testing.T) {
	const payload = `{"a":"<a href='/x'>not html</a>"}`
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
	defer upstream.Close()

	e := newTestEcho(t, testCfg())

	req := httptest.NewRequest(http.MethodGet, proxyurl.Encode(upstream.URL+"/api"), http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != payload {
		t.Errorf("body = %q, want byte-for-byte passthrough", rec.Body.String())
	}
}

func TestHandle_InvalidURL(t *testing.T) {
	e := newTestEcho(t, testCfg())

	// Decodes to "https://", which has no host.
	req := httptest.NewRequest(http.MethodGet, "/proxy/https%3A%2F%2F", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if rec.Body.String() != "Invalid URL" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "Invalid URL")
	}
}

func TestHandle_UpstreamFailure(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := dead.URL
	dead.Close()

	e := newTestEcho(t, testCfg())

	req := httptest.NewRequest(http.MethodGet, proxyurl.Encode(url+"/"), http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if rec.Body.String() != "Upstream fetch failed" {
		t.Errorf("body = %q, want fixed failure message", rec.Body.String())
	}
}

func TestNotImplemented_OutsideProxyNamespace(t *testing.T) {
	fetched := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetched = true
	}))
	defer upstream.Close()

	cfg := testCfg()
	cfg.Proxy.DefaultTarget = upstream.URL
	e := newTestEcho(t, cfg)

	for _, path := range []string{"/other/thing", "/", "/prox"} {
		req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotImplemented {
			t.Errorf("path %q: status = %d, want %d", path, rec.Code, http.StatusNotImplemented)
		}
		if !strings.Contains(rec.Body.String(), "Not implemented") {
			t.Errorf("path %q: body = %q, want fixed 501 message", path, rec.Body.String())
		}
	}
	if fetched {
		t.Error("fetcher was invoked for a non-proxy path")
	}
}

func TestHandle_RedirectLocationRewritten(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusFound)
	}))
	defer upstream.Close()

	e := newTestEcho(t, testCfg())

	req := httptest.NewRequest(http.MethodGet, proxyurl.Encode(upstream.URL+"/old"), http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	want := proxyurl.Encode(upstream.URL + "/new")
	if got := rec.Header().Get("Location"); got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}
}

func TestHealthz(t *testing.T) {
	e := newTestEcho(t, testCfg())

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want %q", body["status"], "ok")
	}
}

func TestStatus(t *testing.T) {
	e := newTestEcho(t, testCfg())

	req := httptest.NewRequest(http.MethodGet, "/proxy-status", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["version"] != "test" {
		t.Errorf("version = %q, want %q", body["version"], "test")
	}
	if body["default_target"] != "https://example.com" {
		t.Errorf("default_target = %q, want config value", body["default_target"])
	}
}
