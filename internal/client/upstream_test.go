package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"origin-proxy-go/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Upstream: config.UpstreamConfig{
			TimeoutSeconds:  10,
			IdleConnections: 10,
		},
	}
}

func TestFetch_DoesNotFollowRedirects(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/start":
			http.Redirect(w, r, "/final", http.StatusFound)
		case "/final":
			t.Error("redirect was followed; /final should never be fetched")
		}
	}))
	defer upstream.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewUpstreamClient(testConfig(), logger, nil)

	resp, err := c.Fetch(context.Background(), http.MethodGet, upstream.URL+"/start", make(http.Header), nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Errorf("status = %d, want %d (raw redirect)", resp.StatusCode, http.StatusFound)
	}
	if loc := resp.Header.Get("Location"); loc != "/final" {
		t.Errorf("Location = %q, want %q", loc, "/final")
	}
}

func TestFetch_OverridesHost(t *testing.T) {
	var gotHost string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewUpstreamClient(testConfig(), logger, nil)

	header := make(http.Header)
	header.Set("Host", "target.example.com")
	resp, err := c.Fetch(context.Background(), http.MethodGet, upstream.URL+"/", header, nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	resp.Body.Close()

	if gotHost != "target.example.com" {
		t.Errorf("upstream saw Host = %q, want %q", gotHost, "target.example.com")
	}
}

func TestFetch_TransportError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewUpstreamClient(testConfig(), logger, nil)

	// Closed server: connection refused.
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := dead.URL
	dead.Close()

	if _, err := c.Fetch(context.Background(), http.MethodGet, url+"/", make(http.Header), nil); err == nil {
		t.Fatal("Fetch() expected transport error, got nil")
	}
}

func TestFetch_ContextCancellation(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer upstream.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewUpstreamClient(testConfig(), logger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Fetch(ctx, http.MethodGet, upstream.URL+"/", make(http.Header), nil); err == nil {
		t.Fatal("Fetch() expected context error, got nil")
	}
}
