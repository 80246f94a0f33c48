package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetch(t *testing.T) {
	t.Parallel()

	t.Run("returns content of a 200 response", func(t *testing.T) {
		t.Parallel()

		var gotUA string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, "<html><title>Hi</title></html>")
		}))
		defer server.Close()

		f := New(server.Client(), WithUserAgent("test-agent"))
		content, err := f.Fetch(context.Background(), server.URL+"/page")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if content.StatusCode != http.StatusOK {
			t.Errorf("expected status 200, got %d", content.StatusCode)
		}
		if string(content.Body) != "<html><title>Hi</title></html>" {
			t.Errorf("unexpected body %q", content.Body)
		}
		if content.ContentType != "text/html; charset=utf-8" {
			t.Errorf("unexpected content type %q", content.ContentType)
		}
		if content.FinalURL != server.URL+"/page" {
			t.Errorf("expected final URL %q, got %q", server.URL+"/page", content.FinalURL)
		}
		if gotUA != "test-agent" {
			t.Errorf("expected User-Agent 'test-agent', got %q", gotUA)
		}
	})

	t.Run("non-2xx status is a fetch error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		f := New(server.Client())
		_, err := f.Fetch(context.Background(), server.URL+"/missing")

		var fetchErr *Error
		if !errors.As(err, &fetchErr) {
			t.Fatalf("expected *Error, got %v", err)
		}
		if fetchErr.StatusCode != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", fetchErr.StatusCode)
		}
		if !errors.Is(err, ErrStatus) {
			t.Errorf("expected ErrStatus, got %v", err)
		}
	})

	t.Run("redirect target is reported as final URL", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
		})
		mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "moved")
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		f := New(server.Client())
		content, err := f.Fetch(context.Background(), server.URL+"/old")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if content.URL != server.URL+"/old" {
			t.Errorf("expected requested URL to be kept, got %q", content.URL)
		}
		if content.FinalURL != server.URL+"/new" {
			t.Errorf("expected final URL %q, got %q", server.URL+"/new", content.FinalURL)
		}
	})

	t.Run("body is truncated to the size limit", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, strings.Repeat("x", 1000))
		}))
		defer server.Close()

		f := New(server.Client(), WithMaxBodySize(100))
		content, err := f.Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(content.Body) != 100 {
			t.Errorf("expected 100 bytes, got %d", len(content.Body))
		}
	})

	t.Run("timeout is a fetch error wrapping ErrTimeout", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		client := server.Client()
		client.Timeout = 50 * time.Millisecond
		f := New(client)

		_, err := f.Fetch(context.Background(), server.URL)
		var fetchErr *Error
		if !errors.As(err, &fetchErr) {
			t.Fatalf("expected *Error, got %v", err)
		}
		if !errors.Is(err, ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("invalid URL is a fetch error", func(t *testing.T) {
		t.Parallel()

		f := New(nil)
		_, err := f.Fetch(context.Background(), "http://[::1")
		var fetchErr *Error
		if !errors.As(err, &fetchErr) {
			t.Fatalf("expected *Error, got %v", err)
		}
	})
}

func TestFetchRateLimit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	f := New(server.Client(), WithRateLimit(20))

	start := time.Now()
	for i := 0; i < 5; i++ {
		if _, err := f.Fetch(context.Background(), server.URL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// Burst 1 at 20 req/s: four waits of 50ms.
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("expected rate limiting to slow requests, took %v", elapsed)
	}
}

func TestFetchRateLimitCanceled(t *testing.T) {
	t.Parallel()

	f := New(nil, WithRateLimit(0.001))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, "http://127.0.0.1:1/")
	var fetchErr *Error
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
}

func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	t.Run("injects cookie and headers", func(t *testing.T) {
		t.Parallel()

		var gotCookie, gotHeader string
		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			gotCookie = r.Header.Get("Cookie")
			gotHeader = r.Header.Get("X-Test")
		}))
		defer server.Close()

		client, err := NewHTTPClient(ClientOptions{
			Timeout: time.Second,
			Cookie:  "session=abc",
			Headers: map[string]string{"X-Test": "yes"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		resp, err := client.Get(server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		resp.Body.Close()

		if gotCookie != "session=abc" {
			t.Errorf("expected cookie 'session=abc', got %q", gotCookie)
		}
		if gotHeader != "yes" {
			t.Errorf("expected X-Test 'yes', got %q", gotHeader)
		}
	})

	t.Run("accepts supported proxy forms", func(t *testing.T) {
		t.Parallel()

		for _, p := range []string{"127.0.0.1:9050", "socks5://127.0.0.1:1080", "socks5h://localhost:1080", "http://proxy.local:3128"} {
			if _, err := NewHTTPClient(ClientOptions{Proxy: p}); err != nil {
				t.Errorf("expected proxy %q to be accepted, got %v", p, err)
			}
		}
	})

	t.Run("rejects invalid proxy", func(t *testing.T) {
		t.Parallel()

		for _, p := range []string{"127.0.0.1", "ftp://proxy.local:21", "socks5://:"} {
			if _, err := NewHTTPClient(ClientOptions{Proxy: p}); !errors.Is(err, ErrInvalidProxy) {
				t.Errorf("expected ErrInvalidProxy for %q, got %v", p, err)
			}
		}
	})

	t.Run("stops after too many redirects", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, r.URL.Path+"x", http.StatusFound)
		}))
		defer server.Close()

		client, err := NewHTTPClient(ClientOptions{Timeout: time.Second})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		resp, err := client.Get(server.URL + "/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusFound {
			t.Errorf("expected last redirect response, got %d", resp.StatusCode)
		}
	})
}
