package browser

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tranmanhhung/sn111/internal/config"
	"github.com/tranmanhhung/sn111/internal/logging"
)

func testBrowserConfig() config.BrowserConfig {
	cfg := config.DefaultConfig().Browser
	cfg.NavTimeoutMs = 5000
	return cfg
}

func launchStatic(t *testing.T) Session {
	t.Helper()
	l := NewStaticLauncher(testBrowserConfig(), logging.NewNop())
	t.Cleanup(func() { l.Close() })
	s, err := l.Launch(context.Background())
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	return s
}

func TestStaticNavigateAndHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><div class="review">hello</div></body></html>`))
	}))
	defer srv.Close()

	s := launchStatic(t)
	ctx := context.Background()
	if err := s.Navigate(ctx, srv.URL); err != nil {
		t.Fatalf("Navigate: %v", err)
	}

	html, err := s.HTML(ctx)
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	if !strings.Contains(html, "hello") {
		t.Errorf("document content missing: %q", html)
	}

	loc, err := s.Location(ctx)
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if !strings.HasPrefix(loc, srv.URL) {
		t.Errorf("location = %q, want prefix %q", loc, srv.URL)
	}
}

func TestStaticGzipResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			t.Error("client did not offer gzip")
		}
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		gz.Write([]byte(`<html><body><p id="z">compressed</p></body></html>`))
		gz.Close()
	}))
	defer srv.Close()

	s := launchStatic(t)
	if err := s.Navigate(context.Background(), srv.URL); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	html, err := s.HTML(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, "compressed") {
		t.Errorf("gzip body not decoded: %q", html)
	}
}

func TestStaticWaitVisible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div data-review-id="r1">x</div></body></html>`))
	}))
	defer srv.Close()

	s := launchStatic(t)
	ctx := context.Background()
	if err := s.Navigate(ctx, srv.URL); err != nil {
		t.Fatal(err)
	}

	if err := s.WaitVisible(ctx, `[data-review-id]`, time.Second); err != nil {
		t.Errorf("present selector reported absent: %v", err)
	}
	if err := s.WaitVisible(ctx, `#nope`, time.Second); err == nil {
		t.Error("absent selector reported present")
	}
}

func TestStaticErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	s := launchStatic(t)
	if err := s.Navigate(context.Background(), srv.URL); err == nil {
		t.Error("404 navigate succeeded")
	}
}

func TestStaticNoPageLoaded(t *testing.T) {
	s := launchStatic(t)
	if _, err := s.HTML(context.Background()); err == nil {
		t.Error("HTML before Navigate succeeded")
	}
	if _, err := s.Location(context.Background()); err == nil {
		t.Error("Location before Navigate succeeded")
	}
}
