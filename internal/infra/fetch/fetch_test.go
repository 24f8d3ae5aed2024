package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// Helpers
// =============================================================================

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	return buf.Bytes()
}

func hostOf(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	return u.Host
}

// =============================================================================
// Fetch
// =============================================================================

func TestFetch_DecodesImageDimensions(t *testing.T) {
	body := pngBytes(t, 64, 32)
	var gotUA, gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "test-agent", Referer: "http://ref/"})
	res, err := f.Fetch(context.Background(), srv.URL+"/a.png")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if res.Width != 64 || res.Height != 32 || res.Format != "png" {
		t.Errorf("unexpected resource %+v", res)
	}
	if !res.IsReady() {
		t.Error("expected decoded image to be ready")
	}
	if gotUA != "test-agent" || gotReferer != "http://ref/" {
		t.Errorf("unexpected headers ua=%q referer=%q", gotUA, gotReferer)
	}
}

func TestFetch_Gzip(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	gw.Write(pngBytes(t, 10, 20))
	gw.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	res, err := New(Config{}).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if res.Width != 10 || res.Height != 20 {
		t.Errorf("expected 10x20, got %dx%d", res.Width, res.Height)
	}
}

func TestFetch_NotAnImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>hotlinking not allowed</html>"))
	}))
	defer srv.Close()

	res, err := New(Config{}).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if res.IsReady() {
		t.Errorf("html body must not be ready: %+v", res)
	}
}

func TestFetch_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := New(Config{}).Fetch(context.Background(), srv.URL)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
}

func TestFetch_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte{0}, 4096))
	}))
	defer srv.Close()

	_, err := New(Config{MaxBodyKB: 1}).Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestFetch_ThrottledHostIsSkipped(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := New(Config{})
	if _, err := f.Fetch(context.Background(), srv.URL+"/1.png"); err == nil {
		t.Fatal("expected error for 429")
	}
	_, err := f.Fetch(context.Background(), srv.URL+"/2.png")
	if !errors.Is(err, ErrHostThrottled) {
		t.Fatalf("expected ErrHostThrottled, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected a single request to the throttled host, got %d", hits.Load())
	}
	if f.Monitor().Status(hostOf(t, srv.URL)) != HostThrottled {
		t.Error("expected host to be throttled")
	}
}

func TestFetch_CancelledWhileSlow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := New(Config{}).Fetch(ctx, srv.URL); err == nil {
		t.Fatal("expected error on cancellation")
	}
	if time.Since(start) > time.Second {
		t.Errorf("fetch did not honour cancellation, took %v", time.Since(start))
	}
}

func TestFetch_SemaphoreHonoursContext(t *testing.T) {
	f := New(Config{MaxConcurrent: 1})
	if err := f.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer f.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.Fetch(ctx, "http://127.0.0.1:1/x.png"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded while waiting for a slot, got %v", err)
	}
}

// =============================================================================
// HostMonitor
// =============================================================================

func TestHostMonitor(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewHostMonitor()
	m.now = func() time.Time { return now }

	m.RecordThrottle("a.example", 429, "")
	if got := m.RetryAfter("a.example"); got != defaultThrottleBackoff {
		t.Errorf("expected default backoff, got %v", got)
	}

	m.RecordThrottle("b.example", 403, "")
	m.RecordThrottle("b.example", 403, "")
	if m.Status("b.example") != HostHealthy {
		t.Error("two 403s must not block a host")
	}
	m.RecordThrottle("b.example", 403, "30")
	if m.Status("b.example") != HostBlocked || m.RetryAfter("b.example") != 30*time.Second {
		t.Errorf("expected blocked for 30s, got %v/%v", m.Status("b.example"), m.RetryAfter("b.example"))
	}

	now = now.Add(2 * time.Minute)
	if m.RetryAfter("a.example") != 0 || m.Status("b.example") != HostHealthy {
		t.Error("backoff should have expired")
	}
	if len(m.Stats()) != 2 {
		t.Errorf("expected 2 hosts in stats, got %d", len(m.Stats()))
	}
}
