// Package fetch is the host fetch primitive: it downloads a candidate URL over
// HTTP and decodes the image header to report its dimensions.
package fetch

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/semaphore"

	"github.com/vietddude/fullres/internal/core/domain"
	"github.com/vietddude/fullres/internal/infra/metrics"
)

const (
	DefaultUserAgent     = "Mozilla/5.0 (X11; Linux x86_64) fullres/1.0"
	DefaultTimeout       = 30 * time.Second
	DefaultMaxBodyBytes  = 32 << 20
	DefaultMaxConcurrent = 8
)

var (
	// ErrTooLarge is returned when a body exceeds the configured cap.
	ErrTooLarge = errors.New("response body exceeds size limit")

	// ErrHostThrottled is returned while a host is backing off after 429/403.
	ErrHostThrottled = errors.New("host throttled")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.URL)
}

// Config holds fetcher settings.
type Config struct {
	Timeout       time.Duration `yaml:"timeout"`
	UserAgent     string        `yaml:"user_agent"`
	Referer       string        `yaml:"referer"`
	MaxBodyKB     int           `yaml:"max_body_kb"`
	MaxConcurrent int           `yaml:"max_concurrent"`
}

// HTTPFetcher implements race.Fetcher over net/http.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	referer   string
	maxBody   int64
	sem       *semaphore.Weighted
	monitor   *HostMonitor
	log       *slog.Logger
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithClient replaces the HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *HTTPFetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *HTTPFetcher) {
		if l != nil {
			f.log = l
		}
	}
}

// New creates a fetcher from cfg, applying defaults for zero values.
func New(cfg Config, opts ...Option) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	maxBody := int64(cfg.MaxBodyKB) << 10
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}

	f := &HTTPFetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: cfg.UserAgent,
		referer:   cfg.Referer,
		maxBody:   maxBody,
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		monitor:   NewHostMonitor(),
		log:       slog.Default().With("component", "fetch"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Monitor returns the per-host throttle tracker.
func (f *HTTPFetcher) Monitor() *HostMonitor {
	return f.monitor
}

// Fetch downloads u and decodes its image header. The returned Resource has
// zero dimensions when the body is not a decodable image.
func (f *HTTPFetcher) Fetch(ctx context.Context, u string) (domain.Resource, error) {
	start := time.Now()

	parsed, err := url.Parse(u)
	if err != nil {
		metrics.FetchTotal.WithLabelValues("invalid").Inc()
		return domain.Resource{}, fmt.Errorf("parse url: %w", err)
	}
	if wait := f.monitor.RetryAfter(parsed.Host); wait > 0 {
		metrics.FetchTotal.WithLabelValues("throttled").Inc()
		return domain.Resource{}, fmt.Errorf("%w: %s for %v", ErrHostThrottled, parsed.Host, wait.Round(time.Second))
	}

	if err := f.sem.Acquire(ctx, 1); err != nil {
		return domain.Resource{}, err
	}
	defer f.sem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		metrics.FetchTotal.WithLabelValues("invalid").Inc()
		return domain.Resource{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "image/webp,image/*,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	if f.referer != "" {
		req.Header.Set("Referer", f.referer)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		metrics.FetchTotal.WithLabelValues(errorLabel(ctx)).Inc()
		return domain.Resource{}, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusForbidden:
		f.monitor.RecordThrottle(parsed.Host, resp.StatusCode, resp.Header.Get("Retry-After"))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.FetchTotal.WithLabelValues("status").Inc()
		return domain.Resource{}, &StatusError{URL: u, Code: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		metrics.FetchTotal.WithLabelValues(errorLabel(ctx)).Inc()
		return domain.Resource{}, fmt.Errorf("read body: %w", err)
	}
	if int64(len(raw)) > f.maxBody {
		metrics.FetchTotal.WithLabelValues("too_large").Inc()
		return domain.Resource{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, f.maxBody)
	}
	metrics.FetchBytes.Add(float64(len(raw)))

	body, err := decodeBody(raw, resp.Header.Get("Content-Encoding"), f.maxBody)
	if errors.Is(err, ErrTooLarge) {
		metrics.FetchTotal.WithLabelValues("too_large").Inc()
		return domain.Resource{}, err
	}
	if err != nil {
		metrics.FetchTotal.WithLabelValues("decode").Inc()
		return domain.Resource{}, fmt.Errorf("decode body: %w", err)
	}

	res := domain.Resource{
		URL:         u,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        int64(len(body)),
		Latency:     time.Since(start),
	}
	if cfg, format, err := image.DecodeConfig(bytes.NewReader(body)); err == nil {
		res.Width = cfg.Width
		res.Height = cfg.Height
		res.Format = format
	} else {
		f.log.Debug("Body is not a decodable image", "url", u, "content_type", res.ContentType, "error", err)
	}

	metrics.FetchTotal.WithLabelValues("ok").Inc()
	return res, nil
}

// decodeBody undoes Content-Encoding. Unknown encodings are returned as-is.
func decodeBody(raw []byte, encoding string, limit int64) ([]byte, error) {
	var rc io.ReadCloser
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip":
		gr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		rc = gr
	case "deflate":
		// Servers send both zlib-wrapped and raw deflate streams.
		if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
			rc = zr
		} else {
			rc = flate.NewReader(bytes.NewReader(raw))
		}
	default:
		return raw, nil
	}
	defer rc.Close()

	body, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: %d bytes decoded", ErrTooLarge, limit)
	}
	return body, nil
}

func errorLabel(ctx context.Context) string {
	if ctx.Err() != nil {
		return "canceled"
	}
	return "error"
}
