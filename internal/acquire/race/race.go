// Package race runs one attempt of the fallback chain: it fetches every
// candidate URL concurrently and keeps the first genuine success.
package race

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/fullres/internal/core/domain"
)

// ErrNotReady is returned for fetches that completed but carry no usable content.
var ErrNotReady = errors.New("resource loaded but content is empty or invalid")

// Fetcher is the host fetch primitive.
// Implementations must return promptly once ctx is cancelled.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (domain.Resource, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) (domain.Resource, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, url string) (domain.Resource, error) {
	return f(ctx, url)
}

// ReadinessFunc separates genuine success from "connection opened but content
// is empty or corrupt".
type ReadinessFunc func(domain.Resource) bool

// Outcome is the winning candidate of a race.
type Outcome struct {
	URL      string
	Index    int
	Resource domain.Resource
	Latency  time.Duration
	// Failed lists candidates that definitively failed before the winner.
	Failed []string
}

// RaceError reports why no candidate won.
type RaceError struct {
	Reason domain.FailureReason
	Failed []string
	Errs   []error
}

func (e *RaceError) Error() string {
	if len(e.Errs) == 0 {
		return fmt.Sprintf("race failed: %s", e.Reason)
	}
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("race failed: %s: %s", e.Reason, strings.Join(msgs, "; "))
}

func (e *RaceError) Unwrap() []error {
	return e.Errs
}

// ReasonOf extracts the failure reason from a Race error.
func ReasonOf(err error) domain.FailureReason {
	var re *RaceError
	if errors.As(err, &re) {
		return re.Reason
	}
	if errors.Is(err, context.Canceled) {
		return domain.ReasonCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ReasonTimeout
	}
	return domain.ReasonLoadError
}

// Racer races host fetches.
type Racer struct {
	fetcher Fetcher
	ready   ReadinessFunc
	log     *slog.Logger
}

// Option configures a Racer.
type Option func(*Racer)

// WithReadiness overrides the content-validity check.
func WithReadiness(fn ReadinessFunc) Option {
	return func(r *Racer) {
		if fn != nil {
			r.ready = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Racer) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRacer creates a racer over the given fetch primitive.
func NewRacer(f Fetcher, opts ...Option) *Racer {
	r := &Racer{
		fetcher: f,
		ready:   domain.Resource.IsReady,
		log:     slog.Default().With("component", "racer"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type result struct {
	index int
	res   domain.Resource
	err   error
}

// Race fetches every candidate concurrently and returns the first one that
// loads and passes the readiness check. Losing fetches are cancelled and Race
// only returns once all of them have finished.
// A timeout <= 0 disables the attempt deadline.
func (r *Racer) Race(ctx context.Context, candidates []string, timeout time.Duration) (Outcome, error) {
	if len(candidates) == 0 {
		return Outcome{}, &RaceError{Reason: domain.ReasonNoCandidates}
	}

	start := time.Now()
	raceCtx, cancelRace := context.WithCancel(ctx)

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	cancels := make([]context.CancelFunc, len(candidates))
	results := make(chan result, len(candidates))
	var wg sync.WaitGroup

	for i, u := range candidates {
		fetchCtx, cancel := context.WithCancel(raceCtx)
		cancels[i] = cancel
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			res, err := r.fetcher.Fetch(fetchCtx, u)
			if err == nil && !r.ready(res) {
				err = ErrNotReady
			}
			results <- result{index: i, res: res, err: err}
		}(i, u)
	}

	// CancelFunc is idempotent, so finished fetches are unaffected.
	defer func() {
		for _, cancel := range cancels {
			cancel()
		}
		cancelRace()
		wg.Wait()
	}()

	var failed []string
	var errs []error

	for pending := len(candidates); pending > 0; {
		select {
		case res := <-results:
			pending--
			if res.err == nil {
				for i, cancel := range cancels {
					if i != res.index {
						cancel()
					}
				}
				r.log.Debug("Race won",
					"url", candidates[res.index],
					"candidates", len(candidates),
					"latency", time.Since(start),
				)
				return Outcome{
					URL:      candidates[res.index],
					Index:    res.index,
					Resource: res.res,
					Latency:  time.Since(start),
					Failed:   failed,
				}, nil
			}
			if ctx.Err() != nil {
				return Outcome{}, &RaceError{Reason: domain.ReasonCanceled, Errs: []error{ctx.Err()}}
			}
			failed = append(failed, candidates[res.index])
			errs = append(errs, fmt.Errorf("%s: %w", candidates[res.index], res.err))

		case <-deadline:
			r.log.Debug("Race timed out", "candidates", len(candidates), "timeout", timeout)
			all := make([]string, len(candidates))
			copy(all, candidates)
			return Outcome{}, &RaceError{
				Reason: domain.ReasonTimeout,
				Failed: all,
				Errs:   append(errs, fmt.Errorf("no candidate loaded within %v", timeout)),
			}

		case <-ctx.Done():
			return Outcome{}, &RaceError{Reason: domain.ReasonCanceled, Errs: []error{ctx.Err()}}
		}
	}

	return Outcome{}, &RaceError{Reason: domain.ReasonLoadError, Failed: failed, Errs: errs}
}
