// Package engine is the acquisition facade: it resolves the target URL for a
// resource id, guards against re-entrant calls, runs the fallback sequencer and
// reports exactly one terminal result per id.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/fullres/internal/acquire/registry"
	"github.com/vietddude/fullres/internal/acquire/sequencer"
	"github.com/vietddude/fullres/internal/acquire/strategy"
	"github.com/vietddude/fullres/internal/core/domain"
	"github.com/vietddude/fullres/internal/infra/metrics"
)

// DefaultTimeout bounds one attempt when no timeout is configured.
const DefaultTimeout = 15 * time.Second

// Request describes one resource to acquire.
type Request struct {
	// ID is the caller's opaque handle for the resource
	ID string `json:"id"`

	// CurrentURL is the source the caller currently shows (the thumbnail)
	CurrentURL string `json:"current_url"`

	// HintURL is the enclosing link target, usually the full-size image
	HintURL string `json:"hint_url,omitempty"`

	// TargetURL overrides both when set
	TargetURL string `json:"target_url,omitempty"`
}

// TerminalFunc receives the final snapshot of an instance.
type TerminalFunc func(domain.ResourceInstance)

// Engine composes the strategy registry, racer, sequencer and resource registry.
type Engine struct {
	strategies *strategy.Registry
	registry   *registry.Registry
	seq        *sequencer.Sequencer

	filter     sequencer.FilterFunc
	timeout    time.Duration
	eager      bool
	onTerminal TerminalFunc
	sources    registry.SourceStore
	log        *slog.Logger

	wg sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithFilter replaces the default predicate. A nil filter accepts everything.
func WithFilter(fn sequencer.FilterFunc) Option {
	return func(e *Engine) {
		e.filter = fn
	}
}

// WithTimeout sets the per-attempt timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithEager races the first strategy together with the direct source.
func WithEager(eager bool) Option {
	return func(e *Engine) {
		e.eager = eager
	}
}

// WithOnTerminal registers the terminal callback.
func WithOnTerminal(fn TerminalFunc) Option {
	return func(e *Engine) {
		e.onTerminal = fn
	}
}

// WithSources sets the known-source store shared by every instance.
func WithSources(s registry.SourceStore) Option {
	return func(e *Engine) {
		e.sources = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New creates an engine that walks strategies and races candidates with racer.
func New(strategies *strategy.Registry, racer sequencer.Racer, opts ...Option) *Engine {
	if strategies == nil {
		strategies = strategy.NewRegistry()
	}
	e := &Engine{
		strategies: strategies,
		filter:     RejectDataURLs,
		timeout:    DefaultTimeout,
		log:        slog.Default().With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.registry = registry.New(e.sources)
	e.seq = sequencer.New(
		strategies,
		racer,
		e.registry.Sources,
		sequencer.Config{Timeout: e.timeout, Eager: e.eager},
		sequencer.WithObserver(e.registry.Update),
		sequencer.WithLogger(e.log),
	)
	return e
}

// RejectDataURLs is the default filter: inline data: sources are never fetched.
func RejectDataURLs(_ string, u string) bool {
	return !isDataURL(u)
}

// ResolveTarget picks the URL to acquire: an explicit target, then the anchor
// hint unless it is a data: URL, then the current source.
func ResolveTarget(req Request) (string, error) {
	if t := strings.TrimSpace(req.TargetURL); t != "" {
		return t, nil
	}
	if h := strings.TrimSpace(req.HintURL); h != "" && !isDataURL(h) {
		return h, nil
	}
	if c := strings.TrimSpace(req.CurrentURL); c != "" {
		return c, nil
	}
	return "", domain.ErrNoSource
}

// Acquire runs the fallback chain for req and blocks until it is terminal.
// A second call for a known id returns the stored snapshot and ErrReentrantCall.
func (e *Engine) Acquire(ctx context.Context, req Request) (domain.ResourceInstance, error) {
	if strings.TrimSpace(req.ID) == "" {
		return domain.ResourceInstance{}, domain.ErrEmptyID
	}
	target, err := ResolveTarget(req)
	if err != nil {
		return domain.ResourceInstance{}, fmt.Errorf("resolve target for %s: %w", req.ID, err)
	}

	inst := domain.NewResourceInstance(req.ID, target, req.CurrentURL)
	existing, created := e.registry.Begin(inst)
	if !created {
		return existing, fmt.Errorf("%w: %s (%s)", domain.ErrReentrantCall, req.ID, existing.State)
	}

	e.log.Debug("Acquiring resource", "id", req.ID, "target", target)
	final := e.seq.Run(ctx, inst, e.filter)
	e.report(ctx, final)
	return final, nil
}

// NotifyCandidate starts Acquire in the background. Re-entrant notifications
// for an id are ignored.
func (e *Engine) NotifyCandidate(ctx context.Context, id, currentURL, hintURL string) {
	e.Submit(ctx, Request{ID: id, CurrentURL: currentURL, HintURL: hintURL})
}

// Submit runs Acquire for req in the background.
func (e *Engine) Submit(ctx context.Context, req Request) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		_, err := e.Acquire(ctx, req)
		if err != nil && !errors.Is(err, domain.ErrReentrantCall) {
			e.log.Warn("Candidate rejected", "id", req.ID, "error", err)
		}
	}()
}

// Wait blocks until every background acquisition has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Instance returns the latest snapshot for id.
func (e *Engine) Instance(id string) (domain.ResourceInstance, bool) {
	return e.registry.Get(id)
}

// Instances returns every known instance ordered by id.
func (e *Engine) Instances() []domain.ResourceInstance {
	return e.registry.List()
}

// CountByState summarizes instances by state.
func (e *Engine) CountByState() map[domain.State]int {
	return e.registry.CountByState()
}

// SourceStats returns the sizes of the known-failed and known-succeeded sets.
func (e *Engine) SourceStats(ctx context.Context) (registry.SourceStats, error) {
	return e.registry.Sources.Stats(ctx)
}

// Strategies returns the strategy registry the engine walks.
func (e *Engine) Strategies() *strategy.Registry {
	return e.strategies
}

func (e *Engine) report(ctx context.Context, inst domain.ResourceInstance) {
	used := inst.UsedStrategy
	if inst.State == domain.StateSucceeded && used == "" {
		used = metrics.StrategyDirect
	}
	metrics.AcquisitionsTotal.WithLabelValues(string(inst.State), string(inst.FailureReason), used).Inc()

	if stats, err := e.registry.Sources.Stats(ctx); err == nil {
		metrics.KnownSources.WithLabelValues(string(registry.VerdictFailed)).Set(float64(stats.Failed))
		metrics.KnownSources.WithLabelValues(string(registry.VerdictSucceeded)).Set(float64(stats.Succeeded))
	} else {
		e.log.Warn("Failed to read source stats", "error", err)
	}

	switch {
	case inst.State == domain.StateSucceeded:
		e.log.Info("Resource acquired",
			"id", inst.ID,
			"source", inst.CurrentSource,
			"strategy", used,
			"attempts", len(inst.Attempts),
		)
	case inst.Canceled():
		e.log.Debug("Resource acquisition canceled", "id", inst.ID)
	case inst.State == domain.StateFailed:
		e.log.Warn("Resource acquisition failed",
			"id", inst.ID,
			"source", inst.OriginalSource,
			"reason", inst.FailureReason,
			"last_reason", inst.LastReason,
			"attempts", len(inst.Attempts),
		)
	default:
		e.log.Debug("Resource filtered", "id", inst.ID, "source", inst.OriginalSource)
	}

	// A canceled chain can be acquired again, so it is not reported as final.
	if e.onTerminal != nil && !inst.Canceled() {
		e.onTerminal(inst.Clone())
	}
}

func isDataURL(u string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(u)), "data:")
}
