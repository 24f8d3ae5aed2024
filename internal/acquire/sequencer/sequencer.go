// Package sequencer drives one resource instance through the fallback chain:
// the direct source first, then every registered strategy in order, until a
// race succeeds or the chain is exhausted.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/fullres/internal/acquire/race"
	"github.com/vietddude/fullres/internal/acquire/registry"
	"github.com/vietddude/fullres/internal/acquire/strategy"
	"github.com/vietddude/fullres/internal/core/domain"
	"github.com/vietddude/fullres/internal/infra/metrics"
)

// Racer runs one attempt across a set of candidate URLs.
type Racer interface {
	Race(ctx context.Context, candidates []string, timeout time.Duration) (race.Outcome, error)
}

// FilterFunc decides whether an instance may be attempted at all.
// Returning false moves the instance straight to Filtered.
type FilterFunc func(id, candidateURL string) bool

// Observer receives a snapshot after every state change or attempt.
type Observer func(domain.ResourceInstance)

// Config controls chain behaviour.
type Config struct {
	// Timeout bounds each attempt; <= 0 disables it. There is no chain-wide deadline.
	Timeout time.Duration

	// Eager races the first strategy alongside the direct source.
	Eager bool
}

// Sequencer implements the fallback state machine.
type Sequencer struct {
	strategies *strategy.Registry
	racer      Racer
	sources    registry.SourceStore
	cfg        Config
	observe    Observer
	log        *slog.Logger
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithObserver registers a snapshot callback.
func WithObserver(fn Observer) Option {
	return func(s *Sequencer) {
		s.observe = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sequencer) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a sequencer. A nil sources store disables known-source bookkeeping.
func New(
	strategies *strategy.Registry,
	racer Racer,
	sources registry.SourceStore,
	cfg Config,
	opts ...Option,
) *Sequencer {
	if strategies == nil {
		strategies = strategy.NewRegistry()
	}
	s := &Sequencer{
		strategies: strategies,
		racer:      racer,
		sources:    sources,
		cfg:        cfg,
		log:        slog.Default().With("component", "sequencer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type candidate struct {
	url      string
	strategy strategy.Strategy // nil for the direct source
}

// Run drives inst from Idle to a terminal state and returns the final snapshot.
func (s *Sequencer) Run(ctx context.Context, inst domain.ResourceInstance, filter FilterFunc) domain.ResourceInstance {
	if filter != nil && !filter(inst.ID, inst.OriginalSource) {
		s.finish(&inst, domain.StateFiltered, "")
		return inst
	}

	if err := s.transition(&inst, domain.StateAttempting); err != nil {
		s.log.Error("Cannot start instance", "id", inst.ID, "state", inst.State, "error", err)
		return inst
	}
	s.publish(inst)
	metrics.InFlight.Inc()
	defer metrics.InFlight.Dec()

	base := inst.OriginalSource
	chain := s.strategies.All()

	round := []candidate{{url: base}}
	next := 0
	if s.cfg.Eager && len(chain) > 0 {
		if u := chain[0].Apply(base); u != base {
			round = append(round, candidate{url: u, strategy: chain[0]})
		}
		next = 1
	}

	if s.attempt(ctx, &inst, nil, round) {
		return inst
	}
	if next == 1 {
		inst.StrategyIndex = 0
	}

	for i := next; i < len(chain); i++ {
		if ctx.Err() != nil {
			s.fail(&inst, domain.ReasonCanceled)
			return inst
		}

		st := chain[i]
		inst.StrategyIndex = i
		// Every strategy transforms the original, never the previous candidate.
		inst.CurrentSource = inst.OriginalSource
		if err := s.transition(&inst, domain.StateAttempting); err != nil {
			s.log.Error("Cannot advance instance", "id", inst.ID, "error", err)
			return inst
		}

		u := st.Apply(base)
		if u == base {
			s.skip(&inst, st.Name(), []string{u}, "strategy does not apply")
			continue
		}

		if s.attempt(ctx, &inst, st, []candidate{{url: u, strategy: st}}) {
			return inst
		}
	}

	s.fail(&inst, domain.ReasonExhausted)
	return inst
}

// attempt races one round and reports whether the instance reached a terminal state.
func (s *Sequencer) attempt(
	ctx context.Context,
	inst *domain.ResourceInstance,
	st strategy.Strategy,
	round []candidate,
) bool {
	name := metrics.StrategyDirect
	if st != nil {
		name = st.Name()
	}

	round = dedupe(round)
	live := make([]candidate, 0, len(round))
	urls := make([]string, 0, len(round))
	for _, c := range round {
		known, err := s.isKnownFailed(ctx, c.url)
		if err != nil {
			s.log.Warn("Known-source lookup failed", "url", c.url, "error", err)
		}
		if known {
			continue
		}
		live = append(live, c)
		urls = append(urls, c.url)
	}

	if len(live) == 0 {
		s.skip(inst, attemptName(st), candidateURLs(round), "all candidates known failed")
		return false
	}

	start := time.Now()
	out, err := s.racer.Race(ctx, urls, s.cfg.Timeout)
	elapsed := time.Since(start)
	metrics.RaceLatency.WithLabelValues(name).Observe(elapsed.Seconds())

	att := domain.Attempt{
		Strategy:   attemptName(st),
		Candidates: urls,
		Duration:   elapsed,
	}

	if err == nil {
		winner := live[out.Index]
		att.Winner = out.URL
		inst.Attempts = append(inst.Attempts, att)
		metrics.AttemptsTotal.WithLabelValues(name, "success").Inc()

		s.recordFailures(ctx, out.Failed)
		s.recordSuccess(ctx, out.URL)

		inst.CurrentSource = out.URL
		if winner.strategy != nil {
			inst.UsedStrategy = winner.strategy.Name()
			inst.Tag = winner.strategy.Tag()
			if st == nil {
				// eager round
				inst.StrategyIndex = 0
			}
		}
		s.finish(inst, domain.StateSucceeded, "")
		return true
	}

	reason := race.ReasonOf(err)
	att.Reason = reason
	inst.Attempts = append(inst.Attempts, att)
	metrics.AttemptsTotal.WithLabelValues(name, string(reason)).Inc()

	s.log.Debug("Attempt failed",
		"id", inst.ID,
		"strategy", name,
		"reason", reason,
		"error", err,
	)

	switch reason {
	case domain.ReasonCanceled, domain.ReasonNoCandidates:
		s.fail(inst, reason)
		return true
	}

	var re *race.RaceError
	if errors.As(err, &re) {
		s.recordFailures(ctx, re.Failed)
	}
	inst.LastReason = reason
	s.publish(*inst)
	return false
}

func (s *Sequencer) skip(inst *domain.ResourceInstance, name string, urls []string, why string) {
	inst.Attempts = append(inst.Attempts, domain.Attempt{
		Strategy:   name,
		Candidates: urls,
		Reason:     domain.ReasonLoadError,
		Skipped:    true,
	})
	if inst.LastReason == "" {
		inst.LastReason = domain.ReasonLoadError
	}
	label := name
	if label == "" {
		label = metrics.StrategyDirect
	}
	metrics.AttemptsTotal.WithLabelValues(label, "skipped").Inc()
	s.log.Debug("Attempt skipped", "id", inst.ID, "strategy", label, "why", why)
	s.publish(*inst)
}

func (s *Sequencer) fail(inst *domain.ResourceInstance, reason domain.FailureReason) {
	inst.CurrentSource = inst.OriginalSource
	s.finish(inst, domain.StateFailed, reason)
}

func (s *Sequencer) finish(inst *domain.ResourceInstance, to domain.State, reason domain.FailureReason) {
	if err := s.transition(inst, to); err != nil {
		s.log.Error("Cannot finish instance", "id", inst.ID, "from", inst.State, "to", to, "error", err)
		return
	}
	inst.FailureReason = reason
	inst.FinishedAt = time.Now()
	s.publish(*inst)
}

func (s *Sequencer) transition(inst *domain.ResourceInstance, to domain.State) error {
	if !CanTransition(inst.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, inst.State, to)
	}
	inst.State = to
	return nil
}

func (s *Sequencer) publish(inst domain.ResourceInstance) {
	if s.observe != nil {
		s.observe(inst.Clone())
	}
}

func (s *Sequencer) isKnownFailed(ctx context.Context, u string) (bool, error) {
	if s.sources == nil {
		return false, nil
	}
	return s.sources.IsKnownFailed(ctx, u)
}

func (s *Sequencer) recordFailures(ctx context.Context, urls []string) {
	if s.sources == nil {
		return
	}
	for _, u := range urls {
		if _, err := s.sources.RecordFailure(ctx, u); err != nil {
			s.log.Warn("Failed to record failure", "url", u, "error", err)
		}
	}
}

func (s *Sequencer) recordSuccess(ctx context.Context, u string) {
	if s.sources == nil {
		return
	}
	if _, err := s.sources.RecordSuccess(ctx, u); err != nil {
		s.log.Warn("Failed to record success", "url", u, "error", err)
	}
}

func attemptName(st strategy.Strategy) string {
	if st == nil {
		return ""
	}
	return st.Name()
}

func candidateURLs(round []candidate) []string {
	urls := make([]string, len(round))
	for i, c := range round {
		urls[i] = c.url
	}
	return urls
}

func dedupe(round []candidate) []candidate {
	seen := make(map[string]struct{}, len(round))
	result := make([]candidate, 0, len(round))
	for _, c := range round {
		if _, ok := seen[c.url]; ok {
			continue
		}
		seen[c.url] = struct{}{}
		result = append(result, c)
	}
	return result
}
