// Package acquire materializes full-resolution resources through an ordered
// chain of URL rewriting strategies.
//
// This package offers:
//   - A strategy registry with the built-in image proxies
//   - A racer that fetches candidates concurrently and keeps the first success
//   - A fallback sequencer driving each instance to one terminal state
//   - Known-failed / known-succeeded source bookkeeping (memory or Redis)
//
// # Quick Start
//
//	import "github.com/vietddude/fullres/internal/acquire"
//
//	strategies, _ := acquire.NewStrategyRegistry(acquire.DefaultChain...)
//	racer := acquire.NewRacer(fetcher)
//	engine := acquire.NewEngine(strategies, racer, acquire.WithTimeout(15*time.Second))
//
//	inst, err := engine.Acquire(ctx, acquire.Request{ID: "img-1", CurrentURL: thumb, HintURL: full})
//
// # Package Structure
//
//   - strategy/  - Strategy interface, registry, built-in proxies
//   - race/      - Attempt racer
//   - sequencer/ - Fallback state machine
//   - registry/  - Instance and source bookkeeping
//   - engine/    - Facade
//
// Most types are re-exported at the root level for convenience.
package acquire

import (
	"github.com/vietddude/fullres/internal/acquire/engine"
	"github.com/vietddude/fullres/internal/acquire/race"
	"github.com/vietddude/fullres/internal/acquire/registry"
	"github.com/vietddude/fullres/internal/acquire/sequencer"
	"github.com/vietddude/fullres/internal/acquire/strategy"
)

// =============================================================================
// Re-exported types from strategy package
// =============================================================================

// Strategy rewrites a resource URL into an alternate candidate.
type Strategy = strategy.Strategy

// StrategyRegistry is the ordered strategy catalog.
type StrategyRegistry = strategy.Registry

// DefaultChain lists the built-in strategies used when none are configured.
var DefaultChain = strategy.DefaultChain

// NewStrategyRegistry builds a registry from built-in strategy names.
func NewStrategyRegistry(names ...string) (*StrategyRegistry, error) {
	return strategy.NewRegistryFromNames(names...)
}

// NewFixed creates a strategy pointing at a fixed fallback URL.
func NewFixed(name, target string) *strategy.Fixed {
	return strategy.NewFixed(name, target)
}

// =============================================================================
// Re-exported types from race package
// =============================================================================

// Fetcher is the host fetch primitive.
type Fetcher = race.Fetcher

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc = race.FetcherFunc

// Racer races candidate fetches.
type Racer = race.Racer

// RaceError reports why a race produced no winner.
type RaceError = race.RaceError

// NewRacer creates a racer over f.
func NewRacer(f Fetcher, opts ...race.Option) *Racer {
	return race.NewRacer(f, opts...)
}

// =============================================================================
// Re-exported types from registry package
// =============================================================================

// SourceStore records terminal verdicts for source URLs.
type SourceStore = registry.SourceStore

// SourceStats counts known sources per verdict.
type SourceStats = registry.SourceStats

// Verdict labels for known sources.
const (
	VerdictFailed    = registry.VerdictFailed
	VerdictSucceeded = registry.VerdictSucceeded
)

// NewMemorySources creates an in-memory SourceStore.
func NewMemorySources() *registry.MemorySources {
	return registry.NewMemorySources()
}

// =============================================================================
// Re-exported types from sequencer and engine packages
// =============================================================================

// FilterFunc decides whether an instance may be attempted.
type FilterFunc = sequencer.FilterFunc

// Engine is the acquisition facade.
type Engine = engine.Engine

// Request describes one resource to acquire.
type Request = engine.Request

// Option configures an Engine.
type Option = engine.Option

// TerminalFunc receives the final snapshot of an instance.
type TerminalFunc = engine.TerminalFunc

// NewEngine creates an acquisition engine.
func NewEngine(strategies *StrategyRegistry, racer sequencer.Racer, opts ...Option) *Engine {
	return engine.New(strategies, racer, opts...)
}

var (
	WithFilter     = engine.WithFilter
	WithTimeout    = engine.WithTimeout
	WithEager      = engine.WithEager
	WithOnTerminal = engine.WithOnTerminal
	WithSources    = engine.WithSources
	WithLogger     = engine.WithLogger
)
