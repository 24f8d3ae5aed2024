// Package registry tracks acquisition instances and the known-failed /
// known-succeeded source URLs shared between them.
package registry

import (
	"context"
	"sync"
)

// Verdict is the terminal classification of a source URL.
type Verdict string

const (
	VerdictNone      Verdict = ""
	VerdictFailed    Verdict = "failed"
	VerdictSucceeded Verdict = "succeeded"
)

// SourceStats counts known sources per verdict.
type SourceStats struct {
	Failed    int `json:"failed"`
	Succeeded int `json:"succeeded"`
}

// SourceStore records terminal verdicts for source URLs.
// Membership is write-once: the first verdict recorded for a URL is kept, so a
// URL never appears as both failed and succeeded.
type SourceStore interface {
	// IsKnownFailed reports whether u terminally failed for any instance
	IsKnownFailed(ctx context.Context, u string) (bool, error)

	// IsKnownSucceeded reports whether u terminally succeeded
	IsKnownSucceeded(ctx context.Context, u string) (bool, error)

	// RecordFailure marks u as failed unless it already has a verdict.
	// It returns false when an earlier verdict was kept.
	RecordFailure(ctx context.Context, u string) (bool, error)

	// RecordSuccess marks u as succeeded unless it already has a verdict
	RecordSuccess(ctx context.Context, u string) (bool, error)

	// Stats returns the set sizes
	Stats(ctx context.Context) (SourceStats, error)
}

// MemorySources implements SourceStore with an in-memory map.
type MemorySources struct {
	mu       sync.RWMutex
	verdicts map[string]Verdict
}

// NewMemorySources creates an empty in-memory store.
func NewMemorySources() *MemorySources {
	return &MemorySources{
		verdicts: make(map[string]Verdict),
	}
}

func (m *MemorySources) verdict(u string) Verdict {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.verdicts[u]
}

func (m *MemorySources) record(u string, v Verdict) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.verdicts[u]; exists {
		return false
	}
	m.verdicts[u] = v
	return true
}

// IsKnownFailed checks the failed set.
func (m *MemorySources) IsKnownFailed(ctx context.Context, u string) (bool, error) {
	return m.verdict(u) == VerdictFailed, nil
}

// IsKnownSucceeded checks the succeeded set.
func (m *MemorySources) IsKnownSucceeded(ctx context.Context, u string) (bool, error) {
	return m.verdict(u) == VerdictSucceeded, nil
}

// RecordFailure adds u to the failed set.
func (m *MemorySources) RecordFailure(ctx context.Context, u string) (bool, error) {
	return m.record(u, VerdictFailed), nil
}

// RecordSuccess adds u to the succeeded set.
func (m *MemorySources) RecordSuccess(ctx context.Context, u string) (bool, error) {
	return m.record(u, VerdictSucceeded), nil
}

// Stats returns the set sizes.
func (m *MemorySources) Stats(ctx context.Context) (SourceStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats SourceStats
	for _, v := range m.verdicts {
		switch v {
		case VerdictFailed:
			stats.Failed++
		case VerdictSucceeded:
			stats.Succeeded++
		}
	}
	return stats, nil
}
