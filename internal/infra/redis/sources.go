package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/fullres/internal/acquire/registry"
)

// SourceStore implements registry.SourceStore with one Redis hash per run.
// HSETNX keeps each URL's first verdict, so concurrent engines sharing a run id
// agree on it.
type SourceStore struct {
	rdb   *redis.Client
	runID string
	c     *Client
}

// NewSourceStore creates a store namespaced by runID.
func NewSourceStore(client *Client, runID string) *SourceStore {
	return &SourceStore{
		rdb:   client.rdb,
		runID: runID,
		c:     client,
	}
}

// Key helpers
func sourcesKey(runID string) string {
	return fmt.Sprintf("fullres:sources:%s", runID)
}

// RunID returns the namespace of this store.
func (s *SourceStore) RunID() string {
	return s.runID
}

func (s *SourceStore) verdict(ctx context.Context, u string) (registry.Verdict, error) {
	v, err := s.rdb.HGet(ctx, sourcesKey(s.runID), u).Result()
	if err == redis.Nil {
		return registry.VerdictNone, nil
	}
	if err != nil {
		return registry.VerdictNone, fmt.Errorf("hget failed: %w", err)
	}
	return registry.Verdict(v), nil
}

func (s *SourceStore) record(ctx context.Context, u string, v registry.Verdict) (bool, error) {
	key := sourcesKey(s.runID)

	pipe := s.rdb.TxPipeline()
	set := pipe.HSetNX(ctx, key, u, string(v))
	if s.c.ttl > 0 {
		pipe.Expire(ctx, key, s.c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("hsetnx failed: %w", err)
	}
	return set.Val(), nil
}

// IsKnownFailed checks the failed verdict for u.
func (s *SourceStore) IsKnownFailed(ctx context.Context, u string) (bool, error) {
	v, err := s.verdict(ctx, u)
	return v == registry.VerdictFailed, err
}

// IsKnownSucceeded checks the succeeded verdict for u.
func (s *SourceStore) IsKnownSucceeded(ctx context.Context, u string) (bool, error) {
	v, err := s.verdict(ctx, u)
	return v == registry.VerdictSucceeded, err
}

// RecordFailure marks u as failed unless it already has a verdict.
func (s *SourceStore) RecordFailure(ctx context.Context, u string) (bool, error) {
	return s.record(ctx, u, registry.VerdictFailed)
}

// RecordSuccess marks u as succeeded unless it already has a verdict.
func (s *SourceStore) RecordSuccess(ctx context.Context, u string) (bool, error) {
	return s.record(ctx, u, registry.VerdictSucceeded)
}

// Stats counts verdicts in the run hash.
func (s *SourceStore) Stats(ctx context.Context) (registry.SourceStats, error) {
	vals, err := s.rdb.HVals(ctx, sourcesKey(s.runID)).Result()
	if err != nil {
		return registry.SourceStats{}, fmt.Errorf("hvals failed: %w", err)
	}

	var stats registry.SourceStats
	for _, v := range vals {
		switch registry.Verdict(v) {
		case registry.VerdictFailed:
			stats.Failed++
		case registry.VerdictSucceeded:
			stats.Succeeded++
		}
	}
	return stats, nil
}

// Clear drops every verdict recorded for this run.
func (s *SourceStore) Clear(ctx context.Context) error {
	return s.rdb.Del(ctx, sourcesKey(s.runID)).Err()
}

var _ registry.SourceStore = (*SourceStore)(nil)
