package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"

	"github.com/vietddude/fullres/internal/acquire/registry/registrytest"
	"github.com/vietddude/fullres/internal/infra/redis"
)

func newStore(t *testing.T, ttl time.Duration) (*redis.SourceStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return redis.NewSourceStore(redis.NewFromClient(client, ttl), uuid.NewString()), mr
}

func TestSourceStore_Contract(t *testing.T) {
	store, _ := newStore(t, 0)
	registrytest.RunSourceStoreContract(t, store)
}

func TestSourceStore_TTL(t *testing.T) {
	store, mr := newStore(t, time.Hour)
	ctx := context.Background()

	if _, err := store.RecordFailure(ctx, "http://bad/a.png"); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	key := "fullres:sources:" + store.RunID()
	if ttl := mr.TTL(key); ttl != time.Hour {
		t.Errorf("expected 1h ttl on %s, got %v", key, ttl)
	}

	mr.FastForward(2 * time.Hour)
	if ok, _ := store.IsKnownFailed(ctx, "http://bad/a.png"); ok {
		t.Error("expected verdicts to expire with the run")
	}
}

func TestSourceStore_RunsAreIsolated(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewFromClient(backend.NewClient(&backend.Options{Addr: mr.Addr()}), 0)
	a := redis.NewSourceStore(client, "run-a")
	b := redis.NewSourceStore(client, "run-b")
	ctx := context.Background()

	a.RecordFailure(ctx, "http://x/img.png")
	if ok, _ := b.IsKnownFailed(ctx, "http://x/img.png"); ok {
		t.Error("verdicts leaked across runs")
	}

	if err := a.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if stats, _ := a.Stats(ctx); stats.Failed != 0 {
		t.Errorf("expected empty stats after clear, got %+v", stats)
	}
}

func TestNewClient_BadURL(t *testing.T) {
	if _, err := redis.NewClient(redis.Config{URL: "not-a-url"}); err == nil {
		t.Fatal("expected error for invalid url")
	}
}

func TestNewClient_Connects(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client, err := redis.NewClient(redis.Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer client.Close()

	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
