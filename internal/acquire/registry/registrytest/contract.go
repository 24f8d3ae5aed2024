// Package registrytest holds a behavioural suite shared by SourceStore
// implementations.
package registrytest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/vietddude/fullres/internal/acquire/registry"
)

// RunSourceStoreContract verifies that store honours the SourceStore contract.
// The store must be empty when the suite starts.
func RunSourceStoreContract(t *testing.T, store registry.SourceStore) {
	ctx := context.Background()

	t.Run("RecordAndQuery", func(t *testing.T) {
		added, err := store.RecordFailure(ctx, "http://bad/a.png")
		if err != nil || !added {
			t.Fatalf("RecordFailure = (%v, %v), want (true, nil)", added, err)
		}
		added, err = store.RecordSuccess(ctx, "http://good/a.png")
		if err != nil || !added {
			t.Fatalf("RecordSuccess = (%v, %v), want (true, nil)", added, err)
		}

		if ok, _ := store.IsKnownFailed(ctx, "http://bad/a.png"); !ok {
			t.Error("expected bad url to be known failed")
		}
		if ok, _ := store.IsKnownSucceeded(ctx, "http://good/a.png"); !ok {
			t.Error("expected good url to be known succeeded")
		}
		if ok, _ := store.IsKnownFailed(ctx, "http://unknown/a.png"); ok {
			t.Error("unknown url must not be known failed")
		}
	})

	t.Run("WriteOnce", func(t *testing.T) {
		added, err := store.RecordSuccess(ctx, "http://bad/a.png")
		if err != nil {
			t.Fatalf("RecordSuccess failed: %v", err)
		}
		if added {
			t.Error("a failed url must not be re-recorded as succeeded")
		}
		if ok, _ := store.IsKnownSucceeded(ctx, "http://bad/a.png"); ok {
			t.Error("url appears in both sets")
		}

		added, _ = store.RecordFailure(ctx, "http://bad/a.png")
		if added {
			t.Error("recording the same verdict twice must report false")
		}
	})

	t.Run("ConcurrentWrites", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				u := fmt.Sprintf("http://race/%d.png", i%5)
				if i%2 == 0 {
					_, _ = store.RecordFailure(ctx, u)
				} else {
					_, _ = store.RecordSuccess(ctx, u)
				}
			}(i)
		}
		wg.Wait()

		for i := 0; i < 5; i++ {
			u := fmt.Sprintf("http://race/%d.png", i)
			failed, _ := store.IsKnownFailed(ctx, u)
			succeeded, _ := store.IsKnownSucceeded(ctx, u)
			if failed == succeeded {
				t.Errorf("%s: failed=%v succeeded=%v, want exactly one verdict", u, failed, succeeded)
			}
		}
	})

	t.Run("Stats", func(t *testing.T) {
		stats, err := store.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if stats.Failed+stats.Succeeded != 7 {
			t.Errorf("expected 7 known sources, got %+v", stats)
		}
		if stats.Failed < 1 || stats.Succeeded < 1 {
			t.Errorf("expected both sets populated, got %+v", stats)
		}
	})
}
