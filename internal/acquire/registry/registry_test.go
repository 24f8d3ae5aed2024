package registry_test

import (
	"testing"

	"github.com/vietddude/fullres/internal/acquire/registry"
	"github.com/vietddude/fullres/internal/acquire/registry/registrytest"
	"github.com/vietddude/fullres/internal/core/domain"
)

func TestMemorySources_Contract(t *testing.T) {
	registrytest.RunSourceStoreContract(t, registry.NewMemorySources())
}

func TestRegistry_BeginIsIdempotent(t *testing.T) {
	reg := registry.New(nil)

	inst := domain.NewResourceInstance("img-1", "http://x/full.png", "http://x/thumb.png")
	got, created := reg.Begin(inst)
	if !created {
		t.Fatal("expected first Begin to create the instance")
	}
	if got.StrategyIndex != -1 || got.State != domain.StateIdle {
		t.Errorf("unexpected initial instance %+v", got)
	}

	got.State = domain.StateAttempting
	reg.Update(got)

	again, created := reg.Begin(domain.NewResourceInstance("img-1", "http://other", ""))
	if created {
		t.Fatal("expected second Begin to return the existing instance")
	}
	if again.OriginalSource != "http://x/full.png" || again.State != domain.StateAttempting {
		t.Errorf("expected existing snapshot, got %+v", again)
	}
}

func TestRegistry_TerminalSnapshotIsFinal(t *testing.T) {
	reg := registry.New(nil)
	inst := domain.NewResourceInstance("img-1", "http://x/full.png", "")
	reg.Begin(inst)

	inst.State = domain.StateSucceeded
	reg.Update(inst)

	inst.State = domain.StateFailed
	reg.Update(inst)

	got, _ := reg.Get("img-1")
	if got.State != domain.StateSucceeded {
		t.Errorf("terminal snapshot was overwritten: %s", got.State)
	}
}

func TestRegistry_ListAndCount(t *testing.T) {
	reg := registry.New(nil)
	for _, id := range []string{"b", "a", "c"} {
		reg.Begin(domain.NewResourceInstance(id, "http://x/"+id, ""))
	}

	list := reg.List()
	if len(list) != 3 || list[0].ID != "a" || list[2].ID != "c" {
		t.Errorf("unexpected list order: %+v", list)
	}
	if reg.CountByState()[domain.StateIdle] != 3 {
		t.Errorf("expected 3 idle instances, got %v", reg.CountByState())
	}
}

func TestRegistry_SnapshotsAreCopies(t *testing.T) {
	reg := registry.New(nil)
	inst := domain.NewResourceInstance("img-1", "http://x/full.png", "")
	inst.Attempts = []domain.Attempt{{Strategy: "DDG"}}
	reg.Begin(inst)

	got, _ := reg.Get("img-1")
	got.Attempts[0].Strategy = "mutated"

	again, _ := reg.Get("img-1")
	if again.Attempts[0].Strategy != "DDG" {
		t.Error("snapshot shares attempt history with the registry")
	}
}

func TestRegistry_CanceledInstanceIsReadmitted(t *testing.T) {
	reg := registry.New(nil)
	inst := domain.NewResourceInstance("img-1", "http://x/full.png", "")
	reg.Begin(inst)

	canceled := inst
	canceled.State = domain.StateFailed
	canceled.FailureReason = domain.ReasonCanceled
	reg.Update(canceled)

	got, created := reg.Begin(domain.NewResourceInstance("img-1", "http://x/full.png", ""))
	if !created {
		t.Fatal("expected canceled instance to be admitted again")
	}
	if got.State != domain.StateIdle {
		t.Errorf("expected fresh idle instance, got %s", got.State)
	}

	exhausted := got
	exhausted.State = domain.StateFailed
	exhausted.FailureReason = domain.ReasonExhausted
	reg.Update(exhausted)

	if _, created := reg.Begin(domain.NewResourceInstance("img-1", "http://x/full.png", "")); created {
		t.Error("expected exhausted instance to stay final")
	}
}
