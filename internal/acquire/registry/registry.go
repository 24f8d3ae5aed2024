package registry

import (
	"sort"
	"sync"

	"github.com/vietddude/fullres/internal/core/domain"
)

// Registry tracks every instance seen by one engine, keyed by id.
// It stores snapshots; the sequencer publishes a new one after each transition.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]domain.ResourceInstance
	Sources   SourceStore
}

// New creates a registry backed by the given source store.
// A nil store falls back to MemorySources.
func New(sources SourceStore) *Registry {
	if sources == nil {
		sources = NewMemorySources()
	}
	return &Registry{
		instances: make(map[string]domain.ResourceInstance),
		Sources:   sources,
	}
}

// Begin registers inst unless its id is already known.
// When the id exists the stored snapshot is returned with created=false.
// An instance whose caller canceled it is not a verdict and is admitted again.
func (r *Registry) Begin(inst domain.ResourceInstance) (domain.ResourceInstance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.instances[inst.ID]; ok && !existing.Canceled() {
		return existing.Clone(), false
	}
	r.instances[inst.ID] = inst.Clone()
	return inst, true
}

// Update stores a newer snapshot. Snapshots of terminal instances are never
// replaced.
func (r *Registry) Update(inst domain.ResourceInstance) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.instances[inst.ID]; ok && existing.IsTerminal() {
		return
	}
	r.instances[inst.ID] = inst.Clone()
}

// Get returns the snapshot for id.
func (r *Registry) Get(id string) (domain.ResourceInstance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.instances[id]
	if !ok {
		return domain.ResourceInstance{}, false
	}
	return inst.Clone(), true
}

// List returns all snapshots ordered by id.
func (r *Registry) List() []domain.ResourceInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.ResourceInstance, 0, len(r.instances))
	for _, inst := range r.instances {
		result = append(result, inst.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// CountByState returns how many instances are in each state.
func (r *Registry) CountByState() map[domain.State]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[domain.State]int)
	for _, inst := range r.instances {
		counts[inst.State]++
	}
	return counts
}
