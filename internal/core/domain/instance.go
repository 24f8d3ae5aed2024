package domain

import "time"

// ResourceInstance is one logical acquisition request.
// The engine hands out copies; only the sequencer driving an instance mutates it.
type ResourceInstance struct {
	ID             string        `json:"id"`
	OriginalSource string        `json:"original_source"`
	DisplaySource  string        `json:"display_source,omitempty"`
	CurrentSource  string        `json:"current_source,omitempty"`
	StrategyIndex  int           `json:"strategy_index"`
	State          State         `json:"state"`
	FailureReason  FailureReason `json:"failure_reason,omitempty"`
	LastReason     FailureReason `json:"last_reason,omitempty"`
	UsedStrategy   string        `json:"used_strategy,omitempty"`
	Tag            string        `json:"tag,omitempty"`
	Attempts       []Attempt     `json:"attempts,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at,omitempty"`
}

// NewResourceInstance creates an idle instance for the given id.
func NewResourceInstance(id, original, display string) ResourceInstance {
	return ResourceInstance{
		ID:             id,
		OriginalSource: original,
		DisplaySource:  display,
		CurrentSource:  original,
		StrategyIndex:  -1,
		State:          StateIdle,
		StartedAt:      time.Now(),
	}
}

// IsTerminal reports whether the instance reached succeeded, failed or filtered.
func (r ResourceInstance) IsTerminal() bool {
	return r.State.IsTerminal()
}

// Canceled reports whether the chain stopped because its caller gave up.
func (r ResourceInstance) Canceled() bool {
	return r.State == StateFailed && r.FailureReason == ReasonCanceled
}

// Clone returns a deep copy safe to hand to other goroutines.
func (r ResourceInstance) Clone() ResourceInstance {
	c := r
	if r.Attempts != nil {
		c.Attempts = make([]Attempt, len(r.Attempts))
		copy(c.Attempts, r.Attempts)
	}
	return c
}

// Attempt records one round of the fallback chain.
type Attempt struct {
	Strategy   string        `json:"strategy,omitempty"` // empty for the direct source
	Candidates []string      `json:"candidates"`
	Winner     string        `json:"winner,omitempty"`
	Reason     FailureReason `json:"reason,omitempty"`
	Skipped    bool          `json:"skipped,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// State is the lifecycle state of a ResourceInstance.
type State string

const (
	StateIdle       State = "idle"
	StateAttempting State = "attempting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateFiltered   State = "filtered"
)

// IsTerminal reports whether no further transitions are permitted.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateFiltered
}
