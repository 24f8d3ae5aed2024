package sequencer

import (
	"errors"

	"github.com/vietddude/fullres/internal/core/domain"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// ValidTransitions defines allowed state transitions.
// Filtered is only reachable from Idle; terminal states have no way out.
var ValidTransitions = map[domain.State][]domain.State{
	domain.StateIdle: {domain.StateAttempting, domain.StateFiltered},
	domain.StateAttempting: {
		domain.StateAttempting,
		domain.StateSucceeded,
		domain.StateFailed,
	},
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to domain.State) bool {
	for _, target := range ValidTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}
