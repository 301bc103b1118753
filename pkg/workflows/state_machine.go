package workflows

import "fmt"

// StateMachine enforces status transitions for a lifecycle whose states are
// string-backed enums.
type StateMachine[S ~string] struct {
	allowedTransitions map[S][]S
}

// NewStateMachine creates a new state machine with allowed transitions.
// States that map to an empty slice are terminal.
func NewStateMachine[S ~string](transitions map[S][]S) *StateMachine[S] {
	return &StateMachine[S]{allowedTransitions: transitions}
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine[S]) CanTransition(from, to S) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine[S]) GetAllowedTransitions(from S) []S {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []S{}
	}
	return allowed
}

// IsTerminal reports whether no transition leaves the given status.
func (sm *StateMachine[S]) IsTerminal(status S) bool {
	allowed, exists := sm.allowedTransitions[status]
	return exists && len(allowed) == 0
}

// Transition validates from -> to and returns a descriptive error when the
// move is not allowed.
func (sm *StateMachine[S]) Transition(from, to S) error {
	if sm.CanTransition(from, to) {
		return nil
	}
	if sm.IsTerminal(from) {
		return fmt.Errorf("status %s is final", from)
	}
	return fmt.Errorf("invalid status transition from %s to %s", from, to)
}
