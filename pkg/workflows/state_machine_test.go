package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type testStatus string

func newTestMachine() *StateMachine[testStatus] {
	return NewStateMachine(map[testStatus][]testStatus{
		"DRAFT":     {"SUBMITTED"},
		"SUBMITTED": {"APPROVED", "REJECTED"},
		"APPROVED":  {},
		"REJECTED":  {},
	})
}

func TestCanTransition(t *testing.T) {
	sm := newTestMachine()

	assert.True(t, sm.CanTransition("DRAFT", "SUBMITTED"))
	assert.True(t, sm.CanTransition("SUBMITTED", "REJECTED"))
	assert.False(t, sm.CanTransition("DRAFT", "APPROVED"))
	assert.False(t, sm.CanTransition("APPROVED", "DRAFT"))
	assert.False(t, sm.CanTransition("UNKNOWN", "DRAFT"))
}

func TestTerminalStates(t *testing.T) {
	sm := newTestMachine()

	assert.True(t, sm.IsTerminal("APPROVED"))
	assert.True(t, sm.IsTerminal("REJECTED"))
	assert.False(t, sm.IsTerminal("DRAFT"))
	assert.False(t, sm.IsTerminal("UNKNOWN"))
	assert.Empty(t, sm.GetAllowedTransitions("UNKNOWN"))
}

func TestTransitionErrors(t *testing.T) {
	sm := newTestMachine()

	assert.NoError(t, sm.Transition("SUBMITTED", "APPROVED"))

	err := sm.Transition("APPROVED", "REJECTED")
	assert.EqualError(t, err, "status APPROVED is final")

	err = sm.Transition("DRAFT", "APPROVED")
	assert.EqualError(t, err, "invalid status transition from DRAFT to APPROVED")
}
