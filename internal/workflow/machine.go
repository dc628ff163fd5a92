// Package workflow governs the review lifecycle of procurement records.
package workflow

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/licitawatch/licitawatch/internal/clock"
	"github.com/licitawatch/licitawatch/internal/record"
)

// ErrInvalidTransition signals a transition not present in the edge table.
var ErrInvalidTransition = errors.New("invalid workflow transition")

// transitions is the fixed allowed-edge graph. Terminal states have no entry.
var transitions = map[record.WorkflowState][]record.WorkflowState{
	record.StateDiscovered: {record.StateEvaluating, record.StateDiscarded},
	record.StateEvaluating: {record.StatePreparing, record.StateDiscarded},
	record.StatePreparing:  {record.StateSubmitted, record.StateDiscarded},
}

// Machine validates transitions and appends audit history.
type Machine struct {
	clock  clock.Clock
	logger *zap.Logger
}

// New builds a Machine.
func New(clk clock.Clock, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{clock: clk, logger: logger}
}

// CanTransition reports whether from→to is an allowed edge.
func CanTransition(from, to record.WorkflowState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves rec to next, appending an immutable history entry.
// On an illegal edge the record is left untouched and the error describes
// both states.
func (m *Machine) Transition(rec *record.Record, next record.WorkflowState, notes string) error {
	if rec == nil {
		return fmt.Errorf("workflow: record is nil")
	}
	if !next.Valid() {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidTransition, next)
	}
	current := rec.WorkflowState
	if current.Terminal() {
		return fmt.Errorf("%w: %s is terminal, cannot move to %s", ErrInvalidTransition, current, next)
	}
	if !CanTransition(current, next) {
		return fmt.Errorf("%w: %s -> %s is not an allowed edge", ErrInvalidTransition, current, next)
	}

	rec.WorkflowHistory = append(rec.WorkflowHistory, record.TransitionEntry{
		From:      current,
		To:        next,
		Timestamp: m.clock.Now(),
		Notes:     notes,
	})
	rec.WorkflowState = next

	m.logger.Info("workflow transition",
		zap.String("record_id", rec.ID),
		zap.String("from", string(current)),
		zap.String("to", string(next)),
	)
	return nil
}

// History returns a copy of the transition log.
func (m *Machine) History(rec *record.Record) []record.TransitionEntry {
	if rec == nil {
		return nil
	}
	return append([]record.TransitionEntry(nil), rec.WorkflowHistory...)
}

// Summary is a read-only snapshot of a record's lifecycle position.
type Summary struct {
	State       record.WorkflowState   `json:"state"`
	Terminal    bool                   `json:"terminal"`
	Transitions int                    `json:"transitions"`
	NextStates  []record.WorkflowState `json:"next_states,omitempty"`
}

// Summarize reports the current state without mutating anything.
func (m *Machine) Summarize(rec *record.Record) Summary {
	if rec == nil {
		return Summary{}
	}
	return Summary{
		State:       rec.WorkflowState,
		Terminal:    rec.WorkflowState.Terminal(),
		Transitions: len(rec.WorkflowHistory),
		NextStates:  append([]record.WorkflowState(nil), transitions[rec.WorkflowState]...),
	}
}
