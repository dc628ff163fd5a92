package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licitawatch/licitawatch/internal/clock"
	"github.com/licitawatch/licitawatch/internal/record"
)

func newTestMachine() *Machine {
	return New(clock.Fixed{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}, nil)
}

func TestTransitionHappyPath(t *testing.T) {
	m := newTestMachine()
	rec := &record.Record{ID: "r1", WorkflowState: record.StateDiscovered}

	for _, next := range []record.WorkflowState{
		record.StateEvaluating,
		record.StatePreparing,
		record.StateSubmitted,
	} {
		require.NoError(t, m.Transition(rec, next, "step"))
	}

	assert.Equal(t, record.StateSubmitted, rec.WorkflowState)
	require.Len(t, rec.WorkflowHistory, 3)
	assert.Equal(t, record.StateDiscovered, rec.WorkflowHistory[0].From)
	assert.Equal(t, record.StateEvaluating, rec.WorkflowHistory[0].To)
}

func TestTransitionRejectsSkippingStates(t *testing.T) {
	m := newTestMachine()
	rec := &record.Record{WorkflowState: record.StateDiscovered}

	err := m.Transition(rec, record.StateSubmitted, "")
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, record.StateDiscovered, rec.WorkflowState)
	assert.Empty(t, rec.WorkflowHistory)
}

func TestTransitionTerminalStatesHaveNoExit(t *testing.T) {
	m := newTestMachine()
	for _, terminal := range []record.WorkflowState{record.StateSubmitted, record.StateDiscarded} {
		rec := &record.Record{WorkflowState: terminal}
		for _, next := range []record.WorkflowState{
			record.StateDiscovered,
			record.StateEvaluating,
			record.StatePreparing,
			record.StateDiscarded,
		} {
			err := m.Transition(rec, next, "")
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", terminal, next)
		}
	}
}

func TestTransitionDiscardedReachableFromAnyNonTerminal(t *testing.T) {
	m := newTestMachine()
	for _, from := range []record.WorkflowState{
		record.StateDiscovered,
		record.StateEvaluating,
		record.StatePreparing,
	} {
		rec := &record.Record{WorkflowState: from}
		require.NoError(t, m.Transition(rec, record.StateDiscarded, "not interesting"))
		assert.Equal(t, record.StateDiscarded, rec.WorkflowState)
	}
}

func TestTransitionUnknownState(t *testing.T) {
	m := newTestMachine()
	rec := &record.Record{WorkflowState: record.StateDiscovered}
	err := m.Transition(rec, record.WorkflowState("archived"), "")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSummarize(t *testing.T) {
	m := newTestMachine()
	rec := &record.Record{WorkflowState: record.StateDiscovered}
	require.NoError(t, m.Transition(rec, record.StateEvaluating, ""))

	sum := m.Summarize(rec)
	assert.Equal(t, record.StateEvaluating, sum.State)
	assert.False(t, sum.Terminal)
	assert.Equal(t, 1, sum.Transitions)
	assert.ElementsMatch(t,
		[]record.WorkflowState{record.StatePreparing, record.StateDiscarded},
		sum.NextStates,
	)
}

func TestHistoryReturnsCopy(t *testing.T) {
	m := newTestMachine()
	rec := &record.Record{WorkflowState: record.StateDiscovered}
	require.NoError(t, m.Transition(rec, record.StateEvaluating, ""))

	h := m.History(rec)
	h[0].Notes = "mutated"
	assert.NotEqual(t, "mutated", rec.WorkflowHistory[0].Notes)
}
