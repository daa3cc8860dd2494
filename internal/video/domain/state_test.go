package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to State
		ok       bool
	}{
		{Uploading, Validating, true},
		{Validating, Processing, true},
		{Validating, Failed, true},
		{Processing, Indexed, true},
		{Processing, Failed, true},
		{Uploading, Deleted, true},
		{Processing, Deleted, true},

		{Uploading, Processing, false},
		{Uploading, Indexed, false},
		{Validating, Indexed, false},
		{Indexed, Processing, false},
		{Indexed, Failed, false},
		{Indexed, Deleted, false},
		{Failed, Validating, false},
		{Failed, Deleted, false},
		{Deleted, Uploading, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestValidateTransition_SameStateIsNoop(t *testing.T) {
	require.NoError(t, ValidateTransition(Processing, Processing))
	require.NoError(t, ValidateTransition(Indexed, Indexed))
}

func TestParseState(t *testing.T) {
	s, err := ParseState("validating")
	require.NoError(t, err)
	require.Equal(t, Validating, s)

	// Строки вне канонического набора отвергаются на чтении.
	_, err = ParseState("VALIDATING")
	require.Error(t, err)
	_, err = ParseState("ready")
	require.Error(t, err)
	_, err = ParseState("")
	require.Error(t, err)
}

func TestTerminal(t *testing.T) {
	assert.True(t, Terminal(Indexed))
	assert.True(t, Terminal(Failed))
	assert.True(t, Terminal(Deleted))
	assert.False(t, Terminal(Uploading))
	assert.False(t, Terminal(Validating))
	assert.False(t, Terminal(Processing))
}

func TestJobTransitions(t *testing.T) {
	assert.True(t, CanTransitionJob(JobPending, JobRunning))
	assert.True(t, CanTransitionJob(JobRunning, JobCompleted))
	assert.True(t, CanTransitionJob(JobRunning, JobFailed))
	assert.False(t, CanTransitionJob(JobCompleted, JobRunning))
	assert.False(t, CanTransitionJob(JobFailed, JobPending))

	_, err := ParseJobState("running")
	require.NoError(t, err)
	_, err = ParseJobState("paused")
	require.Error(t, err)
}
