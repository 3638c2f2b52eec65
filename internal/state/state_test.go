package state_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/otaflow/ota-agent/api"
	"github.com/otaflow/ota-agent/internal/state"
)

func record(i int, outcome api.UpdateOutcome) api.OutcomeRecord {
	return api.OutcomeRecord{
		CycleID:          fmt.Sprintf("cycle-%d", i),
		Outcome:          outcome,
		CurrentVersion:   "1.1.0-build-20231201",
		CandidateVersion: "1.2.0-build-20240101",
		Timestamp:        time.Date(2024, 1, 1, 12, i, 0, 0, time.UTC),
	}
}

func TestLoadOrCreate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "lib", "state.yaml")

	s, err := state.LoadOrCreate(path)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Nil(t, s.LastOutcome)
	require.Equal(t, "Never checked", s.UpdateState().Status)

	// Record an outcome and reload.
	err = s.PublishOutcome(context.Background(), record(1, api.OutcomeApplied))
	require.NoError(t, err)

	reloaded, err := state.LoadOrCreate(path)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastOutcome)
	require.Equal(t, "cycle-1", reloaded.LastOutcome.CycleID)
	require.True(t, reloaded.LastCheck.Equal(time.Date(2024, 1, 1, 12, 1, 0, 0, time.UTC)))
	require.Equal(t, "Applied 1.2.0-build-20240101", reloaded.UpdateState().Status)
}

func TestHistoryIsCapped(t *testing.T) {
	t.Parallel()

	s, err := state.LoadOrCreate(filepath.Join(t.TempDir(), "state.yaml"))
	require.NoError(t, err)

	for i := range state.MaxHistory + 5 {
		err = s.PublishOutcome(context.Background(), record(i, api.OutcomeNoUpdate))
		require.NoError(t, err)
	}

	history := s.Outcomes()
	require.Len(t, history, state.MaxHistory)
	require.Equal(t, "cycle-5", history[0].CycleID)
	require.Equal(t, fmt.Sprintf("cycle-%d", state.MaxHistory+4), history[len(history)-1].CycleID)
	require.Equal(t, "Up to date", s.UpdateState().Status)
}

func TestFailedStatus(t *testing.T) {
	t.Parallel()

	s, err := state.LoadOrCreate(filepath.Join(t.TempDir(), "state.yaml"))
	require.NoError(t, err)

	r := record(1, api.OutcomeFailed)
	r.Reason = api.ReasonHashMismatch

	require.NoError(t, s.PublishOutcome(context.Background(), r))
	require.Equal(t, "Failed: hash_mismatch", s.UpdateState().Status)
}

func TestLoadInvalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
	}{
		{name: "Unknown field", content: "version: 1\nbogus: true\n"},
		{name: "Newer version", content: "version: 99\n"},
		{name: "Not yaml", content: "version: [\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "state.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o600))

			_, err := state.LoadOrCreate(path)
			require.Error(t, err)
		})
	}
}
