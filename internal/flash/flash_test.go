package flash

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "apply.sh")
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o700)
	require.NoError(t, err)

	return path
}

func TestCommandFlasher(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		script   string
		expected Result
		fails    bool
	}{
		{
			name:     "Applied",
			script:   "exit 0",
			expected: Applied,
		},
		{
			name:     "No update",
			script:   "exit 3",
			expected: NoUpdate,
		},
		{
			name:   "Failure",
			script: "echo 'flash write error' >&2; exit 1",
			fails:  true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := &CommandFlasher{Command: writeScript(t, tc.script), NoUpdateExitCode: 3}

			res, err := f.Apply(context.Background(), Payload{Path: "/nonexistent/firmware.tmp"})
			if tc.fails {
				require.ErrorIs(t, err, ErrApply)
				require.Contains(t, err.Error(), "flash write error")

				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.expected, res)
		})
	}
}

func TestCommandFlasherArguments(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "args")
	script := writeScript(t, `echo "$@" > `+out)

	f := &CommandFlasher{Command: script, Args: []string{"--slot", "b"}}

	res, err := f.Apply(context.Background(), Payload{Path: "/var/lib/ota-agent/firmware-1.tmp"})
	require.NoError(t, err)
	require.Equal(t, Applied, res)

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "--slot b /var/lib/ota-agent/firmware-1.tmp\n", string(content))
}

func TestCommandFlasherNoUpdateCodeDisabled(t *testing.T) {
	t.Parallel()

	f := &CommandFlasher{Command: writeScript(t, "exit 3")}

	_, err := f.Apply(context.Background(), Payload{Path: "/nonexistent"})
	require.ErrorIs(t, err, ErrApply)
}

func TestCommandFlasherUnconfigured(t *testing.T) {
	t.Parallel()

	f := &CommandFlasher{}

	_, err := f.Apply(context.Background(), Payload{})
	require.ErrorIs(t, err, ErrApply)
}

func TestRestarter(t *testing.T) {
	t.Parallel()

	_, err := NewRestarter("bogus", "", 0)
	require.Error(t, err)

	_, err = NewRestarter(RestartService, "", 0)
	require.Error(t, err)

	// No restart.
	r, err := NewRestarter(RestartNone, "", 0)
	require.NoError(t, err)
	require.NoError(t, r.Restart(context.Background()))

	// Reboot.
	rebooted := false

	r, err = NewRestarter(RestartReboot, "", time.Millisecond)
	require.NoError(t, err)

	r.reboot = func(context.Context) error {
		rebooted = true

		return nil
	}

	require.NoError(t, r.Restart(context.Background()))
	require.True(t, rebooted)

	// Service restart.
	var restarted []string

	r, err = NewRestarter(RestartService, "ota-agent.service", 0)
	require.NoError(t, err)

	r.restartUnit = func(_ context.Context, units ...string) error {
		restarted = units

		return nil
	}

	require.NoError(t, r.Restart(context.Background()))
	require.Equal(t, []string{"ota-agent.service"}, restarted)
}

func TestRestarterCancelled(t *testing.T) {
	t.Parallel()

	r, err := NewRestarter(RestartReboot, "", time.Hour)
	require.NoError(t, err)

	r.reboot = func(context.Context) error {
		t.Fatal("reboot shouldn't be called")

		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, r.Restart(ctx), context.Canceled)
}
