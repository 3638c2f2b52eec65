package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSchedulerStartup(t *testing.T) {
	t.Parallel()

	scheduler, err := NewScheduler()
	require.NoError(t, err)
	require.Empty(t, scheduler.jobs, "Scheduler should have no registered jobs after creation")
}

func TestSchedulerUsage(t *testing.T) {
	t.Parallel()

	scheduler, err := NewScheduler()
	require.NoError(t, err)

	// Register the periodic check.
	err = scheduler.RegisterJob(JobUpdateCheck, "0 */6 * * *", func(_ context.Context) error { return nil })
	require.NoError(t, err)
	require.Len(t, scheduler.jobs, 1)
	require.Contains(t, scheduler.jobs, JobUpdateCheck)

	// Register the heartbeat.
	err = scheduler.RegisterInterval(JobHeartbeat, time.Minute, func(_ context.Context) error { return nil })
	require.NoError(t, err)
	require.Len(t, scheduler.jobs, 2)
	require.Contains(t, scheduler.jobs, JobHeartbeat)

	// Update the periodic check.
	err = scheduler.RegisterJob(JobUpdateCheck, "0 2 * * 1", func(_ context.Context) error { return nil })
	require.NoError(t, err)
	require.Len(t, scheduler.jobs, 2)

	// Remove it.
	require.NoError(t, scheduler.RemoveJob(JobUpdateCheck))
	require.NotContains(t, scheduler.jobs, JobUpdateCheck)
	require.NoError(t, scheduler.RemoveJob(JobUpdateCheck))

	_, ok := scheduler.NextRun(JobUpdateCheck)
	require.False(t, ok)
}

func TestIntervalJobRuns(t *testing.T) {
	t.Parallel()

	scheduler, err := NewScheduler()
	require.NoError(t, err)

	ran := make(chan struct{}, 1)

	err = scheduler.RegisterInterval(JobHeartbeat, 20*time.Millisecond, func(_ context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}

		// Failures are logged, not fatal.
		return errors.New("heartbeat failed")
	})
	require.NoError(t, err)

	scheduler.Start()

	defer func() {
		require.NoError(t, scheduler.Shutdown())
	}()

	next, ok := scheduler.NextRun(JobHeartbeat)
	require.True(t, ok)
	require.False(t, next.IsZero())

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("Heartbeat job never ran")
	}
}

func TestInvalidInterval(t *testing.T) {
	t.Parallel()

	scheduler, err := NewScheduler()
	require.NoError(t, err)

	err = scheduler.RegisterInterval(JobHeartbeat, 0, func(_ context.Context) error { return nil })
	require.ErrorIs(t, err, ErrInvalidInterval)
	require.Empty(t, scheduler.jobs)
}

func TestCrontabValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		crontab  string
		expected error
	}{
		{
			name:     "Valid standard cron",
			crontab:  "0 0 * * *",
			expected: nil,
		},
		{
			name:     "Too few fields",
			crontab:  "0 0 * *",
			expected: ErrInvalidCronTab,
		},
		{
			name:     "Too many fields",
			crontab:  "0 0 * * * *",
			expected: ErrInvalidCronTab,
		},
		{
			name:     "Non-numeric characters",
			crontab:  "a b c d e",
			expected: ErrInvalidCronTab,
		},
		{
			name:     "Empty string",
			crontab:  "",
			expected: ErrInvalidCronTab,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			scheduler, err := NewScheduler()
			require.NoError(t, err)

			got := scheduler.RegisterJob(JobUpdateCheck, tc.crontab, func(_ context.Context) error { return nil })
			require.Equal(t, tc.expected, got, tc.name)
			require.Equal(t, tc.expected, ValidateCronTab(tc.crontab))
		})
	}
}
