package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	id, err := Parse("1.2.0-build-20240101")
	require.NoError(t, err)
	require.Equal(t, "1.2.0", id.Base)
	require.Equal(t, "20240101", id.Timestamp)
	require.True(t, id.IsBuild())
	require.False(t, id.IsLocal())

	id, err = Parse("3f2a1c9-20240101T1200-local")
	require.NoError(t, err)
	require.Equal(t, "3f2a1c9", id.Base)
	require.Equal(t, "20240101T1200", id.Timestamp)
	require.True(t, id.IsLocal())
	require.False(t, id.IsBuild())

	_, err = Parse("1.2.0-build")
	require.ErrorIs(t, err, ErrUndefined)

	_, err = Parse("")
	require.ErrorIs(t, err, ErrUndefined)
}

func TestCompare(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		current   string
		candidate string
		expected  Result
	}{
		{
			name:      "Newer timestamp",
			current:   "1.1.0-build-20231201",
			candidate: "1.2.0-build-20240101",
			expected:  Newer,
		},
		{
			name:      "Older timestamp",
			current:   "1.3.0-build-20240601",
			candidate: "1.2.0-build-20240101",
			expected:  Older,
		},
		{
			name:      "Reflexive",
			current:   "1.2.0-build-20240101",
			candidate: "1.2.0-build-20240101",
			expected:  Same,
		},
		{
			name:      "Reflexive local",
			current:   "3f2a1c9-20240101T1200-local",
			candidate: "3f2a1c9-20240101T1200-local",
			expected:  Same,
		},
		{
			name:      "Timestamps compared lexically",
			current:   "1.0.0-build-9",
			candidate: "1.0.0-build-10",
			expected:  Older,
		},
		{
			name:      "Local replaced by older build",
			current:   "3f2a1c9-20250101T1200-local",
			candidate: "1.0.0-build-20200101",
			expected:  Newer,
		},
		{
			name:      "Local against newer local",
			current:   "3f2a1c9-20240101T1200-local",
			candidate: "8e4b2d0-20240102T0900-local",
			expected:  Newer,
		},
		{
			name:      "Build isn't replaced by older local",
			current:   "1.0.0-build-20240101",
			candidate: "3f2a1c9-20230101T1200-local",
			expected:  Older,
		},
		{
			name:      "Equal timestamp, higher semver",
			current:   "1.2.0-build-20240101",
			candidate: "1.2.1-build-20240101",
			expected:  Newer,
		},
		{
			name:      "Equal timestamp, lower semver",
			current:   "v1.2.1-build-20240101",
			candidate: "v1.2.0-build-20240101",
			expected:  Older,
		},
		{
			name:      "Equal timestamp, non-semver base",
			current:   "3f2a1c9-20240101T1200-dirty",
			candidate: "8e4b2d0-20240101T1200-dirty",
			expected:  Same,
		},
		{
			name:      "Current lacks separators",
			current:   "1.2.0",
			candidate: "1.3.0-build-20240101",
			expected:  Undefined,
		},
		{
			name:      "Candidate lacks separators",
			current:   "1.2.0-build-20240101",
			candidate: "1.3.0-build",
			expected:  Undefined,
		},
		{
			name:      "Reflexive but malformed",
			current:   "garbage",
			candidate: "garbage",
			expected:  Undefined,
		},
		{
			name:      "Local current, malformed build candidate",
			current:   "3f2a1c9-20240101T1200-local",
			candidate: "x-build",
			expected:  Undefined,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.expected, Compare(tc.current, tc.candidate))
		})
	}
}

func TestCompareTimestampOrdering(t *testing.T) {
	t.Parallel()

	stamps := []string{"20230101", "20230615", "20231201", "20240101", "20240601"}

	for i := range stamps {
		for j := range stamps {
			current := "1.0.0-build-" + stamps[i]
			candidate := "1.0.0-build-" + stamps[j]

			switch {
			case j > i:
				require.Equal(t, Newer, Compare(current, candidate))
				require.True(t, IsNewer(current, candidate))
			case j < i:
				require.Equal(t, Older, Compare(current, candidate))
			default:
				require.Equal(t, Same, Compare(current, candidate))
			}
		}
	}
}

func TestResultString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "newer", Newer.String())
	require.Equal(t, "older", Older.String())
	require.Equal(t, "same", Same.String())
	require.Equal(t, "undefined", Undefined.String())
}
