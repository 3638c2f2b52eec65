package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/otaflow/ota-agent/api"
)

func TestPublish(t *testing.T) {
	t.Parallel()

	m := New("1.1.0-build-20231201")

	for _, stage := range []string{"download_manifest", "parse_manifest", "download_manifest"} {
		err := m.Publish(context.Background(), api.StageMetric{Stage: stage, ElapsedMS: 250, FreeHeap: 4096})
		require.NoError(t, err)
	}

	require.Equal(t, 2, testutil.CollectAndCount(m.StageDuration))
	require.InDelta(t, 4096, testutil.ToFloat64(m.FreeMemory), 0)
}

func TestPublishOutcome(t *testing.T) {
	t.Parallel()

	m := New("1.1.0-build-20231201")
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	records := []api.OutcomeRecord{
		{Outcome: api.OutcomeApplied, Timestamp: ts},
		{Outcome: api.OutcomeFailed, Reason: api.ReasonHashMismatch, Timestamp: ts},
		{Outcome: api.OutcomeFailed, Reason: api.ReasonHashMismatch, Timestamp: ts},
	}

	for _, r := range records {
		require.NoError(t, m.PublishOutcome(context.Background(), r))
	}

	require.InDelta(t, 1, testutil.ToFloat64(m.Outcomes.WithLabelValues("applied", "")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(m.Outcomes.WithLabelValues("failed", "hash_mismatch")), 0)
	require.InDelta(t, float64(ts.Unix()), testutil.ToFloat64(m.LastCheck), 0)
}

func TestHandler(t *testing.T) {
	t.Parallel()

	m := New("1.1.0-build-20231201")
	m.TriggersDenied.Inc()

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL) //nolint:noctx
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `ota_build_info{version="1.1.0-build-20231201"} 1`)
	require.Contains(t, string(body), "ota_triggers_denied_total 1")
}
