package rest

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lxc/incus/v6/shared/api"
	"github.com/stretchr/testify/require"

	otaapi "github.com/otaflow/ota-agent/api"
	"github.com/otaflow/ota-agent/internal/trigger"
)

type staticStatus struct {
	status otaapi.UpdateStatus
}

func (s staticStatus) UpdateStatus() otaapi.UpdateStatus {
	return s.status
}

type fakeTrigger struct {
	busy    bool
	sources []trigger.Source
}

func (f *fakeTrigger) Go(_ context.Context, source trigger.Source) bool {
	f.sources = append(f.sources, source)

	return !f.busy
}

func newTestServer(t *testing.T, trig *fakeTrigger) *httptest.Server {
	t.Helper()

	status := staticStatus{status: otaapi.UpdateStatus{
		Config: otaapi.UpdateConfig{
			CurrentVersion: "1.1.0-build-20231201",
			Transport:      "ca",
		},
		State: otaapi.UpdateState{
			Status: "Up to date",
		},
	}}

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ota_build_info 1\n"))
	})

	s, err := NewServer(filepath.Join(t.TempDir(), "run", "unix.socket"), status, trig, metrics)
	require.NoError(t, err)

	server := httptest.NewServer(s.Handler(context.Background()))
	t.Cleanup(server.Close)

	return server
}

func doRequest(t *testing.T, method string, url string) (int, api.ResponseRaw) {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), method, url, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	var raw api.ResponseRaw

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))

	return resp.StatusCode, raw
}

func TestRoot(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &fakeTrigger{})

	code, raw := doRequest(t, http.MethodGet, server.URL+"/")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, api.SyncResponse, raw.Type)
	require.Equal(t, []any{"/1.0"}, raw.Metadata)

	code, raw = doRequest(t, http.MethodGet, server.URL+"/2.0")
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, api.ErrorResponse, raw.Type)

	code, raw = doRequest(t, http.MethodGet, server.URL+"/1.0")
	require.Equal(t, http.StatusOK, code)

	env, ok := raw.Metadata.(map[string]any)["environment"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "1.1.0-build-20231201", env["firmware_version"])
}

func TestUpdateStatus(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &fakeTrigger{})

	code, raw := doRequest(t, http.MethodGet, server.URL+"/1.0/update")
	require.Equal(t, http.StatusOK, code)

	body, err := json.Marshal(raw.Metadata)
	require.NoError(t, err)

	var status otaapi.UpdateStatus

	require.NoError(t, json.Unmarshal(body, &status))
	require.Equal(t, "1.1.0-build-20231201", status.Config.CurrentVersion)
	require.Equal(t, "Up to date", status.State.Status)

	code, _ = doRequest(t, http.MethodPut, server.URL+"/1.0/update")
	require.Equal(t, http.StatusNotImplemented, code)
}

func TestUpdateCheck(t *testing.T) {
	t.Parallel()

	trig := &fakeTrigger{}
	server := newTestServer(t, trig)

	code, raw := doRequest(t, http.MethodPost, server.URL+"/1.0/update/:check")
	require.Equal(t, http.StatusAccepted, code)
	require.Equal(t, api.SyncResponse, raw.Type)
	require.Equal(t, []trigger.Source{trigger.SourceAPI}, trig.sources)

	// Only POST triggers.
	code, _ = doRequest(t, http.MethodGet, server.URL+"/1.0/update/:check")
	require.Equal(t, http.StatusNotImplemented, code)
	require.Len(t, trig.sources, 1)
}

func TestUpdateCheckBusy(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &fakeTrigger{busy: true})

	code, raw := doRequest(t, http.MethodPost, server.URL+"/1.0/update/:check")
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, "update cycle already in progress", raw.Error)
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &fakeTrigger{})

	resp, err := http.Get(server.URL + "/1.0/metrics") //nolint:noctx
	require.NoError(t, err)

	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeUnixSocket(t *testing.T) {
	t.Parallel()

	// Keep the socket path short.
	dir, err := os.MkdirTemp("", "ota")
	require.NoError(t, err)

	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	socketPath := filepath.Join(dir, "unix.socket")

	s, err := NewServer(socketPath, staticStatus{}, &fakeTrigger{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- s.Serve(ctx)
	}()

	client := &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, _ string, _ string) (net.Conn, error) {
			var d net.Dialer

			return d.DialContext(ctx, "unix", socketPath)
		},
	}}

	require.Eventually(t, func() bool {
		resp, err := client.Get("http://ota-agent/1.0") //nolint:noctx
		if err != nil {
			return false
		}

		_ = resp.Body.Close()

		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
