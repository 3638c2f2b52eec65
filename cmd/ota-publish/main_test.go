package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/otaflow/ota-agent/api"
)

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

func TestSignVerify(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	priv := filepath.Join(dir, "ota.key")
	pub := filepath.Join(dir, "ota.pub")
	firmware := filepath.Join(dir, "firmware.bin")
	manifestPath := filepath.Join(dir, "manifest.json")

	require.NoError(t, os.WriteFile(firmware, []byte("firmware image"), 0o600))

	out, err := execute(t, (&cmdKeygen{}).command(), "--private", priv, "--public", pub)
	require.NoError(t, err)
	require.Contains(t, out, "Public key: ")

	// Existing keys are kept without --force.
	_, err = execute(t, (&cmdKeygen{}).command(), "--private", priv, "--public", pub)
	require.Error(t, err)

	_, err = execute(t, (&cmdSign{}).command(), "--key", priv, "--version", "1.2.0-build-20240301", "--output", manifestPath, firmware)
	require.NoError(t, err)

	body, err := os.ReadFile(manifestPath)
	require.NoError(t, err)

	var m api.Manifest

	require.NoError(t, json.Unmarshal(body, &m))
	require.Equal(t, "1.2.0-build-20240301", m.Version)
	require.Len(t, m.Hash, 64)
	require.Len(t, m.Signature, 128)

	out, err = execute(t, (&cmdVerify{}).command(), "--public-key", pub, manifestPath, firmware)
	require.NoError(t, err)
	require.Equal(t, "Firmware 1.2.0-build-20240301 verified\n", out)

	// A modified image no longer matches.
	require.NoError(t, os.WriteFile(firmware, []byte("tampered image"), 0o600))

	_, err = execute(t, (&cmdVerify{}).command(), "--public-key", pub, manifestPath, firmware)
	require.ErrorContains(t, err, "hash mismatch")
}

func TestSignRejectsVersion(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	firmware := filepath.Join(dir, "firmware.bin")

	require.NoError(t, os.WriteFile(firmware, []byte("firmware image"), 0o600))

	_, err := execute(t, (&cmdSign{}).command(), "--key", filepath.Join(dir, "missing.key"), "--version", "1.2.0", firmware)
	require.ErrorContains(t, err, "unusable version")
}
