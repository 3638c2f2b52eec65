// Package main is used for the firmware publishing tool.
package main

import (
	"crypto/sha256"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/spf13/cobra"

	"github.com/otaflow/ota-agent/internal/codec"
	"github.com/otaflow/ota-agent/internal/config"
)

func main() {
	// Prepare a logger.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	app := &cobra.Command{
		Use:               "ota-publish",
		Short:             "Firmware image publishing tool",
		Long:              "Firmware image publishing tool\n\nThis tool generates signing keys, signs firmware images into manifests and triggers agents.",
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		Version:           config.Version,
	}

	app.AddCommand((&cmdKeygen{}).command())
	app.AddCommand((&cmdSign{}).command())
	app.AddCommand((&cmdVerify{}).command())
	app.AddCommand((&cmdTrigger{}).command())

	// Help handling.
	app.SetHelpCommand(&cobra.Command{
		Use:    "no-help",
		Hidden: true,
	})

	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// digestFile returns the SHA-256 digest of a file.
func digestFile(path string) ([sha256.Size]byte, int64, error) {
	var digest [sha256.Size]byte

	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return digest, 0, err
	}

	defer func() { _ = f.Close() }()

	h := sha256.New()

	size, err := io.Copy(h, f)
	if err != nil {
		return digest, 0, err
	}

	copy(digest[:], h.Sum(nil))

	return digest, size, nil
}

// readPrivateKey loads a hex-encoded Ed25519 seed.
func readPrivateKey(path string) (ed25519.PrivateKey, error) {
	content, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, err
	}

	seed, err := codec.DecodeHexExact(strings.TrimSpace(string(content)), ed25519.SeedSize)
	if err != nil {
		return nil, errors.New("invalid private key file " + path + ": " + err.Error())
	}

	return ed25519.NewKeyFromSeed(seed), nil
}
