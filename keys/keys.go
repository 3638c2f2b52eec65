// Package keys holds the trust material embedded into the update agent.
package keys

import (
	"embed"
	"errors"
	"strings"
)

//go:embed files/*
var files embed.FS

// ErrMissingKey is returned when the embedded key file is empty.
var ErrMissingKey = errors.New("no embedded firmware signing key")

// FirmwareSigningKey returns the hex-encoded Ed25519 public key used to verify firmware images.
//
// The key is provisioned at build time by replacing files/ota-ed25519.pub.
func FirmwareSigningKey() (string, error) {
	contents, err := files.ReadFile("files/ota-ed25519.pub")
	if err != nil {
		return "", err
	}

	key := strings.TrimSpace(string(contents))
	if key == "" {
		return "", ErrMissingKey
	}

	return key, nil
}
