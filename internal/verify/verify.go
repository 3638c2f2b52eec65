package verify

import (
	"crypto/sha256"

	"github.com/cloudflare/circl/sign/ed25519"

	"github.com/otaflow/ota-agent/internal/codec"
	"github.com/otaflow/ota-agent/keys"
)

const (
	// DigestSize is the size of the signed firmware digest.
	DigestSize = sha256.Size

	// PublicKeySize is the size of an Ed25519 public key.
	PublicKeySize = ed25519.PublicKeySize

	// SignatureSize is the size of an Ed25519 signature.
	SignatureSize = ed25519.SignatureSize
)

// PublicKey is a raw Ed25519 public key.
type PublicKey []byte

// ParsePublicKey decodes a hex-encoded Ed25519 public key.
func ParsePublicKey(s string) (PublicKey, error) {
	key, err := codec.DecodeHexExact(s, PublicKeySize)
	if err != nil {
		return nil, err
	}

	return PublicKey(key), nil
}

// EmbeddedPublicKey returns the firmware signing key built into the binary.
func EmbeddedPublicKey() (PublicKey, error) {
	s, err := keys.FirmwareSigningKey()
	if err != nil {
		return nil, err
	}

	return ParsePublicKey(s)
}

// Verify checks an Ed25519 signature over a firmware digest.
//
// Inputs of the wrong size are rejected without calling into the signature primitive.
func Verify(digest []byte, signature []byte, key PublicKey) bool {
	if len(digest) != DigestSize || len(signature) != SignatureSize || len(key) != PublicKeySize {
		return false
	}

	return ed25519.Verify(ed25519.PublicKey(key), digest, signature)
}
