package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/spf13/cobra"

	"github.com/otaflow/ota-agent/api"
	"github.com/otaflow/ota-agent/internal/codec"
	"github.com/otaflow/ota-agent/internal/manifest"
	"github.com/otaflow/ota-agent/internal/verify"
	"github.com/otaflow/ota-agent/internal/version"
)

// Sign.
type cmdSign struct {
	flagKey     string
	flagVersion string
	flagOutput  string
}

func (c *cmdSign) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "sign <firmware>"
	cmd.Short = "Sign a firmware image and write its manifest"
	cmd.Args = cobra.ExactArgs(1)
	cmd.RunE = c.run

	cmd.Flags().StringVarP(&c.flagKey, "key", "k", "ota-ed25519.key", "Path of the private key")
	cmd.Flags().StringVar(&c.flagVersion, "version", "", "Firmware version, for example 1.2.0-build-20240101")
	cmd.Flags().StringVarP(&c.flagOutput, "output", "o", "", "Manifest path (defaults to stdout)")

	_ = cmd.MarkFlagRequired("version")

	return cmd
}

func (c *cmdSign) run(cmd *cobra.Command, args []string) error {
	// Agents can't order malformed versions.
	_, err := version.Parse(c.flagVersion)
	if err != nil {
		return fmt.Errorf("unusable version %q: %w", c.flagVersion, err)
	}

	priv, err := readPrivateKey(c.flagKey)
	if err != nil {
		return err
	}

	digest, size, err := digestFile(args[0])
	if err != nil {
		return err
	}

	m := api.Manifest{
		Version:   c.flagVersion,
		Hash:      codec.EncodeHex(digest[:]),
		Signature: codec.EncodeHex(ed25519.Sign(priv, digest[:])),
	}

	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	body = append(body, '\n')

	if len(body) > manifest.MaxSize {
		return errors.New("manifest exceeds the size accepted by agents")
	}

	slog.Info("Signed firmware image", slog.String("version", m.Version), slog.String("hash", m.Hash), slog.Int64("size", size))

	if c.flagOutput == "" {
		_, err = cmd.OutOrStdout().Write(body)

		return err
	}

	return os.WriteFile(c.flagOutput, body, 0o644) // #nosec G306
}

// Verify.
type cmdVerify struct {
	flagPublicKey string
}

func (c *cmdVerify) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "verify <manifest> <firmware>"
	cmd.Short = "Check a firmware image against its manifest"
	cmd.Args = cobra.ExactArgs(2)
	cmd.RunE = c.run

	cmd.Flags().StringVarP(&c.flagPublicKey, "public-key", "p", "", "Path of the public key (defaults to the embedded key)")

	return cmd
}

func (c *cmdVerify) run(cmd *cobra.Command, args []string) error {
	key, err := c.publicKey()
	if err != nil {
		return err
	}

	f, err := os.Open(args[0]) // #nosec G304
	if err != nil {
		return err
	}

	defer func() { _ = f.Close() }()

	body, err := io.ReadAll(io.LimitReader(f, manifest.MaxSize+1))
	if err != nil {
		return err
	}

	m, err := manifest.Parse(body)
	if err != nil {
		return err
	}

	digest, _, err := digestFile(args[1])
	if err != nil {
		return err
	}

	expected, err := codec.DecodeHexExact(m.Hash, verify.DigestSize)
	if err != nil {
		return fmt.Errorf("unusable manifest hash: %w", err)
	}

	if !bytes.Equal(expected, digest[:]) {
		return fmt.Errorf("hash mismatch: manifest has %s, image is %s", m.Hash, codec.EncodeHex(digest[:]))
	}

	signature, err := codec.DecodeHexExact(m.Signature, verify.SignatureSize)
	if err != nil {
		return fmt.Errorf("unusable manifest signature: %w", err)
	}

	if !verify.Verify(digest[:], signature, key) {
		return errors.New("signature verification failed")
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Firmware %s verified\n", m.Version)

	return err
}

func (c *cmdVerify) publicKey() (verify.PublicKey, error) {
	if c.flagPublicKey == "" {
		return verify.EmbeddedPublicKey()
	}

	content, err := os.ReadFile(c.flagPublicKey)
	if err != nil {
		return nil, err
	}

	return verify.ParsePublicKey(string(bytes.TrimSpace(content)))
}
