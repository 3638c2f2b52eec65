package main

import (
	"crypto/rand"
	"fmt"
	"os"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/lxc/incus/v6/shared/revert"
	"github.com/spf13/cobra"

	"github.com/otaflow/ota-agent/internal/codec"
)

type cmdKeygen struct {
	flagPrivate string
	flagPublic  string
	flagForce   bool
}

func (c *cmdKeygen) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "keygen"
	cmd.Short = "Generate a firmware signing key pair"
	cmd.Long = "Generate a firmware signing key pair\n\nThe public key file goes into keys/files/ota-ed25519.pub of the agent build."
	cmd.Args = cobra.NoArgs
	cmd.RunE = c.run

	cmd.Flags().StringVar(&c.flagPrivate, "private", "ota-ed25519.key", "Path of the private key (hex seed)")
	cmd.Flags().StringVar(&c.flagPublic, "public", "ota-ed25519.pub", "Path of the public key (hex)")
	cmd.Flags().BoolVar(&c.flagForce, "force", false, "Overwrite existing key files")

	return cmd
}

func (c *cmdKeygen) run(cmd *cobra.Command, _ []string) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if c.flagForce {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	reverter := revert.New()
	defer reverter.Fail()

	for _, f := range []struct {
		path    string
		content string
		mode    os.FileMode
	}{
		{path: c.flagPrivate, content: codec.EncodeHex(priv.Seed()), mode: 0o600},
		{path: c.flagPublic, content: codec.EncodeHex(pub), mode: 0o644},
	} {
		err = writeKeyFile(f.path, f.content, flags, f.mode)
		if err != nil {
			return err
		}

		reverter.Add(func() { _ = os.Remove(f.path) })
	}

	reverter.Success()

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Public key: %s\n", codec.EncodeHex(pub))

	return err
}

func writeKeyFile(path string, content string, flags int, mode os.FileMode) error {
	f, err := os.OpenFile(path, flags, mode) // #nosec G304
	if err != nil {
		return err
	}

	_, err = f.WriteString(content + "\n")
	if err != nil {
		_ = f.Close()

		return err
	}

	return f.Close()
}
