package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lxc/incus/v6/shared/api"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	otaapi "github.com/otaflow/ota-agent/api"
	"github.com/otaflow/ota-agent/internal/client"
	"github.com/otaflow/ota-agent/internal/config"
	"github.com/otaflow/ota-agent/internal/state"
	"github.com/otaflow/ota-agent/internal/trigger"
)

// Check.
type cmdCheck struct {
	global *cmdGlobal

	flagNoRestart bool
}

func (c *cmdCheck) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "check"
	cmd.Short = "Run a single update cycle in the foreground"
	cmd.Args = cobra.NoArgs
	cmd.RunE = c.run

	cmd.Flags().BoolVar(&c.flagNoRestart, "no-restart", false, "Don't restart after applying an update")

	return cmd
}

func (c *cmdCheck) run(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := c.global.loadConfig()
	if err != nil {
		return err
	}

	s, err := state.LoadOrCreate(cfg.StateFile)
	if err != nil {
		return err
	}

	conn, err := connectBroker(cfg)
	if err != nil {
		return err
	}

	if conn != nil {
		defer func() { _ = conn.Drain() }()
	}

	orchestrator, err := newOrchestrator(cfg, pipelineOptions{state: s, conn: conn, noRestart: c.flagNoRestart})
	if err != nil {
		return err
	}

	out, _ := trigger.NewGate(orchestrator).Fire(ctx, trigger.SourceCLI)

	_, err = fmt.Fprintln(cmd.OutOrStdout(), out.String())
	if err != nil {
		return err
	}

	if out.Kind == otaapi.OutcomeFailed {
		return out.Err
	}

	return nil
}

// Status.
type cmdStatus struct {
	global *cmdGlobal

	flagSocket string
}

func (c *cmdStatus) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "status"
	cmd.Short = "Show the state of the running agent"
	cmd.Args = cobra.NoArgs
	cmd.RunE = c.run

	cmd.Flags().StringVar(&c.flagSocket, "socket", "", "Path to the agent socket (defaults to the configured one)")

	return cmd
}

func (c *cmdStatus) run(cmd *cobra.Command, _ []string) error {
	socketPath, err := c.global.socketPath(c.flagSocket)
	if err != nil {
		return err
	}

	status, err := client.New(socketPath).UpdateStatus(cmd.Context())
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(status)
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))

	return err
}

// Trigger.
type cmdTrigger struct {
	global *cmdGlobal

	flagSocket string
}

func (c *cmdTrigger) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "trigger"
	cmd.Short = "Ask the running agent to check for updates"
	cmd.Args = cobra.NoArgs
	cmd.RunE = c.run

	cmd.Flags().StringVar(&c.flagSocket, "socket", "", "Path to the agent socket (defaults to the configured one)")

	return cmd
}

func (c *cmdTrigger) run(cmd *cobra.Command, _ []string) error {
	socketPath, err := c.global.socketPath(c.flagSocket)
	if err != nil {
		return err
	}

	err = client.New(socketPath).TriggerCheck(cmd.Context())
	if err != nil {
		if api.StatusErrorCheck(err, http.StatusConflict) {
			return errors.New("an update cycle is already running")
		}

		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), "Update check started")

	return err
}

// socketPath returns the override if set, the configured socket otherwise.
func (c *cmdGlobal) socketPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}

	// The local commands don't need a complete configuration.
	cfg, err := config.Load(c.flagConfig)
	if err != nil {
		return "", err
	}

	return cfg.SocketPath, nil
}
