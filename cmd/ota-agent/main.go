// Package main is used for the ota-agent daemon and its local commands.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/otaflow/ota-agent/internal/config"
)

type cmdGlobal struct {
	flagConfig    string
	flagDebug     bool
	flagLogFormat string
}

func main() {
	// Global flags.
	globalCmd := cmdGlobal{}

	app := &cobra.Command{
		Use:               "ota-agent",
		Short:             "Firmware over-the-air update agent",
		Long:              "Firmware over-the-air update agent\n\nThis tool checks for signed firmware images, verifies them and hands them over for flashing.",
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		PersistentPreRunE: globalCmd.preRun,
	}

	app.PersistentFlags().StringVarP(&globalCmd.flagConfig, "config", "c", config.DefaultPath, "Path to the configuration file")
	app.PersistentFlags().BoolVarP(&globalCmd.flagDebug, "debug", "d", false, "Show debug messages")
	app.PersistentFlags().StringVar(&globalCmd.flagLogFormat, "log-format", "text", "Log format: 'text' or 'json'")

	app.AddCommand((&cmdDaemon{global: &globalCmd}).command())
	app.AddCommand((&cmdCheck{global: &globalCmd}).command())
	app.AddCommand((&cmdStatus{global: &globalCmd}).command())
	app.AddCommand((&cmdTrigger{global: &globalCmd}).command())
	app.AddCommand((&cmdVersion{}).command())

	// Help handling.
	app.SetHelpCommand(&cobra.Command{
		Use:    "no-help",
		Hidden: true,
	})

	// Run the main command and handle errors.
	err := app.Execute()
	if err != nil {
		// Sleep for a second to allow output buffers to flush.
		time.Sleep(1 * time.Second)

		os.Exit(1)
	}
}

func (c *cmdGlobal) preRun(_ *cobra.Command, _ []string) error {
	// Prepare a logger.
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if c.flagDebug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler

	switch c.flagLogFormat {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		return fmt.Errorf("unknown log format %q", c.flagLogFormat)
	}

	slog.SetDefault(slog.New(handler))

	return nil
}

// loadConfig returns the validated configuration.
func (c *cmdGlobal) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.flagConfig)
	if err != nil {
		return nil, err
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

type cmdVersion struct{}

func (c *cmdVersion) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "version"
	cmd.Short = "Print the agent and firmware version"
	cmd.Args = cobra.NoArgs
	cmd.RunE = c.run

	return cmd
}

func (*cmdVersion) run(cmd *cobra.Command, _ []string) error {
	_, err := fmt.Fprintln(cmd.OutOrStdout(), "ota-agent version "+config.Version)

	return err
}
