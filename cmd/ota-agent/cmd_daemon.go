package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/otaflow/ota-agent/api"
	"github.com/otaflow/ota-agent/internal/config"
	"github.com/otaflow/ota-agent/internal/messaging"
	"github.com/otaflow/ota-agent/internal/metrics"
	"github.com/otaflow/ota-agent/internal/rest"
	"github.com/otaflow/ota-agent/internal/scheduling"
	"github.com/otaflow/ota-agent/internal/state"
	"github.com/otaflow/ota-agent/internal/trigger"
)

type cmdDaemon struct {
	global *cmdGlobal
}

func (c *cmdDaemon) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "daemon"
	cmd.Short = "Run the update agent"
	cmd.Long = "Run the update agent\n\nUpdate cycles are started by broker messages, the local API and the optional check schedule."
	cmd.Args = cobra.NoArgs
	cmd.RunE = c.run

	return cmd
}

// daemon exposes the agent status to the local API.
type daemon struct {
	cfg   *config.Config
	state *state.State
	gate  *trigger.Gate
}

// UpdateStatus returns the configuration and state of the agent.
func (d *daemon) UpdateStatus() api.UpdateStatus {
	st := d.state.UpdateState()
	st.Busy = d.gate.Busy()

	if st.Busy {
		st.Status = "Update in progress"
	}

	return api.UpdateStatus{
		Config: api.UpdateConfig{
			CurrentVersion: d.cfg.CurrentVersion,
			ManifestURL:    d.cfg.ManifestURL,
			FirmwareURL:    d.cfg.FirmwareURL,
			Transport:      d.cfg.Transport.Mode,
			CheckSchedule:  d.cfg.CheckSchedule,
		},
		State: st,
	}
}

func (c *cmdDaemon) run(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := c.global.loadConfig()
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Starting update agent", slog.String("version", cfg.CurrentVersion), slog.String("transport", cfg.Transport.Mode))

	// Get persistent state.
	s, err := state.LoadOrCreate(cfg.StateFile)
	if err != nil {
		return err
	}

	m := metrics.New(cfg.CurrentVersion)

	conn, err := connectBroker(cfg)
	if err != nil {
		return err
	}

	if conn != nil {
		defer func() { _ = conn.Drain() }()
	}

	orchestrator, err := newOrchestrator(cfg, pipelineOptions{state: s, metrics: m, conn: conn})
	if err != nil {
		return err
	}

	gate := trigger.NewGate(orchestrator)
	gate.Denied = func(trigger.Source) { m.TriggersDenied.Inc() }

	d := &daemon{cfg: cfg, state: s, gate: gate}

	server, err := rest.NewServer(cfg.SocketPath, d, gate, m.Handler())
	if err != nil {
		return err
	}

	// Periodic jobs.
	scheduler, err := scheduling.NewScheduler()
	if err != nil {
		return err
	}

	err = scheduler.RegisterInterval(scheduling.JobHeartbeat, cfg.HeartbeatInterval, func(ctx context.Context) error {
		slog.InfoContext(ctx, "Agent running", slog.String("version", cfg.CurrentVersion), slog.Bool("busy", gate.Busy()))

		return nil
	})
	if err != nil {
		return err
	}

	if cfg.CheckSchedule != "" {
		err = scheduler.RegisterJob(scheduling.JobUpdateCheck, cfg.CheckSchedule, func(ctx context.Context) error {
			gate.Fire(ctx, trigger.SourceSchedule)

			return nil
		})
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Serve(gctx)
	})

	if conn != nil {
		sub, err := messaging.Subscribe(gctx, conn, cfg.NATS.TriggerSubject, gate)
		if err != nil {
			cancel()
			_ = g.Wait()

			return err
		}

		slog.InfoContext(ctx, "Listening for update triggers", slog.String("subject", cfg.NATS.TriggerSubject))

		defer func() { _ = sub.Unsubscribe() }()
	}

	scheduler.Start()

	g.Go(func() error {
		<-gctx.Done()

		return scheduler.Shutdown()
	})

	err = g.Wait()

	// Let a running cycle reach its outcome.
	gate.Wait()

	slog.InfoContext(ctx, "Update agent stopped")

	return err
}
