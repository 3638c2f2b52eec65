package main

import (
	"time"

	"github.com/nats-io/nats.go"

	"github.com/otaflow/ota-agent/internal/config"
	"github.com/otaflow/ota-agent/internal/download"
	"github.com/otaflow/ota-agent/internal/flash"
	"github.com/otaflow/ota-agent/internal/messaging"
	"github.com/otaflow/ota-agent/internal/metrics"
	"github.com/otaflow/ota-agent/internal/precondition"
	"github.com/otaflow/ota-agent/internal/state"
	"github.com/otaflow/ota-agent/internal/telemetry"
	"github.com/otaflow/ota-agent/internal/transport"
	"github.com/otaflow/ota-agent/internal/update"
	"github.com/otaflow/ota-agent/internal/verify"
)

// pipelineOptions holds the optional collaborators of the update pipeline.
type pipelineOptions struct {
	state     *state.State
	metrics   *metrics.Metrics
	conn      *nats.Conn
	noRestart bool
}

// newOrchestrator wires the update pipeline from the configuration.
func newOrchestrator(cfg *config.Config, opts pipelineOptions) (*update.Orchestrator, error) {
	mode, err := transport.ParseMode(cfg.Transport.Mode)
	if err != nil {
		return nil, err
	}

	clients, err := transport.NewFactory(transport.Config{
		Mode:        mode,
		Fingerprint: cfg.Transport.Fingerprint,
		CAFile:      cfg.Transport.CAFile,
		Timeout:     cfg.Transport.Timeout,
	})
	if err != nil {
		return nil, err
	}

	// Trust the embedded key unless overridden.
	var key verify.PublicKey

	if cfg.PublicKey != "" {
		key, err = verify.ParsePublicKey(cfg.PublicKey)
	} else {
		key, err = verify.EmbeddedPublicKey()
	}

	if err != nil {
		return nil, err
	}

	var checkOpts []precondition.Option
	if cfg.NTP.Server != "" {
		checkOpts = append(checkOpts, precondition.WithNTP(cfg.NTP.Server, cfg.NTP.MaxOffset))
	}

	var restarter update.Restarter

	if !opts.noRestart {
		restarter, err = flash.NewRestarter(flash.RestartMode(cfg.Apply.Restart), cfg.Apply.RestartUnit, cfg.Apply.RestartDelay)
		if err != nil {
			return nil, err
		}
	}

	// Delivery targets.
	sinks := []telemetry.Sink{telemetry.LogSink{}}
	outcomes := []update.OutcomeSink{}

	if opts.state != nil {
		outcomes = append(outcomes, opts.state)
	}

	if opts.metrics != nil {
		sinks = append(sinks, opts.metrics)
		outcomes = append(outcomes, opts.metrics)
	}

	if opts.conn != nil {
		publisher := messaging.NewPublisher(opts.conn, cfg.NATS.MetricsSubject, cfg.NATS.OutcomeSubject)
		sinks = append(sinks, publisher)
		outcomes = append(outcomes, publisher)
	}

	return update.New(update.Config{
		ManifestURL:    cfg.ManifestURL,
		FirmwareURL:    cfg.FirmwareURL,
		CurrentVersion: cfg.CurrentVersion,
		StagingDir:     cfg.StagingDir,
		UserAgent:      cfg.UserAgent,
	}, update.Dependencies{
		Clients:      clients,
		Precondition: precondition.NewChecker(checkOpts...),
		PublicKey:    key,
		Downloader: &download.Downloader{
			BufferSize:       cfg.BufferSize,
			ProgressInterval: cfg.ProgressInterval,
			UserAgent:        cfg.UserAgent,
		},
		Flasher: &flash.CommandFlasher{
			Command:          cfg.Apply.Command,
			Args:             cfg.Apply.Args,
			NoUpdateExitCode: cfg.Apply.NoUpdateExitCode,
		},
		Restarter: restarter,
		Recorder:  telemetry.NewRecorder(sinks...),
		Outcomes:  outcomes,
	})
}

// connectBroker connects to NATS when configured. It returns nil otherwise.
func connectBroker(cfg *config.Config) (*nats.Conn, error) {
	if cfg.NATS.URL == "" {
		return nil, nil //nolint:nilnil
	}

	return messaging.Connect(messaging.Options{
		URL:             cfg.NATS.URL,
		Name:            cfg.NATS.Name,
		User:            cfg.NATS.User,
		Password:        cfg.NATS.Password,
		Token:           cfg.NATS.Token,
		CredentialsFile: cfg.NATS.CredentialsFile,
		Timeout:         cfg.Transport.Timeout,
		ReconnectWait:   2 * time.Second,
		MaxReconnects:   -1,
	})
}
