package flash

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/otaflow/ota-agent/internal/systemd"
)

// RestartMode selects what happens after an image was applied.
type RestartMode string

const (
	// RestartNone leaves the restart to someone else.
	RestartNone RestartMode = "none"

	// RestartReboot reboots the system.
	RestartReboot RestartMode = "reboot"

	// RestartService restarts a systemd unit.
	RestartService RestartMode = "service"
)

// Restarter performs the controlled restart that activates a new image.
type Restarter struct {
	mode  RestartMode
	unit  string
	delay time.Duration

	reboot      func(ctx context.Context) error
	restartUnit func(ctx context.Context, units ...string) error
}

// NewRestarter returns a Restarter for mode. unit is only used by RestartService.
func NewRestarter(mode RestartMode, unit string, delay time.Duration) (*Restarter, error) {
	switch mode {
	case RestartNone, RestartReboot:
	case RestartService:
		if unit == "" {
			return nil, fmt.Errorf("restart mode %q requires a unit", mode)
		}
	default:
		return nil, fmt.Errorf("unknown restart mode %q", mode)
	}

	return &Restarter{
		mode:        mode,
		unit:        unit,
		delay:       delay,
		reboot:      systemd.SystemReboot,
		restartUnit: systemd.RestartUnit,
	}, nil
}

// Restart waits for the configured delay, then restarts.
func (r *Restarter) Restart(ctx context.Context) error {
	if r.mode == RestartNone {
		slog.InfoContext(ctx, "Firmware applied, restart left to the system")

		return nil
	}

	// Give in-flight telemetry a chance to leave.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(r.delay):
	}

	if r.mode == RestartReboot {
		slog.InfoContext(ctx, "Firmware applied, rebooting")

		return r.reboot(ctx)
	}

	slog.InfoContext(ctx, "Firmware applied, restarting service", slog.String("unit", r.unit))

	return r.restartUnit(ctx, r.unit)
}
