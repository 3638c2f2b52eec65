// Package systemd drives the host service manager after a firmware handoff.
package systemd

import (
	"context"
	"fmt"

	"github.com/lxc/incus/v6/shared/subprocess"
)

// systemctl runs a single systemctl verb. Jobs are queued without waiting
// for them to complete, as the caller is usually one of the affected units.
func systemctl(ctx context.Context, verb string, args ...string) error {
	cmdArgs := append([]string{verb, "--no-block"}, args...)

	_, err := subprocess.RunCommandContext(ctx, "systemctl", cmdArgs...)
	if err != nil {
		return fmt.Errorf("systemctl %s: %w", verb, err)
	}

	return nil
}

// SystemReboot queues a system reboot.
func SystemReboot(ctx context.Context) error {
	return systemctl(ctx, "reboot")
}

// RestartUnit queues a restart of the provided units.
func RestartUnit(ctx context.Context, units ...string) error {
	if len(units) == 0 {
		return nil
	}

	return systemctl(ctx, "restart", units...)
}
