package flash

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"slices"

	"github.com/lxc/incus/v6/shared/subprocess"
	"golang.org/x/sys/unix"
)

// Result is the answer of the flashing collaborator for a verified payload.
type Result int

const (
	// Applied means the image was written and will be booted on restart.
	Applied Result = iota

	// NoUpdate means the flashing side found nothing to do.
	NoUpdate
)

func (r Result) String() string {
	if r == NoUpdate {
		return "no update"
	}

	return "applied"
}

// ErrApply is returned when the flashing collaborator fails.
var ErrApply = errors.New("failed to apply firmware")

// Payload references a staged image that already passed hash and signature checks.
type Payload struct {
	Path    string
	Version string
	Digest  string
	Size    int64
}

// Flasher hands verified images to the component that writes and activates them.
type Flasher interface {
	Apply(ctx context.Context, payload Payload) (Result, error)
}

// CommandFlasher applies images by running an external command with the payload path as last argument.
type CommandFlasher struct {
	Command string
	Args    []string

	// NoUpdateExitCode is the exit code the command uses to report that nothing was applied.
	// Zero disables the mapping.
	NoUpdateExitCode int
}

// Apply runs the apply command against the staged payload.
func (f *CommandFlasher) Apply(ctx context.Context, payload Payload) (Result, error) {
	if f.Command == "" {
		return NoUpdate, fmt.Errorf("%w: no apply command configured", ErrApply)
	}

	args := append(slices.Clone(f.Args), payload.Path)

	// Make sure the staged image is on disk before another process reads it.
	unix.Sync()

	slog.InfoContext(ctx, "Handing firmware over for flashing", slog.String("command", f.Command), slog.String("version", payload.Version), slog.String("path", payload.Path))

	_, err := subprocess.RunCommandContext(ctx, f.Command, args...)
	if err == nil {
		return Applied, nil
	}

	exitErr := &exec.ExitError{}
	if f.NoUpdateExitCode != 0 && errors.As(err, &exitErr) && exitErr.ExitCode() == f.NoUpdateExitCode {
		return NoUpdate, nil
	}

	return NoUpdate, fmt.Errorf("%w: %w", ErrApply, err)
}
