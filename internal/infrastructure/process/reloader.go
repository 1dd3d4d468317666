package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kilometers-ai/plugin-updater/internal/core/ports"
)

// ErrNoReloadCommand is returned when the host has no reload command configured
var ErrNoReloadCommand = errors.New("no reload command configured")

// CommandReloader reloads the host by running a shell command
type CommandReloader struct {
	command string
	timeout time.Duration
	workDir string
	env     []string
	logger  zerolog.Logger
}

var _ ports.Reloader = (*CommandReloader)(nil)

// NewCommandReloader creates a reloader running command with the current environment
func NewCommandReloader(command string, timeout time.Duration, logger zerolog.Logger) *CommandReloader {
	return NewCommandReloaderWithOptions(command, timeout, "", nil, logger)
}

// NewCommandReloaderWithOptions creates a reloader with a custom working directory and environment
func NewCommandReloaderWithOptions(command string, timeout time.Duration, workDir string, env []string, logger zerolog.Logger) *CommandReloader {
	if env == nil {
		env = os.Environ()
	}
	return &CommandReloader{
		command: strings.TrimSpace(command),
		timeout: timeout,
		workDir: workDir,
		env:     env,
		logger:  logger.With().Str("component", "reloader").Logger(),
	}
}

// Reload runs the reload command and waits for it. A non-zero exit is an
// error carrying the command's trimmed output.
func (r *CommandReloader) Reload(ctx context.Context) error {
	if r.command == "" {
		return ErrNoReloadCommand
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := shellCommand(ctx, r.command)
	cmd.Dir = r.workDir
	cmd.Env = r.env
	// children of the shell may keep the output pipe open after a kill
	cmd.WaitDelay = time.Second

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	r.logger.Debug().Str("command", r.command).Dur("took", time.Since(start)).Err(err).Msg("reload command finished")

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("reload command timed out after %s", r.timeout)
		}
		if output := strings.TrimSpace(out.String()); output != "" {
			return fmt.Errorf("reload command failed: %w: %s", err, output)
		}
		return fmt.Errorf("reload command failed: %w", err)
	}
	return nil
}

func shellCommand(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", command)
	}
	return exec.CommandContext(ctx, "sh", "-c", command)
}
