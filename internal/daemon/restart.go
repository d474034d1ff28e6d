// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/log"
)

// RestartDelay is the pause before the process replaces itself.
const RestartDelay = 3 * time.Second

// Restarter replaces the running process with a fresh copy of itself.
type Restarter struct {
	Logger zerolog.Logger
	Delay  time.Duration
	// Exec defaults to syscall.Exec.
	Exec func(argv0 string, argv []string, envv []string) error
	// Executable defaults to os.Executable.
	Executable func() (string, error)
}

// Restart waits for the delay and re-executes the binary with the original
// arguments and environment. It only returns on failure or when ctx is done
// first.
func (r Restarter) Restart(ctx context.Context, cause error) error {
	delay := r.Delay
	if delay <= 0 {
		delay = RestartDelay
	}
	execFn := r.Exec
	if execFn == nil {
		execFn = syscall.Exec
	}
	executable := r.Executable
	if executable == nil {
		executable = os.Executable
	}

	r.Logger.Error().
		Err(cause).
		Str(log.FieldEvent, "process.restart_scheduled").
		Dur("delay", delay).
		Msgf("Restarting in %s", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	exe, err := executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	r.Logger.Info().
		Str(log.FieldEvent, "process.restart").
		Str(log.FieldPath, exe).
		Msg("Restarting")
	_ = log.Close()
	if err := execFn(exe, os.Args, os.Environ()); err != nil {
		return fmt.Errorf("re-exec %s: %w", exe, err)
	}
	return nil
}
