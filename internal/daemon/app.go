// SPDX-License-Identifier: MIT

package daemon

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/log"
)

// Runner is the monitor loop. It returns nil on a clean stop.
type Runner interface {
	Run(ctx context.Context) error
}

// Watcher is the configuration change watcher. It is started before the
// loop and stopped after the loop has returned.
type Watcher interface {
	StartWatcher() error
	Stop()
}

// App owns the long-lived runtime lifecycle: the monitor loop, the
// configuration watcher and the servers managed by Manager.
type App struct {
	logger  zerolog.Logger
	manager Manager
	runner  Runner
	watcher Watcher
}

// NewApp creates a new App orchestrator. watcher may be nil.
func NewApp(logger zerolog.Logger, manager Manager, runner Runner, watcher Watcher) *App {
	return &App{
		logger:  logger,
		manager: manager,
		runner:  runner,
		watcher: watcher,
	}
}

// Run blocks until ctx is cancelled, the loop stops or a fatal error occurs.
// The loop's error, if any, is returned.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}
	if a.runner == nil {
		return ErrMissingRunner
	}

	// Config watcher is best-effort: the loop also polls the file mtime.
	if a.watcher != nil {
		if err := a.watcher.StartWatcher(); err != nil {
			a.logger.Warn().Err(err).Str(log.FieldEvent, "settings.watcher_start_failed").Msg("failed to start config watcher")
		}
		defer a.watcher.Stop()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// A clean loop stop ends the process too.
		defer cancel()
		return a.runner.Run(gctx)
	})

	g.Go(func() error {
		err := a.manager.Start(gctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}
