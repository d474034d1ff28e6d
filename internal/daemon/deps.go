// SPDX-License-Identifier: MIT

package daemon

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/report"
)

// DefaultShutdownTimeout bounds server shutdown and hooks.
const DefaultShutdownTimeout = 10 * time.Second

// StatusSource exposes the latest monitor status. A nil status means the
// loop has not completed its first pass.
type StatusSource interface {
	LastStatus() *report.Status
}

// Deps contains dependencies required by the daemon Manager.
type Deps struct {
	// Logger is the structured logger for the daemon
	Logger zerolog.Logger

	// MetricsAddr is the listen address of the metrics/health server. Empty
	// disables the server.
	MetricsAddr string

	// MetricsHandler serves /metrics. Defaults to the Prometheus handler.
	MetricsHandler http.Handler

	// Status backs /status. Optional.
	Status StatusSource

	ShutdownTimeout time.Duration
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	return nil
}
