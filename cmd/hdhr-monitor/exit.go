// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"

	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/hdhr"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/settings"
)

// Process exit statuses.
const (
	exitOK      = 0
	exitFailure = 1
	exitConfig  = 2
	exitDevice  = 3
)

// exitError pins the exit status of an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configError(err error) error {
	return &exitError{code: exitConfig, err: err}
}

// exitCode maps the error returned by the root command to a process status.
func exitCode(err error) int {
	var pinned *exitError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &pinned):
		return pinned.code
	case errors.Is(err, context.Canceled):
		return exitOK
	case errors.Is(err, hdhr.ErrNoDevices),
		errors.Is(err, hdhr.ErrDeviceNotFound),
		errors.Is(err, hdhr.ErrDuplicateDevice):
		return exitDevice
	case errors.Is(err, settings.ErrInvalidConfig):
		return exitConfig
	default:
		return exitFailure
	}
}
