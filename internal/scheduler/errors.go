// SPDX-License-Identifier: MIT

package scheduler

import "errors"

var (
	// ErrRestartRequired is returned by Run when the loop hit an unexpected
	// failure and the process should start over after a short delay.
	ErrRestartRequired = errors.New("scheduler: restart required")
	// ErrNoSpaceInfo indicates an appliance reported no capacity figures.
	ErrNoSpaceInfo = errors.New("device does not report disk space")
)
