// SPDX-License-Identifier: MIT

package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/log"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/metrics"
)

// Holder owns the current Snapshot and detects configuration file changes.
// Change detection is polled by the scheduler goroutine: fsnotify events
// are drained without blocking and the file modification time is the
// authoritative signal. A reload that fails validation keeps the previous
// snapshot.
type Holder struct {
	path      string
	overrides Overrides
	logger    zerolog.Logger

	current *Snapshot
	watcher *fsnotify.Watcher
	dirty   bool
	// seen is the modification time of the last file version loaded,
	// successfully or not.
	seen time.Time
}

// NewHolder creates a holder for the file at path (empty for none) and the
// command-line overrides.
func NewHolder(path string, ov Overrides) *Holder {
	return &Holder{
		path:      path,
		overrides: ov,
		logger:    log.WithComponent("settings"),
	}
}

// Load builds the initial snapshot. Errors here are fatal to the caller.
func (h *Holder) Load() (*Snapshot, error) {
	snap, err := h.build()
	if err != nil {
		metrics.IncSettingsReload(false)
		return nil, err
	}
	metrics.IncSettingsReload(true)
	h.current = snap
	h.seen = snap.ModTime()
	return snap, nil
}

// Current returns the active snapshot.
func (h *Holder) Current() *Snapshot {
	return h.current
}

// StartWatcher subscribes to file system events for the configuration file.
// It watches the parent directory so that editors replacing the file are
// noticed. Without a file this is a no-op.
func (h *Holder) StartWatcher() error {
	if h.path == "" {
		h.logger.Debug().Str(log.FieldEvent, "settings.watcher_disabled").Msg("no configuration file; watcher disabled")
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(h.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config directory: %w", err)
	}
	h.watcher = watcher
	h.logger.Info().
		Str(log.FieldEvent, "settings.watcher_started").
		Str(log.FieldPath, h.path).
		Msg("watching configuration file for changes")
	return nil
}

// Stop closes the file system watcher.
func (h *Holder) Stop() {
	if h.watcher != nil {
		_ = h.watcher.Close()
		h.watcher = nil
	}
}

// Changed reports whether the configuration file was modified since the
// active snapshot was read. It never blocks.
func (h *Holder) Changed() bool {
	if h.path == "" {
		return false
	}
	h.drainEvents()

	info, err := os.Stat(h.path)
	if err != nil {
		// A file that vanished mid-save shows up again on a later poll.
		h.logger.Debug().Err(err).Str(log.FieldEvent, "settings.stat_failed").Msg("configuration file not readable")
		return false
	}
	if info.ModTime().After(h.seen) {
		return true
	}
	if h.dirty && !info.ModTime().Equal(h.seen) {
		return true
	}
	h.dirty = false
	return false
}

// Reload re-reads the file and re-resolves every section. On failure the
// previous snapshot stays active and the error is returned.
func (h *Holder) Reload() (*Snapshot, error) {
	h.logger.Info().Str(log.FieldEvent, "settings.reload_start").Msg("reloading configuration")
	h.dirty = false
	if info, err := os.Stat(h.path); err == nil {
		h.seen = info.ModTime()
	}
	snap, err := h.build()
	if err != nil {
		metrics.IncSettingsReload(false)
		h.logger.Error().
			Err(err).
			Str(log.FieldEvent, "settings.reload_failed").
			Msg("configuration reload failed; keeping previous settings")
		return h.current, err
	}
	metrics.IncSettingsReload(true)
	h.current = snap
	h.logger.Info().
		Str(log.FieldEvent, "settings.reload_success").
		Msg("configuration reloaded")
	return snap, nil
}

func (h *Holder) build() (*Snapshot, error) {
	f := Empty()
	if h.path != "" {
		loaded, err := Load(h.path)
		if err != nil {
			return nil, err
		}
		f = loaded
	}
	return NewSnapshot(f, h.overrides)
}

func (h *Holder) drainEvents() {
	if h.watcher == nil {
		return
	}
	target := filepath.Clean(h.path)
	for {
		select {
		case ev, ok := <-h.watcher.Events:
			if !ok {
				h.watcher = nil
				return
			}
			if filepath.Clean(ev.Name) == target && (ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)) {
				h.logger.Debug().
					Str(log.FieldEvent, "settings.file_changed").
					Str("op", ev.Op.String()).
					Msg("configuration file changed")
				h.dirty = true
			}
		case err, ok := <-h.watcher.Errors:
			if !ok {
				h.watcher = nil
				return
			}
			h.logger.Warn().Err(err).Str(log.FieldEvent, "settings.watcher_error").Msg("configuration watcher error")
		default:
			return
		}
	}
}
