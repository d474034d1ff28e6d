// SPDX-License-Identifier: MIT

package policy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/log"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/metrics"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/storageapi"
)

// Outcome is the result of one guarded delete attempt.
type Outcome int

const (
	Deleted Outcome = iota
	SkippedProtected
	SkippedPlaying
	SkippedRecording
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Deleted:
		return "deleted"
	case SkippedProtected:
		return "protected"
	case SkippedPlaying:
		return "playing"
	case SkippedRecording:
		return "recording"
	default:
		return "failed"
	}
}

// Triggers label why a deletion was attempted.
const (
	TriggerFreeSpace   = "free_space"
	TriggerMaxAge      = "max_age"
	TriggerMaxEpisodes = "max_episodes"
)

// Deleter issues the appliance delete command.
type Deleter interface {
	Delete(ctx context.Context, cmdURL string, rerecord bool) error
}

// Engine performs guarded deletions.
type Engine struct {
	Client Deleter
	// DryRun runs every guard and logs as usual but sends no delete request.
	DryRun bool
	Now    func() time.Time
	Logger zerolog.Logger
}

// NewEngine returns an Engine logging under the "policy" component.
func NewEngine(client Deleter, dryRun bool) *Engine {
	return &Engine{
		Client: client,
		DryRun: dryRun,
		Now:    time.Now,
		Logger: log.WithComponent("policy"),
	}
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// Delete checks the guards in order (protected, playing, recording) and
// then deletes the recording. reason completes the log line, e.g.
// "to free space".
func (e *Engine) Delete(ctx context.Context, c Candidate, trigger, reason string) (Outcome, error) {
	outcome, err := e.delete(ctx, c, reason)
	label := outcome.String()
	if outcome == Deleted && e.DryRun {
		label = "dry_run"
	}
	metrics.IncDeletion(trigger, label)
	return outcome, err
}

func (e *Engine) delete(ctx context.Context, c Candidate, reason string) (Outcome, error) {
	switch {
	case c.Protected:
		return SkippedProtected, nil
	case c.Playing:
		return SkippedPlaying, nil
	case c.Recording:
		return SkippedRecording, nil
	}

	e.Logger.Info().
		Str(log.FieldEvent, "maintenance.delete").
		Str(log.FieldSeriesID, c.SeriesID).
		Str(log.FieldFilename, c.Rec.Filename).
		Bool("rerecord", c.Rerecord()).
		Bool("dry_run", e.DryRun).
		Msgf("%s Deleting %q recorded %s %s", c.Device, c.SeriesTitle, Ctime(c.StartTime()), reason)

	if e.DryRun {
		return Deleted, nil
	}
	if err := e.Client.Delete(ctx, c.Rec.CmdURL, c.Rerecord()); err != nil {
		return Failed, fmt.Errorf("delete %q recorded %s: %w", c.SeriesTitle, Ctime(c.StartTime()), err)
	}
	return Deleted, nil
}

// FreeSpace deletes the first deletable recording of a sorted candidate
// list. It stops at the first deletion or the first protected entry, and
// skips recordings that are playing, recording or fail to delete. It
// reports whether a recording was deleted.
func (e *Engine) FreeSpace(ctx context.Context, device string, sorted []Candidate) bool {
	for _, c := range sorted {
		if c.Protected {
			break
		}
		outcome, err := e.Delete(ctx, c, TriggerFreeSpace, "to free space")
		if outcome == Deleted {
			return true
		}
		e.logSkip(c, outcome, err)
		if abandon(ctx, err) {
			return false
		}
	}
	e.Logger.Warn().
		Str(log.FieldEvent, "maintenance.nothing_deletable").
		Msgf("%s No deletable recordings found. Unable to free space.", device)
	return false
}

// PruneAged deletes the recordings of one series whose end is more than
// max_age_days ago, walking oldest first and stopping at the first one that
// has not expired. It returns the recordings that remain.
func (e *Engine) PruneAged(ctx context.Context, series []Candidate) []Candidate {
	if len(series) == 0 || series[0].Policy.MaxAgeDays == nil {
		return series
	}
	maxAge := *series[0].Policy.MaxAgeDays
	cutoff := e.now().Add(-time.Duration(maxAge) * day)

	oldest := append([]Candidate(nil), series...)
	sortByStart(oldest)

	remaining := make([]Candidate, 0, len(oldest))
	for i, c := range oldest {
		if !c.EndTime().Before(cutoff) {
			remaining = append(remaining, oldest[i:]...)
			break
		}
		outcome, err := e.Delete(ctx, c, TriggerMaxAge, fmt.Sprintf("because it's older than %d days", maxAge))
		if outcome == Deleted {
			continue
		}
		e.logSkip(c, outcome, err)
		remaining = append(remaining, c)
		if abandon(ctx, err) {
			remaining = append(remaining, oldest[i+1:]...)
			break
		}
	}
	return remaining
}

// PruneExcess deletes recordings of one series from the front of the
// deletion order until no more than max_episodes remain. A recording that
// cannot be deleted still counts as handled, so the pass always terminates.
func (e *Engine) PruneExcess(ctx context.Context, series []Candidate, watchedFirst bool) []Candidate {
	if len(series) == 0 || series[0].Policy.MaxEpisodes == nil {
		return series
	}
	maxEpisodes := *series[0].Policy.MaxEpisodes

	sorted := append([]Candidate(nil), series...)
	Order{WatchedFirst: watchedFirst}.Sort(sorted)

	for len(sorted) > maxEpisodes {
		c := sorted[0]
		sorted = sorted[1:]
		reason := fmt.Sprintf("because there are %d recorded episodes (maximum is %d)", len(sorted)+1, maxEpisodes)
		outcome, err := e.Delete(ctx, c, TriggerMaxEpisodes, reason)
		if outcome == Deleted {
			continue
		}
		e.logSkip(c, outcome, err)
		if abandon(ctx, err) {
			break
		}
	}
	return sorted
}

func (e *Engine) logSkip(c Candidate, outcome Outcome, err error) {
	prefix := fmt.Sprintf("%s Failed to delete %q recorded %s", c.Device, c.SeriesTitle, Ctime(c.StartTime()))
	var ev *zerolog.Event
	switch outcome {
	case SkippedPlaying:
		ev, prefix = e.Logger.Warn(), prefix+" because it's playing right now"
	case SkippedRecording:
		ev, prefix = e.Logger.Warn(), prefix+" because it's recording right now"
	case SkippedProtected:
		// Pruning only sees unprotected series, so this is a young unwatched episode.
		ev, prefix = e.Logger.Debug(), prefix+" because it's protected"
	default:
		ev = e.Logger.Error().Err(err)
	}
	ev.Str(log.FieldEvent, "maintenance.delete_skipped").
		Str(log.FieldSeriesID, c.SeriesID).
		Str(log.FieldOutcome, outcome.String()).
		Msg(prefix)
}

// abandon reports whether a failure means the appliance is gone for this
// tick, in which case the rest of the batch is skipped.
func abandon(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, storageapi.ErrUnreachable) || errors.Is(err, storageapi.ErrTimeout)
}

func sortByStart(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Rec.StartTime < cs[j].Rec.StartTime })
}

// Ctime formats a timestamp the way the monitor's log lines show
// recording times, e.g. "Mon Jan  2 15:04:05 2006".
func Ctime(t time.Time) string {
	return t.Local().Format(time.ANSIC)
}
