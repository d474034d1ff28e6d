// SPDX-License-Identifier: MIT

package policy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/settings"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/storageapi"
)

type deleteCall struct {
	URL      string
	Rerecord bool
}

type fakeDeleter struct {
	mu    sync.Mutex
	calls []deleteCall
	// errs maps a command URL to the error its delete returns.
	errs map[string]error
}

func (f *fakeDeleter) Delete(_ context.Context, cmdURL string, rerecord bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, deleteCall{URL: cmdURL, Rerecord: rerecord})
	return f.errs[cmdURL]
}

func (f *fakeDeleter) urls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.URL
	}
	return out
}

var fixedNow = time.Unix(1_700_000_000, 0)

func newTestEngine(d Deleter) *Engine {
	return &Engine{Client: d, Now: func() time.Time { return fixedNow }, Logger: zerolog.Nop()}
}

func cmdURL(title string) string { return "http://192.168.1.20/cmd?id=" + title }

func TestDelete_Guards(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Candidate)
		want Outcome
	}{
		{"protected", protected, SkippedProtected},
		{"playing", playing, SkippedPlaying},
		{"recording", recording, SkippedRecording},
		{"protected wins over playing", func(c *Candidate) { c.Protected, c.Playing = true, true }, SkippedProtected},
		{"playing wins over recording", func(c *Candidate) { c.Playing, c.Recording = true, true }, SkippedPlaying},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDeleter{}
			got, err := newTestEngine(d).Delete(context.Background(), cand("a", 100, tt.mod), TriggerFreeSpace, "to free space")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Empty(t, d.calls)
		})
	}
}

func TestDelete_Rerecord(t *testing.T) {
	d := &fakeDeleter{}
	e := newTestEngine(d)

	unwatched := cand("a", 100, func(c *Candidate) { c.Policy.Rerecord = settings.RerecordUnwatched })
	w := cand("b", 100, watched, func(c *Candidate) { c.Policy.Rerecord = settings.RerecordUnwatched })

	_, err := e.Delete(context.Background(), unwatched, TriggerFreeSpace, "to free space")
	require.NoError(t, err)
	_, err = e.Delete(context.Background(), w, TriggerFreeSpace, "to free space")
	require.NoError(t, err)

	assert.Equal(t, []deleteCall{{URL: cmdURL("a"), Rerecord: true}, {URL: cmdURL("b"), Rerecord: false}}, d.calls)
}

func TestDelete_DryRun(t *testing.T) {
	d := &fakeDeleter{}
	e := newTestEngine(d)
	e.DryRun = true

	got, err := e.Delete(context.Background(), cand("a", 100), TriggerFreeSpace, "to free space")
	require.NoError(t, err)
	assert.Equal(t, Deleted, got)
	assert.Empty(t, d.calls)

	got, err = e.Delete(context.Background(), cand("b", 100, playing), TriggerFreeSpace, "to free space")
	require.NoError(t, err)
	assert.Equal(t, SkippedPlaying, got, "guards still apply in dry run")
}

func TestDelete_Failure(t *testing.T) {
	boom := &storageapi.APIError{Sentinel: storageapi.ErrUpstream, Operation: "delete", Status: 500}
	d := &fakeDeleter{errs: map[string]error{cmdURL("a"): boom}}

	got, err := newTestEngine(d).Delete(context.Background(), cand("a", 100), TriggerFreeSpace, "to free space")
	assert.Equal(t, Failed, got)
	require.Error(t, err)
	assert.ErrorIs(t, err, storageapi.ErrUpstream)
}

func TestFreeSpace_StopsAtFirstDeletion(t *testing.T) {
	d := &fakeDeleter{}
	sorted := []Candidate{cand("a", 100), cand("b", 200), cand("c", 300)}

	assert.True(t, newTestEngine(d).FreeSpace(context.Background(), "[dev]", sorted))
	assert.Equal(t, []string{cmdURL("a")}, d.urls())
}

func TestFreeSpace_SkipsBusyAndFailed(t *testing.T) {
	d := &fakeDeleter{errs: map[string]error{
		cmdURL("c"): &storageapi.APIError{Sentinel: storageapi.ErrUpstream, Operation: "delete", Status: 500},
	}}
	sorted := []Candidate{
		cand("a", 100, playing),
		cand("b", 200, recording),
		cand("c", 300),
		cand("d", 400),
		cand("e", 500),
	}

	assert.True(t, newTestEngine(d).FreeSpace(context.Background(), "[dev]", sorted))
	assert.Equal(t, []string{cmdURL("c"), cmdURL("d")}, d.urls())
}

func TestFreeSpace_StopsAtProtected(t *testing.T) {
	d := &fakeDeleter{}
	sorted := []Candidate{cand("a", 100, playing), cand("b", 200, protected), cand("c", 300, protected)}

	assert.False(t, newTestEngine(d).FreeSpace(context.Background(), "[dev]", sorted))
	assert.Empty(t, d.calls)
}

func TestFreeSpace_AbandonsWhenUnreachable(t *testing.T) {
	d := &fakeDeleter{errs: map[string]error{
		cmdURL("a"): &storageapi.APIError{Sentinel: storageapi.ErrUnreachable, Operation: "delete"},
	}}
	sorted := []Candidate{cand("a", 100), cand("b", 200)}

	assert.False(t, newTestEngine(d).FreeSpace(context.Background(), "[dev]", sorted))
	assert.Equal(t, []string{cmdURL("a")}, d.urls())
}

func TestFreeSpace_Empty(t *testing.T) {
	d := &fakeDeleter{}
	assert.False(t, newTestEngine(d).FreeSpace(context.Background(), "[dev]", nil))
}

func TestFreeSpace_WatchedMovieBeforeUnwatchedNews(t *testing.T) {
	// Category order puts news first, watched-first overrides it.
	news := cand("news", 100, order(0))
	movie := cand("movie", 900, watched, order(3))
	sorted := []Candidate{news, movie}
	Order{ByCategory: true, WatchedFirst: true}.Sort(sorted)

	d := &fakeDeleter{}
	assert.True(t, newTestEngine(d).FreeSpace(context.Background(), "[dev]", sorted))
	assert.Equal(t, []string{cmdURL("movie")}, d.urls())
}

func aged(days int) func(*Candidate) {
	return func(c *Candidate) {
		end := fixedNow.Add(-time.Duration(days) * day)
		c.Rec.StartTime = end.Add(-time.Hour).Unix()
		c.Rec.EndTime = end.Unix()
	}
}

func maxAge(days int) func(*Candidate) {
	return func(c *Candidate) { c.Policy.MaxAgeDays = intp(days) }
}

func maxEpisodes(n int) func(*Candidate) {
	return func(c *Candidate) { c.Policy.MaxEpisodes = intp(n) }
}

func TestPruneAged(t *testing.T) {
	d := &fakeDeleter{}
	series := []Candidate{
		cand("new", 0, aged(1), maxAge(7)),
		cand("old1", 0, aged(30), maxAge(7)),
		cand("mid", 0, aged(5), maxAge(7)),
		cand("old2", 0, aged(10), maxAge(7)),
	}

	remaining := newTestEngine(d).PruneAged(context.Background(), series)
	assert.Equal(t, []string{cmdURL("old1"), cmdURL("old2")}, d.urls())
	assert.Equal(t, []string{"mid", "new"}, titles(remaining))
}

func TestPruneAged_StopsAtFirstUnexpired(t *testing.T) {
	d := &fakeDeleter{}
	// Started earliest but ended recently: pruning stops there even though
	// a later recording has expired.
	long := cand("long", 0, maxAge(7))
	long.Rec.StartTime = fixedNow.Add(-40 * day).Unix()
	long.Rec.EndTime = fixedNow.Add(-2 * day).Unix()
	series := []Candidate{long, cand("old", 0, aged(20), maxAge(7))}

	remaining := newTestEngine(d).PruneAged(context.Background(), series)
	assert.Empty(t, d.calls)
	assert.Equal(t, []string{"long", "old"}, titles(remaining))
}

func TestPruneAged_KeepsSkipped(t *testing.T) {
	d := &fakeDeleter{}
	series := []Candidate{
		cand("busy", 0, aged(30), maxAge(7), playing),
		cand("old", 0, aged(20), maxAge(7)),
	}

	remaining := newTestEngine(d).PruneAged(context.Background(), series)
	assert.Equal(t, []string{cmdURL("old")}, d.urls())
	assert.Equal(t, []string{"busy"}, titles(remaining))
}

func TestPruneAged_NoLimit(t *testing.T) {
	d := &fakeDeleter{}
	series := []Candidate{cand("old", 0, aged(400))}
	remaining := newTestEngine(d).PruneAged(context.Background(), series)
	assert.Empty(t, d.calls)
	assert.Len(t, remaining, 1)
}

func TestPruneExcess(t *testing.T) {
	for extra := 0; extra <= 3; extra++ {
		d := &fakeDeleter{}
		var series []Candidate
		for i := 0; i < 4+extra; i++ {
			series = append(series, cand(string(rune('a'+i)), int64(1000-i*10), maxEpisodes(4)))
		}

		remaining := newTestEngine(d).PruneExcess(context.Background(), series, false)
		assert.Len(t, remaining, 4)
		assert.Len(t, d.calls, extra)
		// Later letters started earlier, so they go first.
		for i := 0; i < extra; i++ {
			assert.Equal(t, cmdURL(string(rune('a'+3+extra-i))), d.calls[i].URL)
		}
	}
}

func TestPruneExcess_WatchedFirst(t *testing.T) {
	d := &fakeDeleter{}
	series := []Candidate{
		cand("old", 100, maxEpisodes(1)),
		cand("new-watched", 200, watched, maxEpisodes(1)),
	}

	remaining := newTestEngine(d).PruneExcess(context.Background(), series, true)
	assert.Equal(t, []string{cmdURL("new-watched")}, d.urls())
	assert.Equal(t, []string{"old"}, titles(remaining))
}

func TestPruneExcess_SkippedCountsAsHandled(t *testing.T) {
	d := &fakeDeleter{}
	series := []Candidate{
		cand("a", 100, maxEpisodes(1), recording),
		cand("b", 200, maxEpisodes(1)),
		cand("c", 300, maxEpisodes(1)),
	}

	remaining := newTestEngine(d).PruneExcess(context.Background(), series, false)
	assert.Equal(t, []string{cmdURL("b")}, d.urls())
	assert.Equal(t, []string{"c"}, titles(remaining))
}

func TestPruneExcess_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &fakeDeleter{errs: map[string]error{cmdURL("a"): context.Canceled}}
	series := []Candidate{
		cand("a", 100, maxEpisodes(0)),
		cand("b", 200, maxEpisodes(0)),
	}

	newTestEngine(d).PruneExcess(ctx, series, false)
	assert.Equal(t, []string{cmdURL("a")}, d.urls())
}

func TestAbandon(t *testing.T) {
	ctx := context.Background()
	assert.False(t, abandon(ctx, nil))
	assert.False(t, abandon(ctx, errors.New("boom")))
	assert.True(t, abandon(ctx, &storageapi.APIError{Sentinel: storageapi.ErrTimeout}))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.True(t, abandon(canceled, nil))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "deleted", Deleted.String())
	assert.Equal(t, "protected", SkippedProtected.String())
	assert.Equal(t, "failed", Failed.String())
}

func TestCtime(t *testing.T) {
	ts := time.Date(2024, 3, 5, 9, 7, 2, 0, time.Local)
	assert.Equal(t, "Tue Mar  5 09:07:02 2024", Ctime(ts))
}
