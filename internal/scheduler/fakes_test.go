// SPDX-License-Identifier: MIT

package scheduler

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/hdhr"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/settings"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/storageapi"
)

const (
	testBaseURL    = "http://192.168.1.20"
	testStorageURL = "http://192.168.1.20/recorded_files.json"
)

// fakeClock advances only when the loop sleeps or the test says so.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) NewTimer(d time.Duration) Timer {
	c.Advance(d)
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return &fakeTimer{ch: ch}
}

type fakeTimer struct {
	ch chan time.Time
}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }
func (t *fakeTimer) Stop() bool          { return true }

type fakeDiscoverer struct {
	mu      sync.Mutex
	results []hdhr.Result
	calls   int
	err     error
}

// Discover returns the configured results in turn, repeating the last one.
func (f *fakeDiscoverer) Discover(ctx context.Context) (hdhr.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return hdhr.Result{}, err
	}
	if f.err != nil {
		return hdhr.Result{}, f.err
	}
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	if i < 0 {
		return hdhr.Result{}, nil
	}
	return f.results[i], nil
}

func storageDevice() *hdhr.Device {
	return &hdhr.Device{
		Kind:       hdhr.KindStorage,
		ID:         "1050A1B2",
		IP:         "192.168.1.20",
		TunerCount: 4,
		BaseURL:    testBaseURL,
		StorageURL: testStorageURL,
	}
}

type fakeAPI struct {
	mu       sync.Mutex
	total    int64
	free     int64
	noSpace  bool
	panics   bool
	series   []storageapi.Series
	episodes map[string][]storageapi.Recording
	// recordingSize is the space a delete gives back.
	recordingSize int64
	deleted       []string
	discoverCalls int
}

func newFakeAPI(total, free int64) *fakeAPI {
	return &fakeAPI{total: total, free: free, episodes: map[string][]storageapi.Recording{}}
}

func (f *fakeAPI) Discover(_ context.Context, baseURL string) (storageapi.DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("appliance exploded")
	}
	f.discoverCalls++
	if baseURL != testBaseURL {
		return storageapi.DeviceInfo{}, &storageapi.APIError{Sentinel: storageapi.ErrNotFound, Operation: "discover", Status: 404}
	}
	info := storageapi.DeviceInfo{
		FriendlyName: "HDHomeRun SERVIO",
		ModelNumber:  "HHDD-2TB",
		DeviceID:     "1050A1B2",
		BaseURL:      testBaseURL,
		StorageURL:   testStorageURL,
	}
	if !f.noSpace {
		total, free := f.total, f.free
		info.TotalSpace, info.FreeSpace = &total, &free
	}
	return info, nil
}

func (f *fakeAPI) Series(context.Context, string) ([]storageapi.Series, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storageapi.Series
	for _, s := range f.series {
		if len(f.episodes[s.EpisodesURL]) > 0 {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeAPI) Episodes(_ context.Context, u string) ([]storageapi.Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]storageapi.Recording(nil), f.episodes[u]...), nil
}

func (f *fakeAPI) Status(context.Context, string) ([]storageapi.Resource, error) {
	return nil, nil
}

func (f *fakeAPI) Delete(_ context.Context, cmdURL string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, cmdURL)
	for u, recs := range f.episodes {
		for i, r := range recs {
			if r.CmdURL == cmdURL {
				f.episodes[u] = append(recs[:i:i], recs[i+1:]...)
				f.free += f.recordingSize
				return nil
			}
		}
	}
	return errors.New("no such recording")
}

func (f *fakeAPI) deletedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// addSeries registers a series with recordings starting at the given Unix
// times, one hour each.
func (f *fakeAPI) addSeries(id, title, category string, starts ...int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	epURL := testBaseURL + "/recorded_files.json?SeriesID=" + id
	f.series = append(f.series, storageapi.Series{SeriesID: id, Title: title, Category: category, EpisodesURL: epURL})
	for _, start := range starts {
		stem := title + " " + time.Unix(start, 0).UTC().Format("20060102-1504")
		f.episodes[epURL] = append(f.episodes[epURL], storageapi.Recording{
			SeriesID:        id,
			Title:           title,
			Filename:        title + "/" + stem + ".mpg",
			CmdURL:          testBaseURL + "/recorded/cmd?id=" + strings.ReplaceAll(stem, " ", ""),
			StartTime:       start,
			EndTime:         start + 3600,
			RecordStartTime: start,
			RecordEndTime:   start + 3600,
		})
	}
}

type fakeSettings struct {
	current *settings.Snapshot
	next    *settings.Snapshot
	nextErr error
	changed bool
}

func (f *fakeSettings) Current() *settings.Snapshot { return f.current }

func (f *fakeSettings) Changed() bool {
	c := f.changed
	f.changed = false
	return c
}

func (f *fakeSettings) Reload() (*settings.Snapshot, error) {
	if f.nextErr != nil {
		return nil, f.nextErr
	}
	f.current = f.next
	return f.current, nil
}

// swap makes the next change check report a new snapshot.
func (f *fakeSettings) swap(next *settings.Snapshot) {
	f.next = next
	f.nextErr = nil
	f.changed = true
}

func snapshot(t *testing.T, doc string) *settings.Snapshot {
	t.Helper()
	f, err := settings.Parse(settings.FormatYAML, []byte(doc))
	require.NoError(t, err)
	s, err := settings.NewSnapshot(f, settings.Overrides{})
	require.NoError(t, err)
	return s
}

type harness struct {
	sched    *Scheduler
	clock    *fakeClock
	api      *fakeAPI
	settings *fakeSettings
	disc     *fakeDiscoverer
	logs     *bytes.Buffer
}

func newHarness(t *testing.T, doc string, api *fakeAPI, opts Options) *harness {
	t.Helper()
	h := &harness{
		clock:    newFakeClock(),
		api:      api,
		settings: &fakeSettings{current: snapshot(t, doc)},
		disc:     &fakeDiscoverer{results: []hdhr.Result{{StorageServers: []*hdhr.Device{storageDevice()}}}},
		logs:     &bytes.Buffer{},
	}
	h.sched = New(Deps{
		Discoverer: h.disc,
		API:        api,
		Settings:   h.settings,
		Selector:   hdhr.Selector{Resolver: noResolver{}},
		Clock:      h.clock,
	}, opts)
	h.sched.logger = zerolog.New(h.logs)
	h.sched.engine.Logger = zerolog.New(h.logs)
	return h
}

func (h *harness) init(t *testing.T) {
	t.Helper()
	require.NoError(t, h.sched.Init(context.Background()))
}

func (h *harness) tick(t *testing.T) {
	t.Helper()
	require.NoError(t, h.sched.Tick(context.Background()))
}

func (h *harness) device() *deviceState {
	return h.sched.devices[0]
}

// noResolver fails every lookup so hostname requests never hit DNS.
type noResolver struct{}

func (noResolver) LookupIPAddr(context.Context, string) ([]net.IPAddr, error) {
	return nil, &net.DNSError{Err: "no such host", IsNotFound: true}
}
