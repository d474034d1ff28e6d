// SPDX-License-Identifier: MIT

// Package storageapi is the HTTP/JSON client for HDHomeRun storage
// appliances: capacity and identity, recorded series and episodes, current
// playback/record activity and the delete command.
package storageapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/log"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/metrics"
	platformnet "github.com/jmattroberts/hdhr-disk-space-monitor/internal/platform/net"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/telemetry"
)

const (
	discoverPath = "discover.json"
	statusPath   = "status.json"

	maxBodyBytes = 16 << 20

	defaultAttempts   = 3
	defaultRetryDelay = 200 * time.Millisecond
	defaultRate       = 20 // requests per second per appliance
	defaultBurst      = 10
)

// Options tunes a Client. Zero values select the defaults.
type Options struct {
	Attempts   uint
	RetryDelay time.Duration
	// RequestsPerSecond paces requests to a single appliance host.
	RequestsPerSecond float64
	Burst             int
}

// Client talks to storage appliances. Requests to one host are paced by a
// token bucket; idempotent GETs are retried on transport and 5xx failures.
// The delete command is never retried.
type Client struct {
	http   *http.Client
	opts   Options
	logger zerolog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New returns a Client using the supplied HTTP client.
func New(httpClient *http.Client, opts Options) *Client {
	if opts.Attempts == 0 {
		opts.Attempts = defaultAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = defaultRate
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultBurst
	}
	return &Client{
		http:     httpClient,
		opts:     opts,
		logger:   log.WithComponent("storageapi"),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Discover fetches BaseURL/discover.json.
func (c *Client) Discover(ctx context.Context, baseURL string) (DeviceInfo, error) {
	var info DeviceInfo
	u, err := platformnet.JoinPath(baseURL, discoverPath)
	if err != nil {
		return info, &APIError{Sentinel: ErrInvalidURL, Operation: "discover", Err: err}
	}
	err = c.getJSON(ctx, "discover", u, &info)
	return info, err
}

// Series fetches the storage URL (recorded_files.json). Entries repeating
// an earlier SeriesID are dropped.
func (c *Client) Series(ctx context.Context, storageURL string) ([]Series, error) {
	var raw []Series
	if err := c.getJSON(ctx, "series", storageURL, &raw); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(raw))
	out := raw[:0]
	for _, s := range raw {
		if _, dup := seen[s.SeriesID]; dup {
			continue
		}
		seen[s.SeriesID] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

// Episodes fetches the recordings of one series.
func (c *Client) Episodes(ctx context.Context, episodesURL string) ([]Recording, error) {
	var out []Recording
	err := c.getJSON(ctx, "episodes", episodesURL, &out)
	return out, err
}

// Status fetches BaseURL/status.json.
func (c *Client) Status(ctx context.Context, baseURL string) ([]Resource, error) {
	u, err := platformnet.JoinPath(baseURL, statusPath)
	if err != nil {
		return nil, &APIError{Sentinel: ErrInvalidURL, Operation: "status", Err: err}
	}
	var out []Resource
	err = c.getJSON(ctx, "status", u, &out)
	return out, err
}

// Delete issues the delete command for a recording, optionally asking the
// appliance to record the episode again.
func (c *Client) Delete(ctx context.Context, cmdURL string, rerecord bool) error {
	pairs := []string{"cmd=delete"}
	if rerecord {
		pairs = append(pairs, "rerecord=1")
	}
	u, err := platformnet.AppendQuery(cmdURL, pairs...)
	if err != nil {
		return &APIError{Sentinel: ErrInvalidURL, Operation: "delete", Err: err}
	}
	resp, err := c.do(ctx, "delete", http.MethodPost, u)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	return nil
}

func (c *Client) getJSON(ctx context.Context, op, rawURL string, dst any) error {
	return retry.Do(
		func() error {
			resp, err := c.do(ctx, op, http.MethodGet, rawURL)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()
			if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(dst); err != nil {
				return &APIError{Sentinel: ErrBadResponse, Operation: op, URL: platformnet.SanitizeURL(rawURL), Err: err}
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.opts.Attempts),
		retry.Delay(c.opts.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug().Err(err).Str("operation", op).Uint("attempt", n+1).Msg("retrying appliance request")
		}),
	)
}

// do performs one paced request and maps transport failures and non-2xx
// statuses to APIError values.
func (c *Client) do(ctx context.Context, op, method, rawURL string) (*http.Response, error) {
	safeURL := platformnet.SanitizeURL(rawURL)
	u, ok := platformnet.ParseDirectHTTPURL(rawURL)
	if !ok {
		return nil, &APIError{Sentinel: ErrInvalidURL, Operation: op, URL: safeURL}
	}

	ctx, span := telemetry.Tracer("storageapi").Start(ctx, "storageapi."+op)
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.OperationKey, op), attribute.String("server.address", u.Host))

	if err := c.limiter(u).Wait(ctx); err != nil {
		return nil, classifyTransport(op, safeURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, &APIError{Sentinel: ErrInvalidURL, Operation: op, URL: safeURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveStorageRequest(op, "error", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return nil, classifyTransport(op, safeURL, err)
	}
	metrics.ObserveStorageRequest(op, fmt.Sprintf("%d", resp.StatusCode), time.Since(start))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		span.SetStatus(codes.Error, resp.Status)
		return nil, classifyStatus(op, safeURL, resp.StatusCode)
	}
	return resp, nil
}

func (c *Client) limiter(u *url.URL) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[u.Host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(c.opts.RequestsPerSecond), c.opts.Burst)
		c.limiters[u.Host] = l
	}
	return l
}
