// SPDX-License-Identifier: MIT

package daemon

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Per-IP request budget of the metrics/health server.
const (
	rateLimitRequests = 120
	rateLimitWindow   = time.Minute
)

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Devices   int       `json:"devices"`
	// LastPass is when the monitor loop last published its status.
	LastPass *time.Time `json:"last_pass,omitempty"`
}

// NewRouter builds the handler of the metrics/health server: /metrics,
// /healthz and /status.
func NewRouter(deps Deps) http.Handler {
	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(httprate.Limit(
		rateLimitRequests,
		rateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rateLimitWindow.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limit_exceeded"}`))
		}),
	))

	r.Method(http.MethodGet, "/metrics", metricsHandler)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		resp := healthResponse{Status: "healthy", Timestamp: time.Now().UTC()}
		if deps.Status != nil {
			if st := deps.Status.LastStatus(); st != nil {
				updated := st.UpdatedAt
				resp.LastPass = &updated
				resp.Devices = len(st.Devices)
			}
		}
		writeJSON(w, http.StatusOK, resp)
	})
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		if deps.Status == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "status_unavailable"})
			return
		}
		st := deps.Status.LastStatus()
		if st == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "status_pending"})
			return
		}
		writeJSON(w, http.StatusOK, st)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
