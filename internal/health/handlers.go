// Package health serves the liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gastro-rechner/internal/common"
)

var draining atomic.Bool

// SetReady toggles whether the process accepts traffic. It is switched off at
// the start of a graceful shutdown so load balancers stop routing to us.
func SetReady(ready bool) { draining.Store(!ready) }

// Probe checks one dependency.
type Probe struct {
	Name    string
	Timeout time.Duration
	Check   func(ctx context.Context) error
}

func (p Probe) run(ctx context.Context) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Check(ctx)
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Probes []Probe
	Logger zerolog.Logger
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready runs every probe. Failure details are logged, not returned.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if draining.Load() {
		common.JSON(w, http.StatusServiceUnavailable, map[string]any{"status": "draining"})
		return
	}
	checks := make(map[string]string, len(h.Probes))
	healthy := true
	for _, p := range h.Probes {
		if p.Check == nil {
			continue
		}
		if err := p.run(r.Context()); err != nil {
			healthy = false
			checks[p.Name] = "unavailable"
			h.Logger.Warn().Err(err).Str("dependency", p.Name).Msg("readiness probe failed")
			continue
		}
		checks[p.Name] = "ok"
	}
	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	common.JSON(w, code, map[string]any{"status": status, "checks": checks})
}
