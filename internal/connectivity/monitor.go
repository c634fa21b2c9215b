package connectivity

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"orbsync/internal/events"
	"orbsync/internal/models"

	"github.com/rs/zerolog"
)

// Monitor tracks the agent's view of remote reachability. It starts OFFLINE;
// the first signal (usually a startup probe) moves it to the real state and
// publishes the transition like any other.
type Monitor struct {
	client       *http.Client
	healthURL    string
	probeTimeout time.Duration
	bus          *events.Bus
	logger       *zerolog.Logger
	online       atomic.Bool
}

func NewMonitor(healthURL string, probeTimeout time.Duration, bus *events.Bus, logger *zerolog.Logger) *Monitor {
	if probeTimeout <= 0 {
		probeTimeout = models.DefaultProbeTimeout * time.Second
	}
	return &Monitor{
		client:       &http.Client{},
		healthURL:    healthURL,
		probeTimeout: probeTimeout,
		bus:          bus,
		logger:       logger,
	}
}

// Online returns the cached connectivity state.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// SetOnline records a network-available/unavailable signal. Only actual
// transitions publish an event.
func (m *Monitor) SetOnline(online bool) {
	if m.online.Swap(online) == online {
		return
	}

	if online {
		m.logger.Info().Msg("connection restored")
		m.bus.Publish(models.EventOnline, nil)
	} else {
		m.logger.Warn().Msg("connection lost")
		m.bus.Publish(models.EventOffline, nil)
	}
}

// VerifyConnectivity issues an active probe against the health endpoint with
// a bounded timeout. It reports reachability without touching the cached
// state — callers that distrust the cached signal reconcile themselves.
func (m *Monitor) VerifyConnectivity(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.healthURL, nil)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to build probe request")
		return false
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Watch probes on an interval and reconciles the cached state until ctx is
// done. Started by the agent when no OS-level signal source is available.
func (m *Monitor) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = models.DefaultProbeTimeout * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SetOnline(m.VerifyConnectivity(ctx))
		}
	}
}

// OnStatusChange registers a listener for online/offline/queued/synced events
// and returns its unregistration handle.
func (m *Monitor) OnStatusChange(fn events.Listener) func() {
	return m.bus.Subscribe(fn)
}
