package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/store"
)

// DefaultHousekeepingInterval is used when no interval is configured.
const DefaultHousekeepingInterval = time.Hour

// HousekeepingService periodically drops lineages whose refresh lifetime
// has ended so the store does not grow without bound.
type HousekeepingService struct {
	Store    store.AccessTokenStore
	Clock    Clock
	Logger   *slog.Logger
	Interval time.Duration

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewHousekeepingService returns a stopped worker. A non-positive interval
// falls back to DefaultHousekeepingInterval.
func NewHousekeepingService(
	s store.AccessTokenStore,
	clock Clock,
	logger *slog.Logger,
	interval time.Duration,
) *HousekeepingService {
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}
	if clock == nil {
		clock = SystemClock{}
	}

	return &HousekeepingService{
		Store:    s,
		Clock:    clock,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the worker in the background. Call Stop to shut it down.
// Starting twice, or after Stop, does nothing.
func (h *HousekeepingService) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started || h.stopped {
		return
	}
	h.started = true

	go h.run()
	h.Logger.Info("housekeeping service started", "interval", h.Interval)
}

// Stop blocks until any in-progress sweep has finished. It is safe to call
// on a worker that never started, and more than once.
func (h *HousekeepingService) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	close(h.stopCh)
	running := h.started
	h.mu.Unlock()

	if running {
		<-h.doneCh
	}
	h.Logger.Info("housekeeping service stopped")
}

func (h *HousekeepingService) run() {
	defer close(h.doneCh)

	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	// Sweep once on startup so a long outage does not wait a full interval.
	h.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			h.Sweep(context.Background())
		case <-h.stopCh:
			return
		}
	}
}

// Sweep deletes expired lineages once and reports how many went.
func (h *HousekeepingService) Sweep(ctx context.Context) int {
	n, err := h.Store.DeleteExpired(ctx, h.Clock.Now())
	if err != nil {
		h.Logger.Error("failed to delete expired lineages", "error", err)
		return 0
	}
	h.Logger.Debug("housekeeping sweep completed", "deleted", n)
	return n
}
