package bans

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gatewatch-systems/gatewatch/internal/logging"
	"github.com/gatewatch-systems/gatewatch/internal/metrics"
)

// Reaper periodically transitions expired temporary bans out of the active
// set. The sweep runs independently of the write path: candidates are
// collected first, then each IP is expired under its own shard lock, so a
// concurrent ban extending an IP always wins over the sweep.
type Reaper struct {
	mu       sync.Mutex
	registry *Registry
	interval time.Duration
	logger   *logging.Logger
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewReaper creates a reaper sweeping the registry on the given interval.
func NewReaper(registry *Registry, interval time.Duration, logger *logging.Logger) *Reaper {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Reaper{
		registry: registry,
		interval: interval,
		logger:   logger,
	}
}

// Start begins the sweep loop.
func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reaper already running")
	}
	r.running = true
	r.stopChan = make(chan struct{})
	r.mu.Unlock()

	r.logger.Info("expiry reaper starting", "interval", r.interval.String())

	r.wg.Add(1)
	go r.run(ctx)
	return nil
}

// Stop gracefully stops the sweep loop.
func (r *Reaper) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return fmt.Errorf("reaper not running")
	}
	r.running = false
	close(r.stopChan)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("expiry reaper stopped")
	return nil
}

func (r *Reaper) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			expired := r.Sweep(ctx)
			if expired > 0 {
				r.logger.Info("expired bans removed", "count", expired)
			}
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Sweep expires all candidates whose TTL has passed and returns how many were
// removed. Idempotent: a second immediate sweep finds no candidates. The loop
// is interruptible between IPs; partial progress is always consistent because
// each expiry is atomic per IP.
func (r *Reaper) Sweep(ctx context.Context) int {
	now := r.registry.clock()
	metrics.ReaperSweeps.Inc()

	expired := 0
	for _, ip := range r.registry.ExpiredCandidates(now) {
		select {
		case <-ctx.Done():
			return expired
		default:
		}
		if r.registry.Expire(ip, now) {
			expired++
			metrics.ReaperExpired.Inc()
		}
	}
	return expired
}
