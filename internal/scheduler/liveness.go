package scheduler

import (
	"context"
	"time"

	"fleetportal/internal/domain"
	"fleetportal/internal/logger"
)

const (
	DefaultSweepPeriod    = 60 * time.Second
	DefaultStaleThreshold = 120 * time.Second
)

// StaleHostStore is the slice of the store the monitor sweeps against.
type StaleHostStore interface {
	ListStaleOnline(ctx context.Context, cutoff time.Time) ([]*domain.Host, error)
	MarkOffline(ctx context.Context, hostRowIDs []uint) error
}

// LivenessMonitor periodically flips hosts that stopped reporting to
// offline. A single goroutine runs the sweeps inline, so a slow database
// delays the next tick rather than stacking overlapping sweeps.
type LivenessMonitor struct {
	store     StaleHostStore
	logger    logger.Logger
	period    time.Duration
	threshold time.Duration
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func NewLivenessMonitor(store StaleHostStore, log logger.Logger, period, threshold time.Duration) *LivenessMonitor {
	if period <= 0 {
		period = DefaultSweepPeriod
	}
	if threshold <= 0 {
		threshold = DefaultStaleThreshold
	}
	return &LivenessMonitor{
		store:     store,
		logger:    log,
		period:    period,
		threshold: threshold,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

func (m *LivenessMonitor) Start(ctx context.Context) {
	m.logger.Info("liveness monitor started",
		logger.Duration("period", m.period),
		logger.Duration("threshold", m.threshold),
	)

	go func() {
		defer close(m.doneCh)

		ticker := time.NewTicker(m.period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				if err := m.Sweep(ctx); err != nil {
					m.logger.Error("liveness sweep failed", logger.Error(err))
				}
			}
		}
	}()
}

func (m *LivenessMonitor) Stop() {
	close(m.stopCh)
	<-m.doneCh
	m.logger.Info("liveness monitor stopped")
}

// Sweep marks every host whose last report predates the staleness cutoff
// as offline. Cached snapshots are left alone; the online flag is what
// labels them stale. Exported so the sweep can be triggered outside the
// ticker.
func (m *LivenessMonitor) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-m.threshold)

	stale, err := m.store.ListStaleOnline(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	ids := make([]uint, 0, len(stale))
	for _, h := range stale {
		ids = append(ids, h.ID)
	}
	if err := m.store.MarkOffline(ctx, ids); err != nil {
		return err
	}

	for _, h := range stale {
		m.logger.Warn("host went stale, marked offline",
			logger.String("host_id", h.HostID),
			logger.String("name", h.Name),
			logger.Time("last_seen", h.LastSeenAt),
		)
	}
	return nil
}
