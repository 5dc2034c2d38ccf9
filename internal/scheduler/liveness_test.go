package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fleetportal/internal/domain"
	"fleetportal/internal/logger"
)

type fakeStore struct {
	mu      sync.Mutex
	stale   []*domain.Host
	listErr error
	marked  [][]uint
}

func (f *fakeStore) ListStaleOnline(_ context.Context, _ time.Time) ([]*domain.Host, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stale, f.listErr
}

func (f *fakeStore) MarkOffline(_ context.Context, ids []uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, ids)
	return nil
}

func (f *fakeStore) markedBatches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.marked)
}

func testLogger(t *testing.T) logger.Logger {
	t.Helper()
	return logger.New("error", false)
}

func TestSweepMarksStaleHosts(t *testing.T) {
	store := &fakeStore{stale: []*domain.Host{
		{ID: 1, HostID: "AAA", Name: "a"},
		{ID: 2, HostID: "BBB", Name: "b"},
	}}
	m := NewLivenessMonitor(store, testLogger(t), 0, 0)

	if err := m.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if len(store.marked) != 1 || len(store.marked[0]) != 2 {
		t.Fatalf("marked = %v, want one batch of two ids", store.marked)
	}
}

func TestSweepNothingStale(t *testing.T) {
	store := &fakeStore{}
	m := NewLivenessMonitor(store, testLogger(t), 0, 0)

	if err := m.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(store.marked) != 0 {
		t.Fatalf("MarkOffline called for an empty batch")
	}
}

func TestSweepPropagatesStoreError(t *testing.T) {
	boom := errors.New("db closed")
	m := NewLivenessMonitor(&fakeStore{listErr: boom}, testLogger(t), 0, 0)

	if err := m.Sweep(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestMonitorStartStop(t *testing.T) {
	store := &fakeStore{stale: []*domain.Host{{ID: 1, HostID: "AAA"}}}
	m := NewLivenessMonitor(store, testLogger(t), 10*time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx)

	deadline := time.After(2 * time.Second)
	for store.markedBatches() == 0 {
		select {
		case <-deadline:
			t.Fatal("sweep never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}

	m.Stop()
}

func TestDefaultsApplied(t *testing.T) {
	m := NewLivenessMonitor(&fakeStore{}, testLogger(t), 0, 0)
	if m.period != DefaultSweepPeriod {
		t.Fatalf("period = %s, want %s", m.period, DefaultSweepPeriod)
	}
	if m.threshold != DefaultStaleThreshold {
		t.Fatalf("threshold = %s, want %s", m.threshold, DefaultStaleThreshold)
	}
}
