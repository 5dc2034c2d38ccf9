package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fleetportal/internal/domain"
)

// DefaultSnapshotTTL bounds how long a mirrored snapshot outlives its host's
// last report. Stale mirrors age out on their own.
const DefaultSnapshotTTL = 10 * time.Minute

// Mirror persists the latest status snapshot per host in Redis, best effort.
// The in-memory cache is the source of truth; the mirror only warms it back
// up after a restart.
type Mirror struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMirror creates a snapshot mirror on the given client. A non-positive
// ttl falls back to DefaultSnapshotTTL.
func NewMirror(client *redis.Client, ttl time.Duration) *Mirror {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &Mirror{client: client, ttl: ttl}
}

// SaveSnapshot stores a host's snapshot and registers the host id.
func (m *Mirror) SaveSnapshot(ctx context.Context, hostID string, report *domain.StatusReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	pipe := m.client.Pipeline()
	pipe.Set(ctx, SnapshotKey(hostID), data, m.ttl)
	pipe.SAdd(ctx, KeyAllHosts, hostID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// GetSnapshot retrieves a host's mirrored snapshot.
func (m *Mirror) GetSnapshot(ctx context.Context, hostID string) (*domain.StatusReport, error) {
	data, err := m.client.Get(ctx, SnapshotKey(hostID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("snapshot not found: %s", hostID)
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var report domain.StatusReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &report, nil
}

// AllSnapshots retrieves every mirrored snapshot. Entries that expired or
// fail to decode are skipped.
func (m *Mirror) AllSnapshots(ctx context.Context) (map[string]*domain.StatusReport, error) {
	ids, err := m.client.SMembers(ctx, KeyAllHosts).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot ids: %w", err)
	}

	out := make(map[string]*domain.StatusReport, len(ids))
	for _, id := range ids {
		report, err := m.GetSnapshot(ctx, id)
		if err != nil {
			continue
		}
		out[id] = report
	}
	return out, nil
}

// DeleteSnapshot removes a host's mirrored snapshot.
func (m *Mirror) DeleteSnapshot(ctx context.Context, hostID string) error {
	pipe := m.client.Pipeline()
	pipe.Del(ctx, SnapshotKey(hostID))
	pipe.SRem(ctx, KeyAllHosts, hostID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
