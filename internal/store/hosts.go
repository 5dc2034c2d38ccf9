package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"fleetportal/internal/domain"
)

func hostToDomain(m *hostModel) *domain.Host {
	return &domain.Host{
		ID:         m.ID,
		HostID:     m.HostID,
		OwnerID:    m.OwnerID,
		Name:       m.Name,
		Address:    m.Address,
		Port:       m.Port,
		Region:     m.Region,
		Version:    m.Version,
		AgentKey:   m.AgentKey,
		Online:     m.Online,
		LastSeenAt: m.LastSeenAt,
		CreatedAt:  m.CreatedAt,
	}
}

func hostsToDomain(models []hostModel) []*domain.Host {
	out := make([]*domain.Host, 0, len(models))
	for i := range models {
		out = append(out, hostToDomain(&models[i]))
	}
	return out
}

// CreateHost registers a host. An owner may not register the same address
// twice; that is a Conflict.
func (s *Store) CreateHost(ctx context.Context, h *domain.Host) (*domain.Host, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&hostModel{}).
		Where("owner_id = ? AND address = ?", h.OwnerID, h.Address).
		Count(&count).Error
	if err != nil {
		return nil, domain.WrapE(domain.KindInternal, "failed to check address", err)
	}
	if count > 0 {
		return nil, domain.E(domain.KindConflict, "this address is already registered")
	}

	m := hostModel{
		HostID:     h.HostID,
		OwnerID:    h.OwnerID,
		Name:       h.Name,
		Address:    h.Address,
		Port:       h.Port,
		Region:     h.Region,
		Version:    h.Version,
		AgentKey:   h.AgentKey,
		Online:     h.Online,
		LastSeenAt: h.LastSeenAt,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, domain.WrapE(domain.KindInternal, "failed to create host", err)
	}
	return hostToDomain(&m), nil
}

// HostByHostID fetches a host by its public identifier.
func (s *Store) HostByHostID(ctx context.Context, hostID string) (*domain.Host, error) {
	var m hostModel
	err := s.db.WithContext(ctx).First(&m, "host_id = ?", hostID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.E(domain.KindNotFound, "host not found")
	}
	if err != nil {
		return nil, domain.WrapE(domain.KindInternal, "failed to fetch host", err)
	}
	return hostToDomain(&m), nil
}

// HostByAgentKey resolves the per-host credential carried by a status push.
func (s *Store) HostByAgentKey(ctx context.Context, agentKey string) (*domain.Host, error) {
	var m hostModel
	err := s.db.WithContext(ctx).First(&m, "agent_key = ?", agentKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.E(domain.KindUnauthenticated, "unknown agent key")
	}
	if err != nil {
		return nil, domain.WrapE(domain.KindInternal, "failed to resolve agent key", err)
	}
	return hostToDomain(&m), nil
}

// HostByAddress finds a host registered under an address, any owner.
func (s *Store) HostByAddress(ctx context.Context, address string) (*domain.Host, error) {
	var m hostModel
	err := s.db.WithContext(ctx).First(&m, "address = ?", address).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.E(domain.KindNotFound, "host not found")
	}
	if err != nil {
		return nil, domain.WrapE(domain.KindInternal, "failed to fetch host", err)
	}
	return hostToDomain(&m), nil
}

// HostsOwnedBy returns the hosts a user owns, ordered by name.
func (s *Store) HostsOwnedBy(ctx context.Context, ownerID uint) ([]*domain.Host, error) {
	var models []hostModel
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).Order("name ASC").
		Find(&models).Error
	if err != nil {
		return nil, domain.WrapE(domain.KindInternal, "failed to list owned hosts", err)
	}
	return hostsToDomain(models), nil
}

// SharedHost is a host visible through an access grant.
type SharedHost struct {
	Host *domain.Host
	Role domain.Role
}

// HostsSharedWith returns hosts the user can see via grants, matched by
// external id or linked user id.
func (s *Store) HostsSharedWith(ctx context.Context, u *domain.User) ([]SharedHost, error) {
	var grants []grantModel
	err := s.db.WithContext(ctx).
		Where("external_id = ? OR user_id = ?", u.ExternalID, u.ID).
		Find(&grants).Error
	if err != nil {
		return nil, domain.WrapE(domain.KindInternal, "failed to list grants", err)
	}

	out := make([]SharedHost, 0, len(grants))
	for i := range grants {
		var m hostModel
		err := s.db.WithContext(ctx).First(&m, "id = ?", grants[i].HostID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue // host deleted under the grant, skip
		}
		if err != nil {
			return nil, domain.WrapE(domain.KindInternal, "failed to fetch shared host", err)
		}
		out = append(out, SharedHost{Host: hostToDomain(&m), Role: domain.Role(grants[i].Role)})
	}
	return out, nil
}

// AllHosts returns every registered host, ordered by name.
func (s *Store) AllHosts(ctx context.Context) ([]*domain.Host, error) {
	var models []hostModel
	err := s.db.WithContext(ctx).Order("name ASC").Find(&models).Error
	if err != nil {
		return nil, domain.WrapE(domain.KindInternal, "failed to list hosts", err)
	}
	return hostsToDomain(models), nil
}

// UpdateHost persists mutable registration fields (name, address, port,
// region). The per-owner address invariant is re-checked when the address
// changes.
func (s *Store) UpdateHost(ctx context.Context, h *domain.Host) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&hostModel{}).
		Where("owner_id = ? AND address = ? AND id <> ?", h.OwnerID, h.Address, h.ID).
		Count(&count).Error
	if err != nil {
		return domain.WrapE(domain.KindInternal, "failed to check address", err)
	}
	if count > 0 {
		return domain.E(domain.KindConflict, "this address is already registered")
	}

	err = s.db.WithContext(ctx).Model(&hostModel{}).Where("id = ?", h.ID).
		Updates(map[string]interface{}{
			"name":    h.Name,
			"address": h.Address,
			"port":    h.Port,
			"region":  h.Region,
		}).Error
	if err != nil {
		return domain.WrapE(domain.KindInternal, "failed to update host", err)
	}
	return nil
}

// TouchStatus records a valid status report: the host goes online, last-seen
// moves to now, and the reported version/name are refreshed.
func (s *Store) TouchStatus(ctx context.Context, hostRowID uint, version, name string, now time.Time) error {
	updates := map[string]interface{}{
		"online":       true,
		"last_seen_at": now,
	}
	if version != "" {
		updates["version"] = version
	}
	if name != "" {
		updates["name"] = name
	}
	err := s.db.WithContext(ctx).Model(&hostModel{}).Where("id = ?", hostRowID).
		Updates(updates).Error
	if err != nil {
		return domain.WrapE(domain.KindInternal, "failed to record status", err)
	}
	return nil
}

// RotateAgentKey replaces the host's shared secret.
func (s *Store) RotateAgentKey(ctx context.Context, hostRowID uint, key string) error {
	err := s.db.WithContext(ctx).Model(&hostModel{}).Where("id = ?", hostRowID).
		Update("agent_key", key).Error
	if err != nil {
		return domain.WrapE(domain.KindInternal, "failed to rotate agent key", err)
	}
	return nil
}

// DeleteHost removes the host and cascades its access grants.
func (s *Store) DeleteHost(ctx context.Context, hostRowID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&grantModel{}, "host_id = ?", hostRowID).Error; err != nil {
			return err
		}
		return tx.Delete(&hostModel{}, "id = ?", hostRowID).Error
	})
	if err != nil {
		return domain.WrapE(domain.KindInternal, "failed to delete host", err)
	}
	return nil
}

// ListStaleOnline returns hosts still flagged online whose last report is
// older than cutoff. Used by the liveness monitor.
func (s *Store) ListStaleOnline(ctx context.Context, cutoff time.Time) ([]*domain.Host, error) {
	var models []hostModel
	err := s.db.WithContext(ctx).
		Where("online = ? AND last_seen_at < ?", true, cutoff).
		Find(&models).Error
	if err != nil {
		return nil, domain.WrapE(domain.KindInternal, "failed to list stale hosts", err)
	}
	return hostsToDomain(models), nil
}

// MarkOffline flips the online flag to false for the given host rows.
func (s *Store) MarkOffline(ctx context.Context, hostRowIDs []uint) error {
	if len(hostRowIDs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Model(&hostModel{}).
		Where("id IN ?", hostRowIDs).
		Update("online", false).Error
	if err != nil {
		return domain.WrapE(domain.KindInternal, "failed to mark hosts offline", err)
	}
	return nil
}
