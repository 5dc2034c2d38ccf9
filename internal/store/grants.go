package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"fleetportal/internal/domain"
)

func grantToDomain(m *grantModel) *domain.AccessGrant {
	return &domain.AccessGrant{
		ID:          m.ID,
		HostID:      m.HostID,
		ExternalID:  m.ExternalID,
		UserID:      m.UserID,
		Role:        domain.Role(m.Role),
		GrantedByID: m.GrantedByID,
		CreatedAt:   m.CreatedAt,
	}
}

// CreateGrant adds an access grant. A second grant for the same
// (host, external id) pair is a Conflict; the existing grant is untouched.
func (s *Store) CreateGrant(ctx context.Context, g *domain.AccessGrant) (*domain.AccessGrant, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&grantModel{}).
		Where("host_id = ? AND external_id = ?", g.HostID, g.ExternalID).
		Count(&count).Error
	if err != nil {
		return nil, domain.WrapE(domain.KindInternal, "failed to check grant", err)
	}
	if count > 0 {
		return nil, domain.E(domain.KindConflict, "user already has access to this host")
	}

	m := grantModel{
		HostID:      g.HostID,
		ExternalID:  g.ExternalID,
		UserID:      g.UserID,
		Role:        int(g.Role),
		GrantedByID: g.GrantedByID,
		CreatedAt:   g.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, domain.WrapE(domain.KindInternal, "failed to create grant", err)
	}
	return grantToDomain(&m), nil
}

// GrantFor finds the grant a user holds on a host, matched by external id or
// linked user id. Returns (nil, nil) when no grant exists.
func (s *Store) GrantFor(ctx context.Context, hostRowID uint, u *domain.User) (*domain.AccessGrant, error) {
	var m grantModel
	err := s.db.WithContext(ctx).
		First(&m, "host_id = ? AND (external_id = ? OR user_id = ?)",
			hostRowID, u.ExternalID, u.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.WrapE(domain.KindInternal, "failed to look up grant", err)
	}
	return grantToDomain(&m), nil
}

// GrantByID fetches one grant scoped to a host.
func (s *Store) GrantByID(ctx context.Context, hostRowID, grantID uint) (*domain.AccessGrant, error) {
	var m grantModel
	err := s.db.WithContext(ctx).First(&m, "id = ? AND host_id = ?", grantID, hostRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.E(domain.KindNotFound, "access grant not found")
	}
	if err != nil {
		return nil, domain.WrapE(domain.KindInternal, "failed to fetch grant", err)
	}
	return grantToDomain(&m), nil
}

// GrantsForHost lists a host's grants ordered by role then creation time.
func (s *Store) GrantsForHost(ctx context.Context, hostRowID uint) ([]*domain.AccessGrant, error) {
	var models []grantModel
	err := s.db.WithContext(ctx).
		Where("host_id = ?", hostRowID).
		Order("role ASC").Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, domain.WrapE(domain.KindInternal, "failed to list grants", err)
	}
	out := make([]*domain.AccessGrant, 0, len(models))
	for i := range models {
		out = append(out, grantToDomain(&models[i]))
	}
	return out, nil
}

// UpdateGrantRole changes the role on an existing grant.
func (s *Store) UpdateGrantRole(ctx context.Context, hostRowID, grantID uint, role domain.Role) error {
	res := s.db.WithContext(ctx).Model(&grantModel{}).
		Where("id = ? AND host_id = ?", grantID, hostRowID).
		Update("role", int(role))
	if res.Error != nil {
		return domain.WrapE(domain.KindInternal, "failed to update grant", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.E(domain.KindNotFound, "access grant not found")
	}
	return nil
}

// DeleteGrant removes a grant from a host.
func (s *Store) DeleteGrant(ctx context.Context, hostRowID, grantID uint) error {
	res := s.db.WithContext(ctx).Delete(&grantModel{}, "id = ? AND host_id = ?", grantID, hostRowID)
	if res.Error != nil {
		return domain.WrapE(domain.KindInternal, "failed to delete grant", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.E(domain.KindNotFound, "access grant not found")
	}
	return nil
}
