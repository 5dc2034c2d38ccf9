package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"fleetportal/internal/domain"
)

func userToDomain(m *userModel) *domain.User {
	return &domain.User{
		ID:           m.ID,
		ExternalID:   m.ExternalID,
		Username:     m.Username,
		AvatarHash:   m.AvatarHash,
		Email:        m.Email,
		IsSuperAdmin: m.IsSuperAdmin,
		CreatedAt:    m.CreatedAt,
		LastLoginAt:  m.LastLoginAt,
	}
}

// UpsertUser creates the user on first login or refreshes the identity
// fields on every subsequent login. It also links any pending access grants
// addressed to the user's external id.
func (s *Store) UpsertUser(ctx context.Context, u *domain.User) (*domain.User, error) {
	var m userModel
	err := s.db.WithContext(ctx).First(&m, "external_id = ?", u.ExternalID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		m = userModel{
			ExternalID:  u.ExternalID,
			Username:    u.Username,
			AvatarHash:  u.AvatarHash,
			Email:       u.Email,
			CreatedAt:   time.Now().UTC(),
			LastLoginAt: time.Now().UTC(),
		}
		if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
			return nil, domain.WrapE(domain.KindInternal, "failed to create user", err)
		}
	case err != nil:
		return nil, domain.WrapE(domain.KindInternal, "failed to look up user", err)
	default:
		m.Username = u.Username
		m.AvatarHash = u.AvatarHash
		m.Email = u.Email
		m.LastLoginAt = time.Now().UTC()
		if err := s.db.WithContext(ctx).Save(&m).Error; err != nil {
			return nil, domain.WrapE(domain.KindInternal, "failed to refresh user", err)
		}
	}

	// Grants created before the identity ever logged in carry only the
	// external id; attach them now.
	if err := s.db.WithContext(ctx).Model(&grantModel{}).
		Where("external_id = ? AND user_id IS NULL", m.ExternalID).
		Update("user_id", m.ID).Error; err != nil {
		return nil, domain.WrapE(domain.KindInternal, "failed to link pending grants", err)
	}

	return userToDomain(&m), nil
}

// SetSession stores a fresh session token and its expiry on the user row.
func (s *Store) SetSession(ctx context.Context, userID uint, token string, expiresAt time.Time) error {
	err := s.db.WithContext(ctx).Model(&userModel{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"session_token":      token,
			"session_expires_at": expiresAt,
		}).Error
	if err != nil {
		return domain.WrapE(domain.KindInternal, "failed to store session", err)
	}
	return nil
}

// ClearSession invalidates the user's session token.
func (s *Store) ClearSession(ctx context.Context, userID uint) error {
	err := s.db.WithContext(ctx).Model(&userModel{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"session_token":      nil,
			"session_expires_at": nil,
		}).Error
	if err != nil {
		return domain.WrapE(domain.KindInternal, "failed to clear session", err)
	}
	return nil
}

// UserBySession resolves an unexpired session token to its user.
// An unknown or expired token yields Unauthenticated.
func (s *Store) UserBySession(ctx context.Context, token string, now time.Time) (*domain.User, error) {
	var m userModel
	err := s.db.WithContext(ctx).
		First(&m, "session_token = ? AND session_expires_at > ?", token, now).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.E(domain.KindUnauthenticated, "session invalid or expired")
	}
	if err != nil {
		return nil, domain.WrapE(domain.KindInternal, "failed to resolve session", err)
	}
	return userToDomain(&m), nil
}

// UserByID fetches a user by internal id.
func (s *Store) UserByID(ctx context.Context, id uint) (*domain.User, error) {
	var m userModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.E(domain.KindNotFound, "user not found")
	}
	if err != nil {
		return nil, domain.WrapE(domain.KindInternal, "failed to fetch user", err)
	}
	return userToDomain(&m), nil
}

// UserByExternalID fetches a user by the external provider id.
func (s *Store) UserByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	var m userModel
	err := s.db.WithContext(ctx).First(&m, "external_id = ?", externalID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.E(domain.KindNotFound, "user not found")
	}
	if err != nil {
		return nil, domain.WrapE(domain.KindInternal, "failed to fetch user", err)
	}
	return userToDomain(&m), nil
}

// UserListing is one row of the super-admin user overview.
type UserListing struct {
	User      domain.User
	HostCount int
}

// ListUsers returns every user, super-admins first, with owned-host counts.
func (s *Store) ListUsers(ctx context.Context) ([]UserListing, error) {
	var models []userModel
	err := s.db.WithContext(ctx).
		Order("is_super_admin DESC").Order("username ASC").
		Find(&models).Error
	if err != nil {
		return nil, domain.WrapE(domain.KindInternal, "failed to list users", err)
	}

	out := make([]UserListing, 0, len(models))
	for i := range models {
		var count int64
		if err := s.db.WithContext(ctx).Model(&hostModel{}).
			Where("owner_id = ?", models[i].ID).Count(&count).Error; err != nil {
			return nil, domain.WrapE(domain.KindInternal, "failed to count hosts", err)
		}
		out = append(out, UserListing{User: *userToDomain(&models[i]), HostCount: int(count)})
	}
	return out, nil
}

// SetSuperAdmin flips the super-admin flag for a user.
func (s *Store) SetSuperAdmin(ctx context.Context, userID uint, isSuperAdmin bool) error {
	res := s.db.WithContext(ctx).Model(&userModel{}).Where("id = ?", userID).
		Update("is_super_admin", isSuperAdmin)
	if res.Error != nil {
		return domain.WrapE(domain.KindInternal, "failed to update super-admin flag", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.E(domain.KindNotFound, "user not found")
	}
	return nil
}
