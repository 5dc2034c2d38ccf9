package domain

import "time"

// User is an identity authenticated via the external provider.
// Created on first login, refreshed on every subsequent login.
type User struct {
	ID           uint      `json:"id"`
	ExternalID   string    `json:"external_id"` // provider user id, stable
	Username     string    `json:"username"`
	AvatarHash   string    `json:"-"`
	Email        string    `json:"email,omitempty"`
	IsSuperAdmin bool      `json:"is_super_admin"`
	CreatedAt    time.Time `json:"created_at"`
	LastLoginAt  time.Time `json:"last_login_at"`
}

// AccessGrant gives a non-owner identity a role on a host.
// ExternalID may reference an identity that has never logged in; UserID is
// filled in once the identity links by external id.
type AccessGrant struct {
	ID          uint      `json:"id"`
	HostID      uint      `json:"-"` // internal host row id
	ExternalID  string    `json:"external_id"`
	UserID      *uint     `json:"user_id,omitempty"`
	Role        Role      `json:"role"`
	GrantedByID uint      `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}
