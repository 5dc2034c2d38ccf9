package access

import (
	"context"
	"errors"
	"testing"

	"fleetportal/internal/domain"
)

type fakeGrants struct {
	grant *domain.AccessGrant
	err   error
}

func (f *fakeGrants) GrantFor(_ context.Context, _ uint, _ *domain.User) (*domain.AccessGrant, error) {
	return f.grant, f.err
}

func TestEffectiveRole(t *testing.T) {
	host := &domain.Host{ID: 10, OwnerID: 1, HostID: "HOST1"}

	tests := []struct {
		name     string
		user     *domain.User
		grant    *domain.AccessGrant
		wantRole domain.Role
		wantOK   bool
	}{
		{
			name:     "owner resolves to Owner",
			user:     &domain.User{ID: 1},
			wantRole: domain.RoleOwner,
			wantOK:   true,
		},
		{
			name:     "ownership wins over conflicting grant",
			user:     &domain.User{ID: 1},
			grant:    &domain.AccessGrant{HostID: 10, Role: domain.RoleViewer},
			wantRole: domain.RoleOwner,
			wantOK:   true,
		},
		{
			name:     "grant role is used as-is",
			user:     &domain.User{ID: 2},
			grant:    &domain.AccessGrant{HostID: 10, Role: domain.RoleOperator},
			wantRole: domain.RoleOperator,
			wantOK:   true,
		},
		{
			name:     "super-admin without grant resolves to Owner",
			user:     &domain.User{ID: 3, IsSuperAdmin: true},
			wantRole: domain.RoleOwner,
			wantOK:   true,
		},
		{
			name:   "stranger has no role",
			user:   &domain.User{ID: 4},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(&fakeGrants{grant: tt.grant})
			role, ok, err := r.EffectiveRole(context.Background(), tt.user, host)
			if err != nil {
				t.Fatalf("EffectiveRole: %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && role != tt.wantRole {
				t.Fatalf("role = %s, want %s", role, tt.wantRole)
			}
		})
	}
}

func TestRequire(t *testing.T) {
	host := &domain.Host{ID: 10, OwnerID: 1}

	t.Run("stranger gets NotFound, not NotAuthorized", func(t *testing.T) {
		r := NewResolver(&fakeGrants{})
		err := r.Require(context.Background(), &domain.User{ID: 9}, host, domain.RoleViewer)
		if got := domain.KindOf(err); got != domain.KindNotFound {
			t.Fatalf("kind = %s, want not_found", got)
		}
	})

	t.Run("visible but under-privileged gets NotAuthorized", func(t *testing.T) {
		r := NewResolver(&fakeGrants{grant: &domain.AccessGrant{Role: domain.RoleViewer}})
		err := r.Require(context.Background(), &domain.User{ID: 9}, host, domain.RoleOperator)
		if got := domain.KindOf(err); got != domain.KindNotAuthorized {
			t.Fatalf("kind = %s, want not_authorized", got)
		}
	})

	t.Run("exact role passes", func(t *testing.T) {
		r := NewResolver(&fakeGrants{grant: &domain.AccessGrant{Role: domain.RoleAdmin}})
		if err := r.Require(context.Background(), &domain.User{ID: 9}, host, domain.RoleAdmin); err != nil {
			t.Fatalf("Require: %v", err)
		}
	})

	t.Run("owner passes every threshold", func(t *testing.T) {
		r := NewResolver(&fakeGrants{})
		if err := r.Require(context.Background(), &domain.User{ID: 1}, host, domain.RoleOwner); err != nil {
			t.Fatalf("Require: %v", err)
		}
	})

	t.Run("store error propagates", func(t *testing.T) {
		boom := errors.New("db closed")
		r := NewResolver(&fakeGrants{err: boom})
		err := r.Require(context.Background(), &domain.User{ID: 9}, host, domain.RoleViewer)
		if !errors.Is(err, boom) {
			t.Fatalf("err = %v, want wrapped %v", err, boom)
		}
	})
}
