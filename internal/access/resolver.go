package access

import (
	"context"

	"fleetportal/internal/domain"
)

// GrantLookup is the slice of the store the resolver needs.
type GrantLookup interface {
	GrantFor(ctx context.Context, hostRowID uint, u *domain.User) (*domain.AccessGrant, error)
}

// Resolver computes the effective role an identity holds on a host and gates
// actions on it. Effective roles are never stored; every check resolves
// fresh against ownership, the grant set and the super-admin flag.
type Resolver struct {
	grants GrantLookup
}

func NewResolver(grants GrantLookup) *Resolver {
	return &Resolver{grants: grants}
}

// EffectiveRole resolves the role u holds on h. Ownership wins over any
// conflicting grant row; a grant matches by external id even when it was
// created before the identity first logged in; super-admins resolve to
// Owner. ok is false when u has no access at all.
func (r *Resolver) EffectiveRole(ctx context.Context, u *domain.User, h *domain.Host) (domain.Role, bool, error) {
	if u.ID == h.OwnerID {
		return domain.RoleOwner, true, nil
	}

	grant, err := r.grants.GrantFor(ctx, h.ID, u)
	if err != nil {
		return domain.RoleViewer, false, err
	}
	if grant != nil {
		return grant.Role, true, nil
	}

	if u.IsSuperAdmin {
		return domain.RoleOwner, true, nil
	}

	return domain.RoleViewer, false, nil
}

// Require returns nil when u may perform an action needing required on h.
// A caller with no access at all gets NotFound so the host's existence does
// not leak; a visible but under-privileged caller gets NotAuthorized.
func (r *Resolver) Require(ctx context.Context, u *domain.User, h *domain.Host, required domain.Role) error {
	role, ok, err := r.EffectiveRole(ctx, u, h)
	if err != nil {
		return err
	}
	if !ok {
		return domain.E(domain.KindNotFound, "host not found")
	}
	if !role.AtLeast(required) {
		return domain.Ef(domain.KindNotAuthorized, "%s role required", required)
	}
	return nil
}
