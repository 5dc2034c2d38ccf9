package handlers

import (
	"net/http"

	"fleetportal/internal/dashboard"
	"fleetportal/internal/domain"
	"fleetportal/internal/httpserver/deps"
	"fleetportal/internal/httpserver/mw"
)

// visibleHosts collects every host the caller may see: owned, shared, or the
// whole fleet for a super-admin.
func visibleHosts(r *http.Request, d deps.Deps, user *domain.User) ([]*domain.Host, error) {
	ctx := r.Context()

	if user.IsSuperAdmin {
		return d.Store.AllHosts(ctx)
	}

	owned, err := d.Store.HostsOwnedBy(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	shared, err := d.Store.HostsSharedWith(ctx, user)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(owned))
	hosts := make([]*domain.Host, 0, len(owned)+len(shared))
	for _, h := range owned {
		seen[h.HostID] = true
		hosts = append(hosts, h)
	}
	for _, sh := range shared {
		if !seen[sh.Host.HostID] {
			hosts = append(hosts, sh.Host)
		}
	}
	return hosts, nil
}

// Dashboard returns fleet-wide totals over the caller's visible hosts.
func Dashboard(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.UserFrom(r.Context())
		if !ok {
			writeError(w, d.Logger, domain.E(domain.KindUnauthenticated, "not logged in"))
			return
		}

		hosts, err := visibleHosts(r, d, user)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		writeJSON(w, http.StatusOK, dashboard.Summarize(hosts, d.Cache))
	}
}
