package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"fleetportal/internal/domain"
	"fleetportal/internal/httpserver/deps"
	"fleetportal/internal/httpserver/mw"
	"fleetportal/internal/logger"
)

func requireSuperAdmin(r *http.Request) (*domain.User, error) {
	user, ok := mw.UserFrom(r.Context())
	if !ok {
		return nil, domain.E(domain.KindUnauthenticated, "not logged in")
	}
	if !user.IsSuperAdmin {
		return nil, domain.E(domain.KindNotAuthorized, "super-admin required")
	}
	return user, nil
}

type userListingResponse struct {
	ID           uint      `json:"id"`
	ExternalID   string    `json:"external_id"`
	Username     string    `json:"username"`
	IsSuperAdmin bool      `json:"is_super_admin"`
	HostCount    int       `json:"host_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastLoginAt  time.Time `json:"last_login_at"`
}

// ListUsers returns every known identity with its host count.
func ListUsers(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := requireSuperAdmin(r); err != nil {
			writeError(w, d.Logger, err)
			return
		}

		listings, err := d.Store.ListUsers(r.Context())
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		out := make([]userListingResponse, 0, len(listings))
		for _, l := range listings {
			out = append(out, userListingResponse{
				ID:           l.User.ID,
				ExternalID:   l.User.ExternalID,
				Username:     l.User.Username,
				IsSuperAdmin: l.User.IsSuperAdmin,
				HostCount:    l.HostCount,
				CreatedAt:    l.User.CreatedAt,
				LastLoginAt:  l.User.LastLoginAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type setSuperAdminRequest struct {
	IsSuperAdmin bool `json:"is_super_admin"`
}

// SetSuperAdmin toggles the platform-wide flag on a user. Removing your own
// flag is refused so the platform cannot lock itself out.
func SetSuperAdmin(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := requireSuperAdmin(r)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		raw := chi.URLParam(r, "userID")
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			writeError(w, d.Logger, domain.Ef(domain.KindInvalid, "invalid user id %q", raw))
			return
		}

		var req setSuperAdminRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}

		if uint(id) == caller.ID && !req.IsSuperAdmin {
			writeError(w, d.Logger, domain.E(domain.KindConflict, "cannot remove your own super-admin flag"))
			return
		}

		if err := d.Store.SetSuperAdmin(r.Context(), uint(id), req.IsSuperAdmin); err != nil {
			writeError(w, d.Logger, err)
			return
		}

		d.Logger.Info("super-admin flag changed",
			logger.Int("user_id", int(id)),
			logger.Bool("is_super_admin", req.IsSuperAdmin),
			logger.String("by", caller.Username),
		)
		writeJSON(w, http.StatusOK, map[string]any{
			"user_id":        id,
			"is_super_admin": req.IsSuperAdmin,
		})
	}
}
