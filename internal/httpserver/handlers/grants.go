package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"fleetportal/internal/domain"
	"fleetportal/internal/httpserver/deps"
	"fleetportal/internal/logger"
)

type grantResponse struct {
	ID         uint      `json:"id"`
	ExternalID string    `json:"external_id"`
	Username   string    `json:"username,omitempty"`
	Role       string    `json:"role"`
	Pending    bool      `json:"pending"`
	CreatedAt  time.Time `json:"created_at"`
}

func grantView(r *http.Request, d deps.Deps, g *domain.AccessGrant) grantResponse {
	resp := grantResponse{
		ID:         g.ID,
		ExternalID: g.ExternalID,
		Role:       g.Role.String(),
		Pending:    g.UserID == nil,
		CreatedAt:  g.CreatedAt,
	}
	if g.UserID != nil {
		if u, err := d.Store.UserByID(r.Context(), *g.UserID); err == nil {
			resp.Username = u.Username
		}
	}
	return resp
}

// ListGrants shows who holds access on a host. Owner only.
func ListGrants(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host, _, err := requireVisibleHost(r, d, domain.RoleOwner)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		grants, err := d.Store.GrantsForHost(r.Context(), host.ID)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		out := make([]grantResponse, 0, len(grants))
		for _, g := range grants {
			out = append(out, grantView(r, d, g))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type createGrantRequest struct {
	ExternalID string `json:"external_id"`
	Role       string `json:"role"`
}

// CreateGrant shares a host with another identity. The grantee does not
// need to have logged in yet; a pending grant links up on first login.
func CreateGrant(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host, user, err := requireVisibleHost(r, d, domain.RoleOwner)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		var req createGrantRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}

		externalID := strings.TrimSpace(req.ExternalID)
		if externalID == "" {
			writeError(w, d.Logger, domain.E(domain.KindInvalid, "external_id is required"))
			return
		}
		role, err := domain.ParseRole(req.Role)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if role == domain.RoleOwner {
			writeError(w, d.Logger, domain.E(domain.KindInvalid, "ownership cannot be granted"))
			return
		}
		if externalID == user.ExternalID {
			writeError(w, d.Logger, domain.E(domain.KindConflict, "cannot grant access to yourself"))
			return
		}

		grant := &domain.AccessGrant{
			HostID:      host.ID,
			ExternalID:  externalID,
			Role:        role,
			GrantedByID: user.ID,
		}
		if grantee, err := d.Store.UserByExternalID(r.Context(), externalID); err == nil {
			if grantee.ID == host.OwnerID {
				writeError(w, d.Logger, domain.E(domain.KindConflict, "the owner already has full access"))
				return
			}
			grant.UserID = &grantee.ID
		} else if domain.KindOf(err) != domain.KindNotFound {
			writeError(w, d.Logger, err)
			return
		}

		created, err := d.Store.CreateGrant(r.Context(), grant)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		d.Logger.Info("access granted",
			logger.String("host_id", host.HostID),
			logger.String("external_id", externalID),
			logger.String("role", role.String()),
			logger.String("by", user.Username),
		)
		writeJSON(w, http.StatusCreated, grantView(r, d, created))
	}
}

func grantIDParam(r *http.Request) (uint, error) {
	raw := chi.URLParam(r, "grantID")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, domain.Ef(domain.KindInvalid, "invalid grant id %q", raw)
	}
	return uint(id), nil
}

type updateGrantRequest struct {
	Role string `json:"role"`
}

// UpdateGrant changes a grant's role. Owner only.
func UpdateGrant(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host, _, err := requireVisibleHost(r, d, domain.RoleOwner)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		grantID, err := grantIDParam(r)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		var req updateGrantRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		role, err := domain.ParseRole(req.Role)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if role == domain.RoleOwner {
			writeError(w, d.Logger, domain.E(domain.KindInvalid, "ownership cannot be granted"))
			return
		}

		if err := d.Store.UpdateGrantRole(r.Context(), host.ID, grantID, role); err != nil {
			writeError(w, d.Logger, err)
			return
		}

		grant, err := d.Store.GrantByID(r.Context(), host.ID, grantID)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, grantView(r, d, grant))
	}
}

// DeleteGrant revokes access. Owner only.
func DeleteGrant(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host, user, err := requireVisibleHost(r, d, domain.RoleOwner)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		grantID, err := grantIDParam(r)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		if err := d.Store.DeleteGrant(r.Context(), host.ID, grantID); err != nil {
			writeError(w, d.Logger, err)
			return
		}

		d.Logger.Info("access revoked",
			logger.String("host_id", host.HostID),
			logger.String("by", user.Username),
		)
		writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
	}
}
