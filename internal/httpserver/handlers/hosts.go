package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fleetportal/internal/auth"
	"fleetportal/internal/domain"
	"fleetportal/internal/httpserver/deps"
	"fleetportal/internal/httpserver/mw"
	"fleetportal/internal/logger"
)

const hostIDLength = 12

// newHostID derives an opaque upper-hex fleet identifier.
func newHostID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:hostIDLength])
}

type hostResponse struct {
	*domain.Host
	Role string `json:"role"`
}

type hostCreatedResponse struct {
	*domain.Host
	Role     string `json:"role"`
	AgentKey string `json:"agent_key"`
}

// requireVisibleHost loads the host by its public id and checks the caller
// holds at least required on it. Invisible hosts surface as NotFound.
func requireVisibleHost(r *http.Request, d deps.Deps, required domain.Role) (*domain.Host, *domain.User, error) {
	user, ok := mw.UserFrom(r.Context())
	if !ok {
		return nil, nil, domain.E(domain.KindUnauthenticated, "not logged in")
	}

	host, err := d.Store.HostByHostID(r.Context(), chi.URLParam(r, "hostID"))
	if err != nil {
		return nil, nil, err
	}
	if err := d.Resolver.Require(r.Context(), user, host, required); err != nil {
		return nil, nil, err
	}
	return host, user, nil
}

// ListHosts returns every host the caller can see, annotated with their
// effective role on it.
func ListHosts(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		user, ok := mw.UserFrom(ctx)
		if !ok {
			writeError(w, d.Logger, domain.E(domain.KindUnauthenticated, "not logged in"))
			return
		}

		out := make([]hostResponse, 0, 8)

		if user.IsSuperAdmin {
			hosts, err := d.Store.AllHosts(ctx)
			if err != nil {
				writeError(w, d.Logger, err)
				return
			}
			for _, h := range hosts {
				role, _, err := d.Resolver.EffectiveRole(ctx, user, h)
				if err != nil {
					writeError(w, d.Logger, err)
					return
				}
				out = append(out, hostResponse{Host: h, Role: role.String()})
			}
			writeJSON(w, http.StatusOK, out)
			return
		}

		owned, err := d.Store.HostsOwnedBy(ctx, user.ID)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		seen := make(map[string]bool, len(owned))
		for _, h := range owned {
			seen[h.HostID] = true
			out = append(out, hostResponse{Host: h, Role: domain.RoleOwner.String()})
		}

		shared, err := d.Store.HostsSharedWith(ctx, user)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		for _, sh := range shared {
			if seen[sh.Host.HostID] {
				continue
			}
			out = append(out, hostResponse{Host: sh.Host, Role: sh.Role.String()})
		}

		writeJSON(w, http.StatusOK, out)
	}
}

type createHostRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Port    int    `json:"port"`
	Region  string `json:"region"`
}

func (req *createHostRequest) validate() error {
	if strings.TrimSpace(req.Name) == "" {
		return domain.E(domain.KindInvalid, "name is required")
	}
	if strings.TrimSpace(req.Address) == "" {
		return domain.E(domain.KindInvalid, "address is required")
	}
	if req.Port <= 0 || req.Port > 65535 {
		return domain.E(domain.KindInvalid, "port must be between 1 and 65535")
	}
	return nil
}

// CreateHost registers a host under the caller and mints its agent key.
// The key is returned exactly once.
func CreateHost(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.UserFrom(r.Context())
		if !ok {
			writeError(w, d.Logger, domain.E(domain.KindUnauthenticated, "not logged in"))
			return
		}

		var req createHostRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if err := req.validate(); err != nil {
			writeError(w, d.Logger, err)
			return
		}

		key, err := auth.NewToken()
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		host, err := d.Store.CreateHost(r.Context(), &domain.Host{
			HostID:   newHostID(),
			OwnerID:  user.ID,
			Name:     strings.TrimSpace(req.Name),
			Address:  strings.TrimSpace(req.Address),
			Port:     req.Port,
			Region:   strings.TrimSpace(req.Region),
			AgentKey: key,
		})
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		d.Logger.Info("host registered",
			logger.String("host_id", host.HostID),
			logger.String("name", host.Name),
			logger.String("owner", user.Username),
		)
		writeJSON(w, http.StatusCreated, hostCreatedResponse{
			Host:     host,
			Role:     domain.RoleOwner.String(),
			AgentKey: key,
		})
	}
}

type hostDetailsResponse struct {
	*domain.Host
	Role   string               `json:"role"`
	Status *domain.StatusReport `json:"status,omitempty"`
}

// HostDetails returns one host with the caller's role and its latest
// snapshot, when one exists.
func HostDetails(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host, user, err := requireVisibleHost(r, d, domain.RoleViewer)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		role, _, err := d.Resolver.EffectiveRole(r.Context(), user, host)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		resp := hostDetailsResponse{Host: host, Role: role.String()}
		if report, ok := d.Cache.Get(host.HostID); ok {
			resp.Status = report
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type updateHostRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Port    int    `json:"port"`
	Region  string `json:"region"`
}

// UpdateHost changes a host's registration fields. Admin and up.
func UpdateHost(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host, user, err := requireVisibleHost(r, d, domain.RoleAdmin)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		var req updateHostRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		cr := createHostRequest(req)
		if err := cr.validate(); err != nil {
			writeError(w, d.Logger, err)
			return
		}

		host.Name = strings.TrimSpace(req.Name)
		host.Address = strings.TrimSpace(req.Address)
		host.Port = req.Port
		host.Region = strings.TrimSpace(req.Region)
		if err := d.Store.UpdateHost(r.Context(), host); err != nil {
			writeError(w, d.Logger, err)
			return
		}

		role, _, err := d.Resolver.EffectiveRole(r.Context(), user, host)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, hostResponse{Host: host, Role: role.String()})
	}
}

// DeleteHost removes a host, its grants and its cached snapshot. Owner only.
func DeleteHost(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host, user, err := requireVisibleHost(r, d, domain.RoleOwner)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		if err := d.Store.DeleteHost(r.Context(), host.ID); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		d.Cache.Remove(host.HostID)

		d.Logger.Info("host deleted",
			logger.String("host_id", host.HostID),
			logger.String("by", user.Username),
		)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// RotateAgentKey mints a fresh agent key, invalidating the old one. Owner
// only; the new key is returned exactly once.
func RotateAgentKey(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host, user, err := requireVisibleHost(r, d, domain.RoleOwner)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		key, err := auth.NewToken()
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if err := d.Store.RotateAgentKey(r.Context(), host.ID, key); err != nil {
			writeError(w, d.Logger, err)
			return
		}

		d.Logger.Info("agent key rotated",
			logger.String("host_id", host.HostID),
			logger.String("by", user.Username),
		)
		writeJSON(w, http.StatusOK, map[string]string{"agent_key": key})
	}
}

type autoRegisterRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Port    int    `json:"port"`
	Region  string `json:"region"`
	Version string `json:"version"`
}

// AutoRegister lets an agent refresh its own registration details. The host
// is identified by its API key, not by a session.
func AutoRegister(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Api-Key")
		if key == "" {
			writeError(w, d.Logger, domain.E(domain.KindUnauthenticated, "missing api key"))
			return
		}

		host, err := d.Store.HostByAgentKey(r.Context(), key)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		var req autoRegisterRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}

		if v := strings.TrimSpace(req.Name); v != "" {
			host.Name = v
		}
		if v := strings.TrimSpace(req.Address); v != "" && v != host.Address {
			// A self-reported address change may not claim another host.
			other, err := d.Store.HostByAddress(r.Context(), v)
			switch {
			case err == nil && other.ID != host.ID:
				writeError(w, d.Logger, domain.E(domain.KindConflict, "address is registered to another host"))
				return
			case err != nil && domain.KindOf(err) != domain.KindNotFound:
				writeError(w, d.Logger, err)
				return
			}
			host.Address = v
		}
		if req.Port > 0 && req.Port <= 65535 {
			host.Port = req.Port
		}
		if v := strings.TrimSpace(req.Region); v != "" {
			host.Region = v
		}
		if err := d.Store.UpdateHost(r.Context(), host); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if v := strings.TrimSpace(req.Version); v != "" {
			if err := d.Store.TouchStatus(r.Context(), host.ID, v, host.Name, d.Now()); err != nil {
				writeError(w, d.Logger, err)
				return
			}
		}

		d.Logger.Info("agent self-registered",
			logger.String("host_id", host.HostID),
			logger.String("address", host.Address),
		)
		writeJSON(w, http.StatusOK, map[string]string{"host_id": host.HostID})
	}
}
