package handlers

import (
	"encoding/json"
	"net/http"

	"fleetportal/internal/domain"
	"fleetportal/internal/httpserver/deps"
	"fleetportal/internal/logger"
)

// IngestStatus accepts a status report from a host agent. The caller is
// identified by its API key alone; the resolved host id and server time are
// stamped over whatever the agent claims, so a compromised agent can only
// ever speak for itself.
func IngestStatus(d deps.Deps) http.HandlerFunc {
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

		var report domain.StatusReport
		if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
			writeError(w, d.Logger, domain.WrapE(domain.KindInvalid, "invalid status report", err))
			return
		}

		now := d.Now()
		report.HostID = host.HostID
		report.Timestamp = now
		if report.HostName == "" {
			report.HostName = host.Name
		}

		if err := d.Store.TouchStatus(r.Context(), host.ID, report.Version, report.HostName, now); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		d.Cache.Update(host.HostID, &report)

		d.Logger.Debug("status report ingested",
			logger.String("host_id", host.HostID),
			logger.Int("servers", report.TotalServers),
			logger.Int("players", report.TotalPlayers),
		)
		writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
	}
}
