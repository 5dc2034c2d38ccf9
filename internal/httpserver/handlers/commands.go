package handlers

import (
	"encoding/json"
	"net/http"

	"fleetportal/internal/agent"
	"fleetportal/internal/domain"
	"fleetportal/internal/httpserver/deps"
	"fleetportal/internal/logger"
)

type commandRequest struct {
	Action     string          `json:"action"`
	InstanceID int             `json:"instance_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type commandResponse struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
}

// SendCommand authorizes an operator action and relays it to the host's
// agent. Authorization happens before any network traffic: an
// under-privileged caller never causes the agent to be contacted.
func SendCommand(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req commandRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}

		action := agent.Action(req.Action)
		required, known := agent.RequiredRole(action)
		if !known {
			writeError(w, d.Logger, domain.Ef(domain.KindInvalid, "unknown action %q", req.Action))
			return
		}

		host, user, err := requireVisibleHost(r, d, required)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		var payload any
		if len(req.Payload) > 0 {
			payload = req.Payload
		}
		result, err := d.Dispatcher.Send(r.Context(), host, agent.Command{
			Action:     action,
			InstanceID: req.InstanceID,
			Payload:    payload,
		})
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		if d.Hub != nil {
			d.Hub.BroadcastEvent("action", map[string]any{
				"host_id":     host.HostID,
				"action":      string(action),
				"instance_id": req.InstanceID,
				"by":          user.Username,
			})
		}

		d.Logger.Info("command relayed",
			logger.String("host_id", host.HostID),
			logger.String("action", string(action)),
			logger.String("by", user.Username),
		)
		writeJSON(w, http.StatusOK, commandResponse{Status: "ok", Result: result.Body})
	}
}
