package handlers

import (
	"encoding/json"
	"net/http"

	"fleetportal/internal/domain"
	"fleetportal/internal/logger"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps the domain error taxonomy onto HTTP statuses. Internal
// failures are logged with their cause but reach the client as an opaque 500.
func writeError(w http.ResponseWriter, loggerClient logger.Logger, err error) {
	kind := domain.KindOf(err)

	var status int
	switch kind {
	case domain.KindInvalid:
		status = http.StatusBadRequest
	case domain.KindUnauthenticated:
		status = http.StatusUnauthorized
	case domain.KindNotAuthorized:
		status = http.StatusForbidden
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindConflict:
		status = http.StatusConflict
	case domain.KindAgentUnreachable:
		status = http.StatusBadGateway
	case domain.KindAgentRejected:
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		loggerClient.Error("request failed", logger.Error(err))
		msg = "internal error"
	}

	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.WrapE(domain.KindInvalid, "invalid request body", err)
	}
	return nil
}
