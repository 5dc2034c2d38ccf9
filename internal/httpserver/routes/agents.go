package routes

import (
	"github.com/go-chi/chi/v5"

	"fleetportal/internal/httpserver/deps"
	"fleetportal/internal/httpserver/handlers"
)

func init() { Register(registerAgents) }

// Agent-facing routes authenticate with X-Api-Key, not sessions.
func registerAgents(r chi.Router, d deps.Deps) {
	r.Post("/api/status", handlers.IngestStatus(d))
	r.Post("/api/hosts/register", handlers.AutoRegister(d))
}
