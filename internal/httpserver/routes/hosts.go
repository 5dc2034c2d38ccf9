package routes

import (
	"github.com/go-chi/chi/v5"

	"fleetportal/internal/httpserver/deps"
	"fleetportal/internal/httpserver/handlers"
	"fleetportal/internal/httpserver/mw"
)

func init() { Register(registerHosts) }

func registerHosts(r chi.Router, d deps.Deps) {
	auth := r.With(mw.RequireUser(d.Store, d.Logger))

	auth.Get("/api/hosts", handlers.ListHosts(d))
	auth.Post("/api/hosts", handlers.CreateHost(d))

	auth.Get("/api/hosts/{hostID}", handlers.HostDetails(d))
	auth.Put("/api/hosts/{hostID}", handlers.UpdateHost(d))
	auth.Delete("/api/hosts/{hostID}", handlers.DeleteHost(d))
	auth.Post("/api/hosts/{hostID}/key", handlers.RotateAgentKey(d))
	auth.Post("/api/hosts/{hostID}/commands", handlers.SendCommand(d))

	auth.Get("/api/hosts/{hostID}/access", handlers.ListGrants(d))
	auth.Post("/api/hosts/{hostID}/access", handlers.CreateGrant(d))
	auth.Put("/api/hosts/{hostID}/access/{grantID}", handlers.UpdateGrant(d))
	auth.Delete("/api/hosts/{hostID}/access/{grantID}", handlers.DeleteGrant(d))
}
