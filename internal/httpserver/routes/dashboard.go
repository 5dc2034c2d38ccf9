package routes

import (
	"github.com/go-chi/chi/v5"

	"fleetportal/internal/httpserver/deps"
	"fleetportal/internal/httpserver/handlers"
	"fleetportal/internal/httpserver/mw"
)

func init() { Register(registerDashboard) }

func registerDashboard(r chi.Router, d deps.Deps) {
	auth := r.With(mw.RequireUser(d.Store, d.Logger))
	auth.Get("/api/dashboard", handlers.Dashboard(d))
	auth.Get("/api/ws", d.Hub.ServeWS)
}
