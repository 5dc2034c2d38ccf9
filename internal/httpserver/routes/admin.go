package routes

import (
	"github.com/go-chi/chi/v5"

	"fleetportal/internal/httpserver/deps"
	"fleetportal/internal/httpserver/handlers"
	"fleetportal/internal/httpserver/mw"
)

func init() { Register(registerAdmin) }

func registerAdmin(r chi.Router, d deps.Deps) {
	auth := r.With(mw.RequireUser(d.Store, d.Logger))
	auth.Get("/api/admin/users", handlers.ListUsers(d))
	auth.Put("/api/admin/users/{userID}/super-admin", handlers.SetSuperAdmin(d))
}
