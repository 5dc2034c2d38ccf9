package routes

import (
	"github.com/go-chi/chi/v5"

	"fleetportal/internal/httpserver/deps"
	"fleetportal/internal/httpserver/handlers"
	"fleetportal/internal/httpserver/mw"
)

func init() { Register(registerAuth) }

func registerAuth(r chi.Router, d deps.Deps) {
	r.Get("/api/auth/login", handlers.Login(d))
	r.Get("/api/auth/callback", handlers.Callback(d))

	auth := r.With(mw.RequireUser(d.Store, d.Logger))
	auth.Post("/api/auth/logout", handlers.Logout(d))
	auth.Get("/api/auth/me", handlers.Me(d))
}
