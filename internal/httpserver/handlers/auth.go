package handlers

import (
	"net/http"
	"time"

	"fleetportal/internal/auth"
	"fleetportal/internal/domain"
	"fleetportal/internal/httpserver/deps"
	"fleetportal/internal/httpserver/mw"
	"fleetportal/internal/logger"
)

const stateCookie = "oauth_state"

// Login redirects the browser to Discord's consent screen with a fresh
// CSRF state.
func Login(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.OAuth == nil || !d.OAuth.Configured() {
			writeError(w, d.Logger, domain.E(domain.KindInternal, "login is not configured"))
			return
		}

		state, err := auth.NewToken()
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     stateCookie,
			Value:    state,
			Path:     "/",
			MaxAge:   300,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, d.OAuth.LoginURL(state), http.StatusFound)
	}
}

// Callback finishes the OAuth dance: code for token, token for identity,
// identity for a session.
func Callback(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		state := r.URL.Query().Get("state")
		cookie, err := r.Cookie(stateCookie)
		if err != nil || state == "" || cookie.Value != state {
			writeError(w, d.Logger, domain.E(domain.KindUnauthenticated, "oauth state mismatch"))
			return
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			writeError(w, d.Logger, domain.E(domain.KindUnauthenticated, "missing authorization code"))
			return
		}

		accessToken, err := d.OAuth.Exchange(ctx, code)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		identity, err := d.OAuth.FetchUser(ctx, accessToken)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		user, err := d.Store.UpsertUser(ctx, &domain.User{
			ExternalID: identity.ID,
			Username:   identity.Username,
			AvatarHash: identity.Avatar,
			Email:      identity.Email,
		})
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		session, err := auth.NewToken()
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		expires := d.Now().Add(auth.SessionTTL)
		if err := d.Store.SetSession(ctx, user.ID, session, expires); err != nil {
			writeError(w, d.Logger, err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     mw.SessionCookie,
			Value:    session,
			Path:     "/",
			Expires:  expires,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		d.Logger.Info("user logged in",
			logger.String("external_id", user.ExternalID),
			logger.String("username", user.Username),
		)
		http.Redirect(w, r, "/", http.StatusFound)
	}
}

// Logout drops the server-side session and expires the cookie.
func Logout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.UserFrom(r.Context())
		if !ok {
			writeError(w, d.Logger, domain.E(domain.KindUnauthenticated, "not logged in"))
			return
		}
		if err := d.Store.ClearSession(r.Context(), user.ID); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     mw.SessionCookie,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			HttpOnly: true,
		})
		writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
	}
}

type meResponse struct {
	ExternalID   string `json:"external_id"`
	Username     string `json:"username"`
	AvatarHash   string `json:"avatar_hash,omitempty"`
	IsSuperAdmin bool   `json:"is_super_admin"`
}

// Me returns the authenticated identity.
func Me(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.UserFrom(r.Context())
		if !ok {
			writeError(w, d.Logger, domain.E(domain.KindUnauthenticated, "not logged in"))
			return
		}
		writeJSON(w, http.StatusOK, meResponse{
			ExternalID:   user.ExternalID,
			Username:     user.Username,
			AvatarHash:   user.AvatarHash,
			IsSuperAdmin: user.IsSuperAdmin,
		})
	}
}
