package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fleetportal/internal/domain"
	"fleetportal/internal/logger"
)

const (
	discordAuthorizeURL = "https://discord.com/api/oauth2/authorize"
	discordTokenURL     = "https://discord.com/api/oauth2/token"
	discordUserURL      = "https://discord.com/api/users/@me"

	oauthScopes = "identify email"
)

// DiscordUser is the identity returned by Discord's /users/@me endpoint.
type DiscordUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Email    string `json:"email"`
}

// Discord exchanges OAuth authorization codes for user identities.
type Discord struct {
	clientID     string
	clientSecret string
	redirectURI  string
	client       *http.Client
	logger       logger.Logger
}

func NewDiscord(clientID, clientSecret, redirectURI string, log logger.Logger) *Discord {
	return &Discord{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		client:       &http.Client{Timeout: 15 * time.Second},
		logger:       log,
	}
}

// Configured reports whether OAuth credentials were provided at startup.
func (d *Discord) Configured() bool {
	return d.clientID != "" && d.clientSecret != ""
}

// LoginURL builds the authorization redirect carrying state for CSRF
// protection.
func (d *Discord) LoginURL(state string) string {
	q := url.Values{}
	q.Set("client_id", d.clientID)
	q.Set("redirect_uri", d.redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", oauthScopes)
	q.Set("state", state)
	return discordAuthorizeURL + "?" + q.Encode()
}

// Exchange trades an authorization code for an access token.
func (d *Discord) Exchange(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("client_id", d.clientID)
	form.Set("client_secret", d.clientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", d.redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, discordTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", domain.WrapE(domain.KindInternal, "build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", domain.WrapE(domain.KindUnauthenticated, "discord token exchange", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		d.logger.Warn("discord rejected code exchange",
			logger.Int("status", resp.StatusCode),
			logger.String("body", string(body)),
		)
		return "", domain.Ef(domain.KindUnauthenticated, "discord rejected authorization code (status %d)", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", domain.WrapE(domain.KindInternal, "decode token response", err)
	}
	if payload.AccessToken == "" {
		return "", domain.E(domain.KindUnauthenticated, "discord returned an empty access token")
	}
	return payload.AccessToken, nil
}

// FetchUser resolves the identity behind an access token.
func (d *Discord) FetchUser(ctx context.Context, accessToken string) (*DiscordUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discordUserURL, nil)
	if err != nil {
		return nil, domain.WrapE(domain.KindInternal, "build user request", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", accessToken))

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, domain.WrapE(domain.KindUnauthenticated, "fetch discord user", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.Ef(domain.KindUnauthenticated, "discord user lookup failed (status %d)", resp.StatusCode)
	}

	var user DiscordUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, domain.WrapE(domain.KindInternal, "decode discord user", err)
	}
	if user.ID == "" {
		return nil, domain.E(domain.KindUnauthenticated, "discord user has no id")
	}
	return &user, nil
}
