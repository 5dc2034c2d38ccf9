package auth

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"fleetportal/internal/domain"
)

// SessionTTL is how long a login stays valid without re-authenticating.
const SessionTTL = 7 * 24 * time.Hour

const tokenBytes = 32

// NewToken returns a url-safe random token suitable for session cookies
// and agent API keys. 32 bytes of entropy, base64 without padding.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", domain.WrapE(domain.KindInternal, "generate token", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
