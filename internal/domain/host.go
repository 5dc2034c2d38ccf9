package domain

import "time"

// Host is a registered remote agent endpoint.
// HostID is the opaque public identifier used as the cache key and in every
// command path; ID is the internal row id grants reference.
type Host struct {
	ID         uint      `json:"-"`
	HostID     string    `json:"host_id"`
	OwnerID    uint      `json:"-"`
	Name       string    `json:"name"`
	Address    string    `json:"address"`
	Port       int       `json:"port"`
	Region     string    `json:"region"`
	Version    string    `json:"version"`
	AgentKey   string    `json:"-"` // rotatable shared secret for status pushes
	Online     bool      `json:"online"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
}
