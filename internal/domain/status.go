package domain

import "time"

// StatusReport is the most recent status payload pushed by a host's agent.
// It is cached wholesale per host id and replaced on every report, never
// merged field by field. Timestamp is server-assigned on ingestion.
type StatusReport struct {
	HostID        string           `json:"host_id"`
	HostName      string           `json:"host_name,omitempty"`
	Version       string           `json:"version,omitempty"`
	Status        string           `json:"status,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
	TotalServers  int              `json:"total_servers"`
	OnlineServers int              `json:"online_servers"`
	TotalPlayers  int              `json:"total_players"`
	Instances     []InstanceStatus `json:"instances,omitempty"`
	SystemStats   *SystemStats     `json:"system_stats,omitempty"`
}

// InstanceStatus is one game-server process managed by the agent.
type InstanceStatus struct {
	ID         int    `json:"id"`
	Name       string `json:"name,omitempty"`
	Port       int    `json:"port,omitempty"`
	Status     string `json:"status"` // occupancy state, ex: "Idle", "Occupied"
	NumClients int    `json:"num_clients"`
	MatchID    int64  `json:"match_id,omitempty"`
	GamePhase  string `json:"game_phase,omitempty"`
	Map        string `json:"map,omitempty"`
	GameMode   string `json:"game_mode,omitempty"`
}

// SystemStats are host-level resource metrics as reported by the agent.
type SystemStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	CPUCount      int     `json:"cpu_count,omitempty"`
	MemoryPercent float64 `json:"memory_percent"`
	TotalMemoryMB int64   `json:"total_memory_mb,omitempty"`
	UsedMemoryMB  int64   `json:"used_memory_mb,omitempty"`
	UptimeSeconds int64   `json:"uptime_seconds,omitempty"`
}

// DashboardSummary folds the caller's visible host set into fleet counters.
type DashboardSummary struct {
	TotalHosts        int           `json:"total_hosts"`
	OnlineHosts       int           `json:"online_hosts"`
	TotalGameServers  int           `json:"total_game_servers"`
	ActiveGameServers int           `json:"active_game_servers"`
	TotalPlayers      int           `json:"total_players"`
	ActiveMatches     int           `json:"active_matches"`
	Hosts             []HostSummary `json:"hosts"`
}

// HostSummary is one dashboard row. Offline hosts and hosts without a cached
// snapshot carry zeroed metrics.
type HostSummary struct {
	HostID        string    `json:"host_id"`
	Name          string    `json:"name"`
	Region        string    `json:"region"`
	Online        bool      `json:"online"`
	LastSeenAt    time.Time `json:"last_seen_at"`
	TotalServers  int       `json:"total_servers"`
	OnlineServers int       `json:"online_servers"`
	TotalPlayers  int       `json:"total_players"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
}
