package deps

import (
	"time"

	"fleetportal/internal/access"
	"fleetportal/internal/agent"
	"fleetportal/internal/auth"
	"fleetportal/internal/hub"
	"fleetportal/internal/logger"
	"fleetportal/internal/statuscache"
	"fleetportal/internal/store"
)

type Deps struct {
	Logger     logger.Logger
	StartTime  time.Time
	Version    string
	Commit     string
	BuildDate  string
	GoVersion  string
	TimeNow    func() time.Time // for testing, defaults to time.Now
	Store      *store.Store
	Cache      *statuscache.Cache
	Resolver   *access.Resolver
	Dispatcher *agent.Dispatcher
	Hub        *hub.Hub
	OAuth      *auth.Discord
}

// Now returns the injected clock, falling back to the real one.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
