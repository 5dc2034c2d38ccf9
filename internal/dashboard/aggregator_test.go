package dashboard

import (
	"testing"
	"time"

	"fleetportal/internal/domain"
)

type fakeCache map[string]*domain.StatusReport

func (f fakeCache) Get(hostID string) (*domain.StatusReport, bool) {
	r, ok := f[hostID]
	return r, ok
}

func TestSummarizeTotals(t *testing.T) {
	hosts := []*domain.Host{
		{HostID: "A", Name: "alpha", Online: true},
		{HostID: "B", Name: "beta", Online: true},
		{HostID: "C", Name: "gamma", Online: false},
	}
	cache := fakeCache{
		"A": {
			TotalServers:  10,
			OnlineServers: 6,
			TotalPlayers:  40,
			Instances: []domain.InstanceStatus{
				{ID: 1, Status: "Occupied"},
				{ID: 2, Status: "OCCUPIED"},
				{ID: 3, Status: "Idle"},
			},
			SystemStats: &domain.SystemStats{CPUPercent: 55.5, MemoryPercent: 70},
		},
		"B": {
			TotalServers:  4,
			OnlineServers: 4,
			TotalPlayers:  12,
			Instances:     []domain.InstanceStatus{{ID: 1, Status: "Sleeping"}},
		},
		// stale snapshot for an offline host must not count
		"C": {TotalServers: 99, OnlineServers: 99, TotalPlayers: 99},
	}

	s := Summarize(hosts, cache)

	if s.TotalHosts != 3 {
		t.Fatalf("TotalHosts = %d, want 3", s.TotalHosts)
	}
	if s.OnlineHosts != 2 {
		t.Fatalf("OnlineHosts = %d, want 2", s.OnlineHosts)
	}
	if s.TotalGameServers != 14 {
		t.Fatalf("TotalGameServers = %d, want 14", s.TotalGameServers)
	}
	if s.ActiveGameServers != 10 {
		t.Fatalf("ActiveGameServers = %d, want 10", s.ActiveGameServers)
	}
	if s.TotalPlayers != 52 {
		t.Fatalf("TotalPlayers = %d, want 52", s.TotalPlayers)
	}
	if s.ActiveMatches != 2 {
		t.Fatalf("ActiveMatches = %d, want 2", s.ActiveMatches)
	}
}

func TestSummarizeOfflineHostContributesZero(t *testing.T) {
	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	hosts := []*domain.Host{{HostID: "DEAD", Name: "dead", Online: false, LastSeenAt: seen}}
	cache := fakeCache{"DEAD": {TotalServers: 5, TotalPlayers: 20}}

	s := Summarize(hosts, cache)

	if s.TotalHosts != 1 || s.OnlineHosts != 0 {
		t.Fatalf("hosts = %d/%d online, want 1/0", s.TotalHosts, s.OnlineHosts)
	}
	if s.TotalGameServers != 0 || s.TotalPlayers != 0 {
		t.Fatalf("offline host leaked totals: %d servers, %d players", s.TotalGameServers, s.TotalPlayers)
	}
	if len(s.Hosts) != 1 {
		t.Fatalf("len(Hosts) = %d, want 1", len(s.Hosts))
	}
	hs := s.Hosts[0]
	if hs.Online || hs.TotalServers != 0 || !hs.LastSeenAt.Equal(seen) {
		t.Fatalf("unexpected host summary: %+v", hs)
	}
}

func TestSummarizeOnlineHostWithoutSnapshot(t *testing.T) {
	hosts := []*domain.Host{{HostID: "NEW", Online: true}}

	s := Summarize(hosts, fakeCache{})

	if s.OnlineHosts != 0 {
		t.Fatalf("OnlineHosts = %d, want 0 without a snapshot", s.OnlineHosts)
	}
	if s.TotalHosts != 1 {
		t.Fatalf("TotalHosts = %d, want 1", s.TotalHosts)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, fakeCache{})
	if s.TotalHosts != 0 || len(s.Hosts) != 0 {
		t.Fatalf("unexpected summary for empty fleet: %+v", s)
	}
}
