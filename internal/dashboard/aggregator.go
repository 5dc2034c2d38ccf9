package dashboard

import (
	"strings"

	"fleetportal/internal/domain"
)

// occupiedStatus marks a game-server instance with players in it. Agents
// have shipped both "Occupied" and "OCCUPIED" over time, so matching is
// case-insensitive.
const occupiedStatus = "Occupied"

// Snapshots is the slice of the status cache the aggregator reads.
type Snapshots interface {
	Get(hostID string) (*domain.StatusReport, bool)
}

// Summarize folds the caller's visible hosts and their latest status
// snapshots into fleet-wide totals. Offline hosts and hosts without a
// snapshot still count toward TotalHosts but contribute zero to every
// activity figure, so a dead host can never inflate the dashboard.
func Summarize(hosts []*domain.Host, cache Snapshots) *domain.DashboardSummary {
	summary := &domain.DashboardSummary{
		TotalHosts: len(hosts),
		Hosts:      make([]domain.HostSummary, 0, len(hosts)),
	}

	for _, h := range hosts {
		hs := domain.HostSummary{
			HostID:     h.HostID,
			Name:       h.Name,
			Region:     h.Region,
			Online:     h.Online,
			LastSeenAt: h.LastSeenAt,
		}

		report, ok := cache.Get(h.HostID)
		if h.Online && ok {
			summary.OnlineHosts++
			summary.TotalGameServers += report.TotalServers
			summary.ActiveGameServers += report.OnlineServers
			summary.TotalPlayers += report.TotalPlayers
			summary.ActiveMatches += countOccupied(report.Instances)

			hs.TotalServers = report.TotalServers
			hs.OnlineServers = report.OnlineServers
			hs.TotalPlayers = report.TotalPlayers
			if report.SystemStats != nil {
				hs.CPUPercent = report.SystemStats.CPUPercent
				hs.MemoryPercent = report.SystemStats.MemoryPercent
			}
		}

		summary.Hosts = append(summary.Hosts, hs)
	}

	return summary
}

func countOccupied(instances []domain.InstanceStatus) int {
	n := 0
	for _, inst := range instances {
		if strings.EqualFold(inst.Status, occupiedStatus) {
			n++
		}
	}
	return n
}
