package redis

const (
	// KeyPrefixSnapshot is the prefix for per-host snapshot keys
	KeyPrefixSnapshot = "fleetportal:snapshot:"
	// KeyAllHosts is the key for the set of host ids with a mirrored snapshot
	KeyAllHosts = "fleetportal:snapshots:all"
)

// SnapshotKey returns the Redis key for a host's mirrored snapshot
func SnapshotKey(hostID string) string {
	return KeyPrefixSnapshot + hostID
}
