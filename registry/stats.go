package registry

import "github.com/objectfs/storagecache/internal/util"

// globalStats holds whole-registry atomic counters that aren't
// naturally derivable from a single shard, either because they're
// cumulative (registrations, deregistrations) or because recomputing
// them by scanning every shard on every read would be wasteful for
// counters updated on every Register/Deregister call.
type globalStats struct {
	_               util.CacheLinePad
	registrations   util.PaddedAtomicUint64
	deregistrations util.PaddedAtomicUint64
}

// Stats is a point-in-time snapshot of the whole registry: cumulative
// lifecycle counters plus a live scan of per-node/drive/capacity totals.
type Stats struct {
	TotalNodes            int
	OnlineNodes           int
	TotalDrives           int
	TotalCapacityBytes    int64
	AvailableCapacityBytes int64
	Registrations         uint64
	Deregistrations       uint64
}
