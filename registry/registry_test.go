package registry

import (
	"fmt"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/objectfs/storagecache/internal/crd"
)

func sampleStatus(online bool, driveIDs ...string) crd.StorageNodeStatus {
	drives := make([]crd.DriveStatus, len(driveIDs))
	for i, id := range driveIDs {
		drives[i] = crd.DriveStatus{ID: id, DevicePath: "/dev/" + id, CapacityBytes: 1 << 30, Healthy: true}
	}
	return crd.StorageNodeStatus{
		Online:             online,
		TotalCapacityBytes: int64(len(driveIDs)) << 30,
		AvailableBytes:     int64(len(driveIDs)) << 29,
		Drives:             drives,
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := New(16)
	if err := r.Register("node-1", "host", sampleStatus(true, "sda", "sdb")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("node-1", "host", sampleStatus(true, "sda")); err != ErrNodeExists {
		t.Fatalf("expected ErrNodeExists, got %v", err)
	}

	entry, err := r.Get("node-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(entry.DriveMetrics) != 2 {
		t.Fatalf("expected 2 drive metrics blocks, got %d", len(entry.DriveMetrics))
	}
	if _, ok := entry.DriveMetrics["sda"]; !ok {
		t.Fatalf("missing sda metrics block")
	}
}

func TestGetNotFound(t *testing.T) {
	r := New(16)
	if _, err := r.Get("missing"); err != ErrNodeNotFound {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestDeregister(t *testing.T) {
	r := New(16)
	_ = r.Register("node-1", "host", sampleStatus(true, "sda"))
	if err := r.Deregister("node-1"); err != nil {
		t.Fatalf("Deregister: %v", err)
	}
	if err := r.Deregister("node-1"); err != ErrNodeNotFound {
		t.Fatalf("expected ErrNodeNotFound on second deregister, got %v", err)
	}
}

func TestUpdateStatusReconcilesDriveMetrics(t *testing.T) {
	r := New(16)
	_ = r.Register("node-1", "host", sampleStatus(true, "sda", "sdb"))

	sub, unsub := r.Events()
	defer unsub()

	if err := r.UpdateStatus("node-1", sampleStatus(true, "sda", "sdc")); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	entry, err := r.Get("node-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok := entry.DriveMetrics["sdb"]; ok {
		t.Fatalf("sdb should have been removed")
	}
	if _, ok := entry.DriveMetrics["sdc"]; !ok {
		t.Fatalf("sdc should have been added")
	}
	if len(entry.DriveMetrics) != 2 {
		t.Fatalf("expected exactly 2 drive metrics blocks, got %d", len(entry.DriveMetrics))
	}

	var sawAdded, sawRemoved bool
	for i := 0; i < 10; i++ {
		select {
		case ev := <-sub:
			if ev.Kind == DriveAdded && ev.DriveID == "sdc" {
				sawAdded = true
			}
			if ev.Kind == DriveRemoved && ev.DriveID == "sdb" {
				sawRemoved = true
			}
		default:
		}
	}
	if !sawAdded || !sawRemoved {
		t.Fatalf("expected DriveAdded(sdc) and DriveRemoved(sdb) events, got added=%v removed=%v", sawAdded, sawRemoved)
	}
}

func TestUpdateStatusOnlineTransitions(t *testing.T) {
	r := New(16)
	_ = r.Register("node-1", "host", sampleStatus(false, "sda"))

	sub, unsub := r.Events()
	defer unsub()

	if err := r.UpdateStatus("node-1", sampleStatus(true, "sda")); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	var sawOnline bool
	for i := 0; i < 10; i++ {
		select {
		case ev := <-sub:
			if ev.Kind == NodeCameOnline {
				sawOnline = true
			}
		default:
		}
	}
	if !sawOnline {
		t.Fatalf("expected NodeCameOnline event")
	}

	if err := r.UpdateStatus("node-1", sampleStatus(false, "sda")); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	var sawOffline bool
	for i := 0; i < 10; i++ {
		select {
		case ev := <-sub:
			if ev.Kind == NodeWentOffline {
				sawOffline = true
			}
		default:
		}
	}
	if !sawOffline {
		t.Fatalf("expected NodeWentOffline event")
	}
}

func TestHeartbeatAndMarkStaleOffline(t *testing.T) {
	r := New(16)
	_ = r.Register("node-1", "host", sampleStatus(true, "sda"))

	entry, _ := r.Get("node-1")
	staleHeartbeat := entry.LastHeartbeat

	marked := r.MarkStaleOffline(time.Hour)
	if len(marked) != 0 {
		t.Fatalf("fresh node should not be marked stale, got %v", marked)
	}

	if err := r.Heartbeat("node-1"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	entry, _ = r.Get("node-1")
	if !entry.LastHeartbeat.After(staleHeartbeat) && entry.LastHeartbeat != staleHeartbeat {
		t.Fatalf("heartbeat did not advance LastHeartbeat")
	}

	marked = r.MarkStaleOffline(-time.Second)
	if len(marked) != 1 || marked[0] != "node-1" {
		t.Fatalf("expected node-1 marked stale offline, got %v", marked)
	}
	entry, _ = r.Get("node-1")
	if entry.Status.Online {
		t.Fatalf("expected node-1 to be offline after MarkStaleOffline")
	}

	sub, unsub := r.Events()
	defer unsub()

	if err := r.Heartbeat("node-1"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	entry, _ = r.Get("node-1")
	if !entry.Status.Online {
		t.Fatalf("expected node-1 to be revived online by a fresh heartbeat")
	}
	var sawOnline bool
	for i := 0; i < 10; i++ {
		select {
		case ev := <-sub:
			if ev.Kind == NodeCameOnline {
				sawOnline = true
			}
		default:
		}
	}
	if !sawOnline {
		t.Fatalf("expected NodeCameOnline event on heartbeat revival")
	}
}

func TestUpdateDriveMetricsAndAlerts(t *testing.T) {
	r := New(16)
	_ = r.Register("node-1", "host", sampleStatus(true, "sda"))

	if err := r.UpdateDriveMetrics("node-1", "missing", 100, 1<<20, 500, 100, 300, 10); err != ErrDriveNotFound {
		t.Fatalf("expected ErrDriveNotFound, got %v", err)
	}

	sub, unsub := r.Events()
	defer unsub()

	if err := r.UpdateDriveMetrics("node-1", "sda", 5, 1<<20, 60_000, 980, 750, 950); err != nil {
		t.Fatalf("UpdateDriveMetrics: %v", err)
	}

	snap, err := r.GetDriveMetrics("node-1", "sda")
	if err != nil {
		t.Fatalf("GetDriveMetrics: %v", err)
	}
	if snap.IOPS != 5 || snap.TemperatureDecidegrees != 750 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	alerts := map[MetricsAlertType]bool{}
	for i := 0; i < 20; i++ {
		select {
		case ev := <-sub:
			if ev.Kind == DriveMetricsAlert {
				alerts[ev.Alert] = true
			}
		default:
		}
	}
	for _, want := range []MetricsAlertType{HighTemperature, HighWearLevel, HighLatency, HighUtilization, LowIops} {
		if !alerts[want] {
			t.Fatalf("expected alert %v to have fired, got %v", want, alerts)
		}
	}
}

func TestOnlineNodeIDsAndStats(t *testing.T) {
	r := New(16)
	_ = r.Register("node-1", "host", sampleStatus(true, "sda", "sdb"))
	_ = r.Register("node-2", "host", sampleStatus(false, "sdc"))

	online := r.OnlineNodeIDs()
	if len(online) != 1 || online[0] != "node-1" {
		t.Fatalf("expected only node-1 online, got %v", online)
	}

	all := r.AllNodeIDs()
	if len(all) != 2 {
		t.Fatalf("expected 2 total nodes, got %d", len(all))
	}

	stats := r.Stats()
	if stats.TotalNodes != 2 || stats.OnlineNodes != 1 || stats.TotalDrives != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Registrations != 2 {
		t.Fatalf("expected 2 registrations, got %d", stats.Registrations)
	}
}

// TestConcurrentShardAccess hammers the registry from many goroutines
// across register/heartbeat/metrics/status-update to flush out
// shard-locking races under -race.
func TestConcurrentShardAccess(t *testing.T) {
	r := New(64)
	const nodes = 200

	var g errgroup.Group
	for i := 0; i < nodes; i++ {
		id := NodeID(fmt.Sprintf("node-%d", i))
		g.Go(func() error {
			return r.Register(id, "host", sampleStatus(true, "sda"))
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("registration phase: %v", err)
	}

	for i := 0; i < nodes; i++ {
		id := NodeID(fmt.Sprintf("node-%d", i))
		g.Go(func() error {
			if err := r.Heartbeat(id); err != nil {
				return err
			}
			if err := r.UpdateDriveMetrics(id, "sda", 100, 1<<20, 200, 50, 300, 10); err != nil {
				return err
			}
			return r.UpdateStatus(id, sampleStatus(true, "sda", "sdb"))
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("update phase: %v", err)
	}

	stats := r.Stats()
	if stats.TotalNodes != nodes {
		t.Fatalf("expected %d nodes, got %d", nodes, stats.TotalNodes)
	}
	if stats.TotalDrives != nodes*2 {
		t.Fatalf("expected %d drives, got %d", nodes*2, stats.TotalDrives)
	}
}

func TestShardStatsCoversAllShards(t *testing.T) {
	r := New(16)
	_ = r.Register("node-1", "host", sampleStatus(true, "sda"))

	snaps := r.ShardStats()
	if len(snaps) != registryShardCount {
		t.Fatalf("expected %d shard snapshots, got %d", registryShardCount, len(snaps))
	}
	var total int64
	for _, s := range snaps {
		total += s.NodeCount
	}
	if total != 1 {
		t.Fatalf("expected 1 node across all shards, got %d", total)
	}
}
