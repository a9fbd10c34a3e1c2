// Package backends provides thin mock clients for the external storage
// and platform systems the cache's persistent tier and the node
// registry are wired to in a full deployment: Mayastor, SeaweedFS, and
// RustFS as object/block backends, Harvester and OpenStack as the
// platform layer reporting node inventory. None of these talk to a
// real endpoint; each is a minimal, independently-togglable stand-in
// satisfying storage.ExternalClient so the persistent tier's
// availability-gating logic has something concrete to gate on.
package backends

import "sync/atomic"

// client is the shared shape every mock backend implements.
type client struct {
	name      string
	available atomic.Bool
}

func newClient(name string) *client {
	c := &client{name: name}
	c.available.Store(true)
	return c
}

// Available implements storage.ExternalClient.
func (c *client) Available() bool { return c.available.Load() }

// Name implements storage.ExternalClient.
func (c *client) Name() string { return c.name }

// SetAvailable flips the mock's reported health, for exercising the
// persistent tier's degraded-mode handling in tests and demos.
func (c *client) SetAvailable(v bool) { c.available.Store(v) }

// MayastorClient stands in for a Mayastor NVMe-oF volume backend.
type MayastorClient struct{ *client }

// NewMayastorClient constructs a mock Mayastor client, available by default.
func NewMayastorClient() *MayastorClient { return &MayastorClient{newClient("mayastor")} }

// SeaweedFSClient stands in for a SeaweedFS object-store backend.
type SeaweedFSClient struct{ *client }

// NewSeaweedFSClient constructs a mock SeaweedFS client, available by default.
func NewSeaweedFSClient() *SeaweedFSClient { return &SeaweedFSClient{newClient("seaweedfs")} }

// RustFSClient stands in for a RustFS S3-compatible object-store backend.
type RustFSClient struct{ *client }

// NewRustFSClient constructs a mock RustFS client, available by default.
func NewRustFSClient() *RustFSClient { return &RustFSClient{newClient("rustfs")} }

// HarvesterClient stands in for the Harvester HCI platform's node/drive
// inventory API, the source of StorageNodeStatus reports on a
// Harvester-backed cluster.
type HarvesterClient struct{ *client }

// NewHarvesterClient constructs a mock Harvester client, available by default.
func NewHarvesterClient() *HarvesterClient { return &HarvesterClient{newClient("harvester")} }

// OpenStackClient stands in for an OpenStack Cinder/Swift deployment's
// inventory and capacity reporting API.
type OpenStackClient struct{ *client }

// NewOpenStackClient constructs a mock OpenStack client, available by default.
func NewOpenStackClient() *OpenStackClient { return &OpenStackClient{newClient("openstack")} }
