package cache

import "time"

// Entry is the envelope stored in a tier backend: a key, a shared Data
// buffer, the tier currently holding this copy, and access bookkeeping.
//
// A logical key may transiently exist in more than one tier during a
// demotion or promotion; Tier distinguishes which copy this Entry is.
type Entry struct {
	Key           Key
	Data          *Data
	Tier          Tier
	CreatedAt     time.Time
	LastAccessed  time.Time
	AccessCount   uint64
	TTL           *time.Duration
	ContentType   string
	ETag          string
}

// NewEntry builds a fresh entry with AccessCount=1, satisfying invariant
// (iii): access_count >= 1 after creation.
func NewEntry(key Key, data *Data, tier Tier) *Entry {
	now := time.Now()
	return &Entry{
		Key:          key,
		Data:         data,
		Tier:         tier,
		CreatedAt:    now,
		LastAccessed: now,
		AccessCount:  1,
	}
}

// Expired reports whether the entry's TTL (if any) has elapsed.
func (e *Entry) Expired(now time.Time) bool {
	if e.TTL == nil {
		return false
	}
	return now.Sub(e.CreatedAt) > *e.TTL
}

// Metadata projects an Entry down to the fields the LRU tracker needs for
// eviction decisions, avoiding the cost of cloning entry data.
type Metadata struct {
	Key            Key
	SizeBytes      int64
	Tier           Tier
	LastAccessedMs int64
	AccessCount    uint64
}

// MetadataOf projects an Entry into its Metadata.
func MetadataOf(e *Entry) Metadata {
	return Metadata{
		Key:            e.Key,
		SizeBytes:      e.Data.StoredSize(),
		Tier:           e.Tier,
		LastAccessedMs: e.LastAccessed.UnixMilli(),
		AccessCount:    e.AccessCount,
	}
}
