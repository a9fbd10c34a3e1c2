package cache

import "time"

func nowMillis() int64 { return time.Now().UnixMilli() }

func timeFromMillis(ms int64) time.Time { return time.UnixMilli(ms) }

func isExpired(createdAt time.Time, ttl time.Duration) bool {
	return time.Since(createdAt) > ttl
}
