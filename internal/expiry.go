package internal

import "time"

// ComputeExpiry returns the epoch-second expiry for a link created at now
// with the given TTL in hours. A non-positive TTL means the link never
// expires and yields nil.
func ComputeExpiry(now time.Time, ttlHours int) *int64 {
	if ttlHours <= 0 {
		return nil
	}
	exp := now.Unix() + int64(ttlHours)*3600
	return &exp
}

// IsExpired reports whether a link with the given expiry is past it at now.
// The expiry instant itself is still valid; only strictly-later times
// expire the link. A nil expiry never expires.
func IsExpired(expiresAt *int64, now time.Time) bool {
	if expiresAt == nil {
		return false
	}
	return now.Unix() > *expiresAt
}
