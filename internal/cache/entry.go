package cache

import (
	"time"
)

// Class selects the TTL applied to a cached value. TTLs are always
// class-specific and never zero.
type Class string

const (
	// ClassRaw is for unmerged provider responses.
	ClassRaw Class = "raw"
	// ClassMerged is for normalized canonical results.
	ClassMerged Class = "merged"
	// ClassGeo is for geographic query results.
	ClassGeo Class = "geo"
)

// TTLFor maps a class to its TTL. Raw and geo results go stale quickly;
// merged results are the product of a full fan-out and are kept longer.
func TTLFor(class Class) time.Duration {
	switch class {
	case ClassMerged:
		return time.Hour
	case ClassGeo:
		return 10 * time.Minute
	default:
		return 15 * time.Minute
	}
}

// Priority influences whether a Set also populates the memory tier.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// promoteThreshold is the access count past which a cold entry is promoted
// into the memory tier on read.
const promoteThreshold = 5

// smallObjectBytes is the serialized size below which a Set populates memory
// regardless of priority.
const smallObjectBytes = 10 << 10

// Entry wraps a cached value with the metadata the manager needs for TTL,
// tag invalidation, and promotion decisions. Entries cross the cold tier as
// JSON, so the fields are exported.
type Entry struct {
	Key         string        `json:"key"`
	Value       []byte        `json:"value"`
	CreatedAt   time.Time     `json:"created_at"`
	TTL         time.Duration `json:"ttl"`
	Tags        []string      `json:"tags,omitempty"`
	Source      string        `json:"source,omitempty"`
	Priority    Priority      `json:"priority,omitempty"`
	AccessCount int           `json:"access_count"`
	LastAccess  time.Time     `json:"last_access"`
}

// Expired reports whether the entry's TTL has elapsed.
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.CreatedAt.Add(e.TTL))
}

// Remaining returns the TTL left on the entry, clamped at zero.
func (e *Entry) Remaining(now time.Time) time.Duration {
	rem := e.CreatedAt.Add(e.TTL).Sub(now)
	if rem < 0 {
		return 0
	}
	return rem
}

// HasTag reports whether the entry carries the given invalidation tag.
func (e *Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// size approximates the memory footprint of the entry for budget accounting.
func (e *Entry) size() int64 {
	n := int64(len(e.Key) + len(e.Value) + len(e.Source))
	for _, t := range e.Tags {
		n += int64(len(t))
	}
	return n + 96 // struct overhead
}
