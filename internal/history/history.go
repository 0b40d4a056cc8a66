// Package history provides the bounded in-memory context caches kept by
// the daemon: recent application-focus queries, filesystem events and
// executed automation commands.
package history

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of records each ring retains.
const DefaultCapacity = 10

// Record is a stored payload with the time it was recorded.
type Record struct {
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Ring is a fixed-capacity FIFO buffer of records. When full, adding a
// record evicts the oldest one. Ring is safe for concurrent use.
type Ring struct {
	mu       sync.Mutex
	capacity int
	entries  []Record
}

// NewRing creates a ring holding at most capacity records. A capacity of
// zero or less falls back to DefaultCapacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{capacity: capacity}
}

// Add appends payload with the current time, evicting the oldest record
// if the ring is at capacity.
func (r *Ring) Add(payload any) {
	r.addAt(payload, time.Now())
}

func (r *Ring) addAt(payload any, ts time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) == r.capacity {
		copy(r.entries, r.entries[1:])
		r.entries = r.entries[:r.capacity-1]
	}
	r.entries = append(r.entries, Record{Payload: payload, Timestamp: ts})
}

// Snapshot returns a copy of the current records, oldest first.
func (r *Ring) Snapshot() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of records currently held.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Log bundles the three independent context rings.
type Log struct {
	AppFocus   *Ring
	FileEvents *Ring
	Commands   *Ring
}

// NewLog creates a Log with three rings of DefaultCapacity.
func NewLog() *Log {
	return &Log{
		AppFocus:   NewRing(DefaultCapacity),
		FileEvents: NewRing(DefaultCapacity),
		Commands:   NewRing(DefaultCapacity),
	}
}
