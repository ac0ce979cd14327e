package audit

import (
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

// Entry is one auth-failure diagnostic. It must stay secret-free: reason
// codes and identifiers only, never tokens or cookie values.
type Entry struct {
	ID          int64     `json:"id"`
	Time        time.Time `json:"time"`
	Method      string    `json:"method"`
	Path        string    `json:"path"`
	HostType    string    `json:"host_type"`
	TokenSource string    `json:"token_source"`
	Reason      string    `json:"reason"`
	TenantID    string    `json:"tenant_id,omitempty"`
	ActingEmail string    `json:"acting_email,omitempty"`
}

// Ring is a fixed-capacity buffer of the most recent auth diagnostics.
// Concurrent producers are expected; overflow drops the oldest entry.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
	node    *snowflake.Node
	logger  *zap.Logger
}

// NewRing allocates a ring with the given capacity (minimum 1).
func NewRing(capacity int, node *snowflake.Node, logger *zap.Logger) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Ring{entries: make([]Entry, capacity), node: node, logger: logger}
}

// Record stamps and stores the entry, and mirrors it to the debug log.
func (r *Ring) Record(e Entry) {
	e.Time = time.Now().UTC()
	if r.node != nil {
		e.ID = r.node.Generate().Int64()
	}

	r.mu.Lock()
	r.entries[r.next] = e
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
		r.full = true
	}
	r.mu.Unlock()

	r.logger.Debug("auth denial",
		zap.String("method", e.Method),
		zap.String("path", e.Path),
		zap.String("host_type", e.HostType),
		zap.String("token_source", e.TokenSource),
		zap.String("reason", e.Reason),
		zap.String("tenant_id", e.TenantID),
	)
}

// Snapshot returns the stored entries oldest-first.
func (r *Ring) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]Entry, r.next)
		copy(out, r.entries[:r.next])
		return out
	}
	out := make([]Entry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	out = append(out, r.entries[:r.next]...)
	return out
}
