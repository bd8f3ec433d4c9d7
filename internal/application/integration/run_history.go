package integration

import (
	"sync"

	"github.com/google/uuid"
)

// RunHistory keeps the most recent run summaries in memory.
type RunHistory struct {
	mu       sync.Mutex
	capacity int
	entries  []RunSummary
	next     int
	full     bool
}

// NewRunHistory creates a history holding at most capacity summaries
func NewRunHistory(capacity int) *RunHistory {
	if capacity <= 0 {
		capacity = 50
	}
	return &RunHistory{
		capacity: capacity,
		entries:  make([]RunSummary, capacity),
	}
}

// Add records a summary, evicting the oldest when full
func (h *RunHistory) Add(summary RunSummary) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.next] = summary
	h.next = (h.next + 1) % h.capacity
	if h.next == 0 {
		h.full = true
	}
}

// Recent returns up to limit summaries, newest first. A nil tenantID
// returns summaries of every tenant.
func (h *RunHistory) Recent(tenantID uuid.UUID, limit int) []RunSummary {
	h.mu.Lock()
	defer h.mu.Unlock()

	size := h.next
	if h.full {
		size = h.capacity
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]RunSummary, 0, limit)
	for i := 1; i <= size && len(out) < limit; i++ {
		s := h.entries[(h.next-i+h.capacity)%h.capacity]
		if tenantID != uuid.Nil && s.TenantID != tenantID {
			continue
		}
		out = append(out, s)
	}
	return out
}
