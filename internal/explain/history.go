// internal/explain/history.go
package explain

import "sync"

// DefaultHistorySize bounds the retained explanations
const DefaultHistorySize = 1000

// History keeps the most recent explanations for the read API
type History struct {
	mu      sync.RWMutex
	max     int
	entries []Explanation
}

// NewHistory creates a bounded explanation history
func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &History{max: max}
}

// Add appends an explanation, evicting the oldest beyond capacity
func (h *History) Add(exp Explanation) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, exp)
	if len(h.entries) > h.max {
		h.entries = h.entries[len(h.entries)-h.max:]
	}
}

// Recent returns the newest explanations, oldest first
func (h *History) Recent(limit int) []Explanation {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entries := h.entries
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]Explanation, len(entries))
	copy(out, entries)
	return out
}

// ByRequestID returns the most recent explanation for the request
func (h *History) ByRequestID(id string) (Explanation, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for i := len(h.entries) - 1; i >= 0; i-- {
		if h.entries[i].RequestID == id {
			return h.entries[i], true
		}
	}
	return Explanation{}, false
}

// Len returns the number of retained explanations
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
