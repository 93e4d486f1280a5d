// Package audit implements the Audit Buffer (spec.md §4.4): a bounded,
// in-memory, FIFO-evicting ring of SecurityEvents with filtered
// queries, grounded on the teacher's pkg/session memoryEvents
// (append-only slice behind a single RWMutex, indexed accessors) —
// generalized here to a fixed-capacity ring since the Audit Buffer, per
// spec.md, must evict its oldest entry rather than grow unbounded.
package audit

import (
	"sync"
	"time"

	"github.com/kadirpekel/agentrt/internal/metrics"
	"github.com/kadirpekel/agentrt/internal/model"
)

// DefaultCapacity is the buffer's default size (spec.md §4.4).
const DefaultCapacity = 10000

// Buffer is a bounded ring of SecurityEvents.
type Buffer struct {
	mu       sync.RWMutex
	events   []model.SecurityEvent
	capacity int
	next     int
	full     bool
	rec      *metrics.Recorder
	onHigh   func(model.SecurityEvent)
}

// New builds a Buffer with the given capacity (DefaultCapacity if <=
// 0). rec may be nil. onHighSeverity, if non-nil, is invoked
// synchronously for every high/critical-severity event recorded — the
// runtime wires this to its operational logger (spec.md §4.4: "high
// and critical severity events are echoed to the operational log").
func New(capacity int, rec *metrics.Recorder, onHighSeverity func(model.SecurityEvent)) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		events:   make([]model.SecurityEvent, capacity),
		capacity: capacity,
		rec:      rec,
		onHigh:   onHighSeverity,
	}
}

// Record appends e to the ring, evicting the oldest entry once full.
// Stamps Timestamp if unset; ID is kept as the caller set it.
func (b *Buffer) Record(e model.SecurityEvent) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.Lock()
	b.events[b.next] = e
	b.next = (b.next + 1) % b.capacity
	if b.next == 0 {
		b.full = true
	}
	b.mu.Unlock()

	if b.rec != nil {
		b.rec.ObserveSecurityEvent(string(e.Kind), string(e.Severity))
	}
	if b.onHigh != nil && (e.Severity == model.SeverityHigh || e.Severity == model.SeverityCritical) {
		b.onHigh(e)
	}
}

// Query filters the buffer's contents. A zero-value field in f is
// treated as "don't filter on this dimension". Results are returned
// oldest-first.
type Query struct {
	Principal      string
	ConversationID string
	Kind           model.SecurityEventKind
	MinSeverity    model.Severity
	Since          time.Time
	Until          time.Time
}

var severityRank = map[model.Severity]int{
	model.SeverityLow:      0,
	model.SeverityMedium:   1,
	model.SeverityHigh:     2,
	model.SeverityCritical: 3,
}

// Events returns the buffer's current contents, oldest first, filtered
// by q.
func (b *Buffer) Events(q Query) []model.SecurityEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ordered := b.orderedLocked()
	var out []model.SecurityEvent
	for _, e := range ordered {
		if q.Principal != "" && e.Principal != q.Principal {
			continue
		}
		if q.ConversationID != "" && e.ConversationID != q.ConversationID {
			continue
		}
		if q.Kind != "" && e.Kind != q.Kind {
			continue
		}
		if q.MinSeverity != "" && severityRank[e.Severity] < severityRank[q.MinSeverity] {
			continue
		}
		if !q.Since.IsZero() && e.Timestamp.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && e.Timestamp.After(q.Until) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Len returns the number of events currently held.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.full {
		return b.capacity
	}
	return b.next
}

// orderedLocked returns events oldest-first; caller must hold b.mu.
func (b *Buffer) orderedLocked() []model.SecurityEvent {
	if !b.full {
		out := make([]model.SecurityEvent, b.next)
		copy(out, b.events[:b.next])
		return out
	}
	out := make([]model.SecurityEvent, b.capacity)
	copy(out, b.events[b.next:])
	copy(out[b.capacity-b.next:], b.events[:b.next])
	return out
}
