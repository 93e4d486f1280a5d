package security

import "sync"

// ResourceUsage is one conversation's running totals, checked against
// a Policy's ceilings before each tool call (spec.md §4.4).
type ResourceUsage struct {
	ToolCalls     int
	ExecutionMs   int64
	MemoryMB      int
}

// ResourceMonitor tracks per-conversation usage counters. Grounded on
// the teacher's pkg/ratelimit Store shape (keyed counters behind a
// single mutex, Record/GetUsage/Reset), narrowed to conversation-scoped
// accumulation rather than time-windowed quotas — the Security Gate's
// RateLimiter already owns the time dimension.
type ResourceMonitor struct {
	mu    sync.Mutex
	usage map[string]*ResourceUsage
}

// NewResourceMonitor builds an empty monitor.
func NewResourceMonitor() *ResourceMonitor {
	return &ResourceMonitor{usage: make(map[string]*ResourceUsage)}
}

// RecordToolCall increments the call counter and accumulates execution
// time / peak memory for a conversation.
func (rm *ResourceMonitor) RecordToolCall(conversationID string, execMs int64, memMB int) ResourceUsage {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	u, ok := rm.usage[conversationID]
	if !ok {
		u = &ResourceUsage{}
		rm.usage[conversationID] = u
	}
	u.ToolCalls++
	u.ExecutionMs += execMs
	if memMB > u.MemoryMB {
		u.MemoryMB = memMB
	}
	return *u
}

// Usage returns a conversation's current totals.
func (rm *ResourceMonitor) Usage(conversationID string) ResourceUsage {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if u, ok := rm.usage[conversationID]; ok {
		return *u
	}
	return ResourceUsage{}
}

// Reset clears a conversation's usage, e.g. on deletion.
func (rm *ResourceMonitor) Reset(conversationID string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.usage, conversationID)
}
