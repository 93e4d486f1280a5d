package audit

import (
	"testing"

	"github.com/kadirpekel/agentrt/internal/model"
)

func evt(kind model.SecurityEventKind, severity model.Severity, principal string) model.SecurityEvent {
	return model.SecurityEvent{Kind: kind, Severity: severity, Principal: principal}
}

func TestBuffer_FIFOEviction(t *testing.T) {
	b := New(3, nil, nil)
	b.Record(evt(model.EventRateLimit, model.SeverityLow, "a"))
	b.Record(evt(model.EventRateLimit, model.SeverityLow, "b"))
	b.Record(evt(model.EventRateLimit, model.SeverityLow, "c"))
	b.Record(evt(model.EventRateLimit, model.SeverityLow, "d"))

	if b.Len() != 3 {
		t.Fatalf("expected capacity-bounded length 3, got %d", b.Len())
	}
	events := b.Events(Query{})
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Principal != "b" {
		t.Fatalf("expected oldest surviving event to be b (a evicted), got %s", events[0].Principal)
	}
	if events[2].Principal != "d" {
		t.Fatalf("expected newest event to be d, got %s", events[2].Principal)
	}
}

func TestBuffer_QueryFiltersBySeverityAndPrincipal(t *testing.T) {
	b := New(10, nil, nil)
	b.Record(evt(model.EventContentFilter, model.SeverityLow, "alice"))
	b.Record(evt(model.EventContentFilter, model.SeverityCritical, "alice"))
	b.Record(evt(model.EventContentFilter, model.SeverityCritical, "bob"))

	results := b.Events(Query{Principal: "alice", MinSeverity: model.SeverityHigh})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d: %+v", len(results), results)
	}
	if results[0].Principal != "alice" || results[0].Severity != model.SeverityCritical {
		t.Fatalf("unexpected result: %+v", results[0])
	}
}

func TestBuffer_HighSeverityCallback(t *testing.T) {
	var echoed []model.SecurityEvent
	b := New(10, nil, func(e model.SecurityEvent) { echoed = append(echoed, e) })

	b.Record(evt(model.EventRateLimit, model.SeverityLow, "a"))
	b.Record(evt(model.EventPolicyViolation, model.SeverityCritical, "b"))
	b.Record(evt(model.EventResourceLimit, model.SeverityHigh, "c"))

	if len(echoed) != 2 {
		t.Fatalf("expected 2 high/critical echoes, got %d", len(echoed))
	}
}

func TestBuffer_EmptyQueryReturnsAll(t *testing.T) {
	b := New(5, nil, nil)
	for i := 0; i < 5; i++ {
		b.Record(evt(model.EventRateLimit, model.SeverityLow, "p"))
	}
	if len(b.Events(Query{})) != 5 {
		t.Fatalf("expected all 5 events back")
	}
}
