package security

import (
	"testing"

	"github.com/kadirpekel/agentrt/internal/model"
	"github.com/kadirpekel/agentrt/internal/rterr"
)

type fakeRecorder struct {
	events []model.SecurityEvent
}

func (f *fakeRecorder) Record(e model.SecurityEvent) {
	f.events = append(f.events, e)
}

func TestGate_PreCallCheck_RateLimitDenies(t *testing.T) {
	policy := Policy{MaxTools: 10, RateLimit: RateLimitConfig{WindowMs: 60000, MaxRequests: 1, MaxTokens: 1000}}
	rec := &fakeRecorder{}
	g := NewGate(policy, rec, nil, func() string { return "evt-1" })

	if _, err := g.PreCallCheck("conv1", "user1", "echo", map[string]any{}); err != nil {
		t.Fatalf("expected first call allowed, got %v", err)
	}
	_, err := g.PreCallCheck("conv1", "user1", "echo", map[string]any{})
	if rterr.CodeOf(err) != rterr.RateLimited {
		t.Fatalf("expected RATE_LIMITED, got %v", err)
	}
	if len(rec.events) != 1 || rec.events[0].Kind != model.EventRateLimit {
		t.Fatalf("expected one rate_limit event recorded, got %+v", rec.events)
	}
}

func TestGate_PreCallCheck_ToolBudgetExceeded(t *testing.T) {
	policy := Policy{MaxTools: 1, RateLimit: RateLimitConfig{WindowMs: 60000, MaxRequests: 100, MaxTokens: 100000}}
	g := NewGate(policy, nil, nil, nil)

	g.resources.RecordToolCall("conv1", 10, 1)
	_, err := g.PreCallCheck("conv1", "user1", "echo", map[string]any{})
	if rterr.CodeOf(err) != rterr.ResourceLimitExceeded {
		t.Fatalf("expected RESOURCE_LIMIT_EXCEEDED, got %v", err)
	}
}

func TestGate_PreCallCheck_SanitizesWithoutBlocking(t *testing.T) {
	policy := Policy{MaxTools: 10, RateLimit: RateLimitConfig{WindowMs: 60000, MaxRequests: 100, MaxTokens: 100000}}
	g := NewGate(policy, nil, nil, nil)

	out, err := g.PreCallCheck("conv1", "user1", "echo", map[string]any{
		"message": "email me at jane@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected deny: %v", err)
	}
	if out["message"] != "email me at [REDACTED_EMAIL]" {
		t.Fatalf("expected sanitized message, got %q", out["message"])
	}
}

func TestGate_PreCallCheck_BlocksOnHighSeverityPattern(t *testing.T) {
	policy := Policy{MaxTools: 10, RateLimit: RateLimitConfig{WindowMs: 60000, MaxRequests: 100, MaxTokens: 100000}}
	rec := &fakeRecorder{}
	g := NewGate(policy, rec, nil, func() string { return "evt" })

	_, err := g.PreCallCheck("conv1", "user1", "echo", map[string]any{
		"message": "<script>alert(1)</script>",
	})
	if rterr.CodeOf(err) != rterr.PolicyViolation {
		t.Fatalf("expected POLICY_VIOLATION, got %v", err)
	}
}

func TestGate_PostCallCheck_RecordsUsageAndSanitizesOutput(t *testing.T) {
	policy := Policy{MaxTools: 10, RateLimit: RateLimitConfig{WindowMs: 60000, MaxRequests: 100, MaxTokens: 100000}}
	g := NewGate(policy, nil, nil, nil)

	out, err := g.PostCallCheck("conv1", "user1", "echo", "my email is jane@example.com", 100, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "my email is [REDACTED_EMAIL]" {
		t.Fatalf("expected sanitized output, got %v", out)
	}

	usage := g.resources.Usage("conv1")
	if usage.ToolCalls != 1 || usage.ExecutionMs != 100 || usage.MemoryMB != 5 {
		t.Fatalf("unexpected usage after post-call: %+v", usage)
	}
}
