package security

import (
	"github.com/kadirpekel/agentrt/internal/metrics"
	"github.com/kadirpekel/agentrt/internal/model"
	"github.com/kadirpekel/agentrt/internal/rterr"
)

// EventRecorder receives SecurityEvents as the Gate produces them.
// internal/audit.Buffer implements this; defined here (rather than
// imported from audit) so security has no dependency on audit, only
// the other way around — mirrors the teacher's pkg/ratelimit package
// depending on nothing outside itself and being driven by callers.
type EventRecorder interface {
	Record(model.SecurityEvent)
}

// Gate is the Security Gate: the outermost middleware around every
// tool call, enforcing rate limits, content filtering, and resource
// ceilings per spec.md §4.4, and emitting SecurityEvents for anything
// it denies or sanitizes.
type Gate struct {
	policy    Policy
	limiter   *RateLimiter
	filter    *ContentFilter
	resources *ResourceMonitor
	recorder  EventRecorder
	metrics   *metrics.Recorder
	idFunc    func() string
}

// NewGate builds a Gate for policy, emitting events to recorder (may
// be nil) and metrics to rec (nil-safe). idFunc mints SecurityEvent
// ids; pass uuid.NewString in production, a counter in tests.
func NewGate(policy Policy, recorder EventRecorder, rec *metrics.Recorder, idFunc func() string) *Gate {
	return &Gate{
		policy:    policy,
		limiter:   NewRateLimiter(policy.RateLimit),
		filter:    NewContentFilter(DefaultPatterns()),
		resources: NewResourceMonitor(),
		recorder:  recorder,
		metrics:   rec,
		idFunc:    idFunc,
	}
}

// SetFilterPatterns replaces the Gate's ContentFilter rules wholesale,
// for a caller that loaded overrides via internal/rtconfig rather than
// accepting the spec's default pattern table.
func (g *Gate) SetFilterPatterns(patterns []FilterPattern) {
	g.filter = NewContentFilter(patterns)
}

// CheckMessageRate applies the Gate's rate limiter to an incoming
// message itself, independent of whatever tool calls the turn goes on
// to plan (spec.md §4.4: the limiter throttles "requests", and a
// processMessage call is the unit of request the runtime's caller
// actually makes). Each planned tool call still spends its own budget
// in PreCallCheck; a chatty conversation with no tool calls at all is
// still rate-limited through this path.
func (g *Gate) CheckMessageRate(conversationID, principal string) error {
	rl := g.limiter.Check(principal, 0)
	if rl.Allowed {
		return nil
	}
	g.emit(model.EventRateLimit, model.SeverityMedium, principal, conversationID, map[string]any{
		"retryAfter": rl.RetryAfter.String(),
	})
	return rterr.Newf(rterr.RateLimited, "rate limit exceeded for principal %q, retry after %s", principal, rl.RetryAfter)
}

// FilterMessage scans a raw user message against the content filter
// before it ever reaches the transcript or the planner (spec.md §4.6
// step 1). Unlike PreCallCheck/PostCallCheck this doesn't fail the
// whole call on every high-severity finding: a redactable one (PII,
// with a Replacement) comes back sanitized so the turn proceeds;
// only a finding with no Replacement (sql_injection, xss) blocks
// outright, since there is nothing sane to substitute in its place.
func (g *Gate) FilterMessage(conversationID, principal, text string) (string, error) {
	result := g.filter.Scan(text)
	if len(result.Findings) == 0 {
		return text, nil
	}
	for _, f := range result.Findings {
		g.emit(model.EventContentFilter, f.Severity, principal, conversationID, map[string]any{
			"phase":   "message",
			"pattern": f.Pattern,
		})
	}
	for _, f := range result.Findings {
		if f.Replacement == "" {
			return "", rterr.Newf(rterr.PolicyViolation, "message blocked by content filter (%s)", f.Pattern)
		}
	}
	return result.Sanitized, nil
}

// PreCallCheck runs before a tool call executes: rate limit, then tool
// budget, then input content scan. It returns the (possibly sanitized)
// input and a non-nil error if the call must be denied outright.
func (g *Gate) PreCallCheck(conversationID, principal, toolID string, input map[string]any) (map[string]any, error) {
	rl := g.limiter.Check(principal, 1)
	if !rl.Allowed {
		g.emit(model.EventRateLimit, model.SeverityMedium, principal, conversationID, map[string]any{
			"toolId":     toolID,
			"retryAfter": rl.RetryAfter.String(),
		})
		return nil, rterr.Newf(rterr.RateLimited, "rate limit exceeded for principal %q, retry after %s", principal, rl.RetryAfter)
	}

	usage := g.resources.Usage(conversationID)
	if g.policy.MaxTools > 0 && usage.ToolCalls >= g.policy.MaxTools {
		g.emit(model.EventResourceLimit, model.SeverityMedium, principal, conversationID, map[string]any{
			"toolId": toolID,
			"limit":  g.policy.MaxTools,
		})
		return nil, rterr.Newf(rterr.ResourceLimitExceeded, "conversation %q exceeded max tool calls (%d)", conversationID, g.policy.MaxTools)
	}

	sanitized := input
	copied := false
	for key, val := range input {
		s, ok := val.(string)
		if !ok {
			continue
		}
		result := g.filter.Scan(s)
		if len(result.Findings) == 0 {
			continue
		}
		for _, f := range result.Findings {
			g.emit(model.EventContentFilter, f.Severity, principal, conversationID, map[string]any{
				"toolId":  toolID,
				"pattern": f.Pattern,
				"field":   key,
			})
		}
		if result.Blocked {
			return nil, rterr.Newf(rterr.PolicyViolation, "input field %q blocked by content filter", key)
		}
		if !copied {
			sanitized = cloneMap(input)
			copied = true
		}
		sanitized[key] = result.Sanitized
	}

	return sanitized, nil
}

// PostCallCheck runs after a tool call completes, scanning its output
// when that output is a string (other output types pass unscanned)
// and recording resource usage for the budget check in PreCallCheck.
func (g *Gate) PostCallCheck(conversationID, principal, toolID string, output any, execMs int64, memMB int) (any, error) {
	g.resources.RecordToolCall(conversationID, execMs, memMB)
	if g.metrics != nil {
		g.metrics.ObserveToolCall(toolID, "completed", float64(execMs)/1000.0)
	}

	s, ok := output.(string)
	if !ok {
		return output, nil
	}
	result := g.filter.Scan(s)
	if len(result.Findings) == 0 {
		return output, nil
	}
	for _, f := range result.Findings {
		g.emit(model.EventContentFilter, f.Severity, principal, conversationID, map[string]any{
			"toolId":  toolID,
			"pattern": f.Pattern,
			"phase":   "output",
		})
	}
	if result.Blocked {
		return nil, rterr.Newf(rterr.PolicyViolation, "output of tool %q blocked by content filter", toolID)
	}
	return result.Sanitized, nil
}

func (g *Gate) emit(kind model.SecurityEventKind, severity model.Severity, principal, conversationID string, details map[string]any) {
	if g.metrics != nil {
		g.metrics.ObserveSecurityEvent(string(kind), string(severity))
	}
	if g.recorder == nil {
		return
	}
	id := "evt"
	if g.idFunc != nil {
		id = g.idFunc()
	}
	g.recorder.Record(model.SecurityEvent{
		ID:             id,
		Kind:           kind,
		Severity:       severity,
		Principal:      principal,
		ConversationID: conversationID,
		Details:        details,
	})
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
