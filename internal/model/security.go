package model

import "time"

// SecurityEventKind classifies why a SecurityEvent was recorded.
type SecurityEventKind string

const (
	EventRateLimit         SecurityEventKind = "rate_limit"
	EventContentFilter     SecurityEventKind = "content_filter"
	EventResourceLimit     SecurityEventKind = "resource_limit"
	EventPolicyViolation   SecurityEventKind = "policy_violation"
	EventAccessDenied      SecurityEventKind = "access_denied"
	EventSuspiciousActivity SecurityEventKind = "suspicious_activity"
)

// Severity ranks a SecurityEvent's importance.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SecurityEvent is one entry in the Audit Buffer's ring.
type SecurityEvent struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	Kind           SecurityEventKind `json:"kind"`
	Severity       Severity          `json:"severity"`
	Principal      string            `json:"principal"`
	ConversationID string            `json:"conversationId,omitempty"`
	Details        map[string]any    `json:"details,omitempty"`
}
