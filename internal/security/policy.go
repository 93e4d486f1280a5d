package security

// PolicyLevel names one of the four preset security postures from
// spec.md §6's policy-level table.
type PolicyLevel string

const (
	PolicyLow     PolicyLevel = "low"
	PolicyMedium  PolicyLevel = "medium"
	PolicyHigh    PolicyLevel = "high"
	PolicyMaximum PolicyLevel = "maximum"
)

// Policy is the resolved set of ceilings and switches for one
// conversation. The Gate checks MaxTools and RateLimit; the other
// fields are carried but not checked by the Gate.
type Policy struct {
	Level             PolicyLevel
	MaxTools          int
	MaxExecutionMs    int64
	MaxMemoryMB       int
	AllowedCategories []string
	BlockedCategories []string
	BlockedDomains    []string
	RequireApproval   bool
	RateLimit         RateLimitConfig
}

// Policies returns the four built-in presets verbatim from spec.md
// §4.4's table: maxTools/maxExecMs/maxMemMB/requireApproval per level,
// plus a rate limit config scaled to match the posture (the same 60s
// window at every level, with lower request and token ceilings as the
// level rises, since a stricter policy should also throttle harder,
// not just cap single calls).
func Policies() map[PolicyLevel]Policy {
	return map[PolicyLevel]Policy{
		PolicyLow: {
			Level:           PolicyLow,
			MaxTools:        10,
			MaxExecutionMs:  30000,
			MaxMemoryMB:     100,
			RequireApproval: false,
			RateLimit:       RateLimitConfig{WindowMs: 60000, MaxRequests: 120, MaxTokens: 200000},
		},
		PolicyMedium: {
			Level:           PolicyMedium,
			MaxTools:        5,
			MaxExecutionMs:  15000,
			MaxMemoryMB:     50,
			RequireApproval: false,
			RateLimit:       RateLimitConfig{WindowMs: 60000, MaxRequests: 60, MaxTokens: 100000},
		},
		PolicyHigh: {
			Level:           PolicyHigh,
			MaxTools:        3,
			MaxExecutionMs:  10000,
			MaxMemoryMB:     25,
			RequireApproval: true,
			RateLimit:       RateLimitConfig{WindowMs: 60000, MaxRequests: 30, MaxTokens: 50000},
		},
		PolicyMaximum: {
			Level:           PolicyMaximum,
			MaxTools:        1,
			MaxExecutionMs:  5000,
			MaxMemoryMB:     10,
			RequireApproval: true,
			RateLimit:       RateLimitConfig{WindowMs: 60000, MaxRequests: 10, MaxTokens: 10000},
		},
	}
}

// DefaultPolicy returns the medium preset, the runtime's default
// posture absent any caller override (spec.md §6).
func DefaultPolicy() Policy {
	return Policies()[PolicyMedium]
}
