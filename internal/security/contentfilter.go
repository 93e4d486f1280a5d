package security

import (
	"regexp"

	"github.com/kadirpekel/agentrt/internal/model"
)

// FilterCategory classifies what a FilterPattern is guarding against
// (spec.md §4.4).
type FilterCategory string

const (
	CategoryPII           FilterCategory = "pii"
	CategoryMalicious     FilterCategory = "malicious"
	CategoryInappropriate FilterCategory = "inappropriate"
)

// FilterPattern is one named content rule (spec.md §4.4/§6's pattern
// table). Severity is the filter's own three-level scale
// {low,medium,high} — a narrower scale than model.Severity's
// four-level SecurityEvent severity, since a ContentFilter finding is
// never "critical" in spec.md's sense.
type FilterPattern struct {
	Name        string
	Pattern     *regexp.Regexp
	Severity    model.Severity
	Category    FilterCategory
	Replacement string
}

// DefaultPatterns returns the content filter rules from spec.md §6,
// verbatim in matching semantics, severity, and replacement — required
// for bit-level test parity. sql_injection and xss carry no
// replacement: a high-severity finding blocks the call outright rather
// than being redacted in place.
func DefaultPatterns() []FilterPattern {
	return []FilterPattern{
		{
			Name:        "credit_card",
			Pattern:     regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`),
			Severity:    model.SeverityHigh,
			Category:    CategoryPII,
			Replacement: "[REDACTED_CREDIT_CARD]",
		},
		{
			Name:        "ssn",
			Pattern:     regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
			Severity:    model.SeverityHigh,
			Category:    CategoryPII,
			Replacement: "[REDACTED_SSN]",
		},
		{
			Name:        "email",
			Pattern:     regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
			Severity:    model.SeverityMedium,
			Category:    CategoryPII,
			Replacement: "[REDACTED_EMAIL]",
		},
		{
			Name:        "phone",
			Pattern:     regexp.MustCompile(`\b\d{3}-\d{3}-\d{4}\b|\(\d{3}\)\s?\d{3}-\d{4}`),
			Severity:    model.SeverityMedium,
			Category:    CategoryPII,
			Replacement: "[REDACTED_PHONE]",
		},
		{
			Name:     "sql_injection",
			Pattern:  regexp.MustCompile(`(?i)(\b(SELECT|INSERT|UPDATE|DELETE|DROP|CREATE|ALTER)\b.*\b(FROM|INTO|SET|WHERE|TABLE)\b)`),
			Severity: model.SeverityHigh,
			Category: CategoryMalicious,
		},
		{
			Name:     "xss",
			Pattern:  regexp.MustCompile(`(?is)<script\b.*?</script>`),
			Severity: model.SeverityHigh,
			Category: CategoryMalicious,
		},
	}
}

// Finding is one pattern hit against a scanned string. Replacement
// echoes the pattern's own replacement text (empty for a pattern like
// sql_injection/xss that has none) so a caller can tell a redactable
// PII hit apart from unredactable malicious content.
type Finding struct {
	Pattern     string
	Severity    model.Severity
	Category    FilterCategory
	Match       string
	Replacement string
}

// ScanResult is the outcome of ContentFilter.Scan: {violations, filtered,
// blocked} per spec.md §4.4, where blocked = any(violation.severity ==
// high).
type ScanResult struct {
	Blocked   bool
	Findings  []Finding
	Sanitized string
}

// ContentFilter evaluates text against an ordered set of named
// patterns, returning both a block decision and a sanitized copy with
// matches replaced (spec.md §4.4).
type ContentFilter struct {
	patterns []FilterPattern
}

// NewContentFilter builds a filter over patterns, evaluated in order.
func NewContentFilter(patterns []FilterPattern) *ContentFilter {
	return &ContentFilter{patterns: patterns}
}

// Scan checks text against every configured pattern. Every pattern
// runs regardless of earlier matches, so Findings reports every hit;
// Blocked is true iff at least one finding is high severity.
func (cf *ContentFilter) Scan(text string) ScanResult {
	sanitized := text
	var findings []Finding
	blocked := false

	for _, p := range cf.patterns {
		matches := p.Pattern.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		for _, m := range matches {
			findings = append(findings, Finding{
				Pattern:     p.Name,
				Severity:    p.Severity,
				Category:    p.Category,
				Match:       m,
				Replacement: p.Replacement,
			})
			if p.Severity == model.SeverityHigh {
				blocked = true
			}
		}
		if p.Replacement != "" {
			sanitized = p.Pattern.ReplaceAllString(sanitized, p.Replacement)
		}
	}

	return ScanResult{Blocked: blocked, Findings: findings, Sanitized: sanitized}
}
