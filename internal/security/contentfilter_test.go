package security

import (
	"strings"
	"testing"
)

func TestContentFilter_BlocksSQLInjection(t *testing.T) {
	cf := NewContentFilter(DefaultPatterns())
	result := cf.Scan("DROP TABLE users")
	if !result.Blocked {
		t.Fatalf("expected sql_injection pattern to block")
	}
}

func TestContentFilter_BlocksXSS(t *testing.T) {
	cf := NewContentFilter(DefaultPatterns())
	result := cf.Scan(`<script>alert(1)</script>`)
	if !result.Blocked {
		t.Fatalf("expected xss pattern to block")
	}
}

func TestContentFilter_RedactsWithoutBlocking(t *testing.T) {
	cf := NewContentFilter(DefaultPatterns())
	result := cf.Scan("contact me at jane@example.com")
	if result.Blocked {
		t.Fatalf("email pattern (medium severity) should redact, not block")
	}
	if !strings.Contains(result.Sanitized, "[REDACTED_EMAIL]") {
		t.Fatalf("expected email redaction, got %q", result.Sanitized)
	}
}

func TestContentFilter_CleanTextPassesThrough(t *testing.T) {
	cf := NewContentFilter(DefaultPatterns())
	result := cf.Scan("just a normal sentence about the weather")
	if result.Blocked {
		t.Fatalf("expected clean text not to block")
	}
	if len(result.Findings) != 0 {
		t.Fatalf("expected no findings, got %+v", result.Findings)
	}
	if result.Sanitized != "just a normal sentence about the weather" {
		t.Fatalf("expected sanitized text unchanged, got %q", result.Sanitized)
	}
}

func TestContentFilter_SSNRedactedAndFlagged(t *testing.T) {
	cf := NewContentFilter(DefaultPatterns())
	result := cf.Scan("ssn 123-45-6789 on file")
	if !result.Blocked {
		t.Fatalf("expected ssn pattern (high severity) to block per spec")
	}
	foundSSN := false
	for _, f := range result.Findings {
		if f.Pattern == "ssn" {
			foundSSN = true
		}
	}
	if !foundSSN {
		t.Fatalf("expected an ssn finding, got %+v", result.Findings)
	}
	if !strings.Contains(result.Sanitized, "[REDACTED_SSN]") {
		t.Fatalf("expected ssn redaction in sanitized text, got %q", result.Sanitized)
	}
}

func TestContentFilter_CreditCardRedacted(t *testing.T) {
	cf := NewContentFilter(DefaultPatterns())
	result := cf.Scan("card 4111 1111 1111 1111 on file")
	if !result.Blocked {
		t.Fatalf("expected credit_card pattern (high severity) to block")
	}
	if !strings.Contains(result.Sanitized, "[REDACTED_CREDIT_CARD]") {
		t.Fatalf("expected credit card redaction, got %q", result.Sanitized)
	}
}
