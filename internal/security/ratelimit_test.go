package security

import (
	"testing"
	"time"
)

func TestRateLimiter_AllowsWithinWindow(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{WindowMs: 60000, MaxRequests: 3, MaxTokens: 1000})

	for i := 1; i <= 3; i++ {
		result := rl.Check("principal1", 10)
		if !result.Allowed {
			t.Fatalf("request %d: expected allowed", i)
		}
		if result.Requests != int64(i) {
			t.Fatalf("request %d: expected requests=%d, got %d", i, i, result.Requests)
		}
	}

	result := rl.Check("principal1", 10)
	if result.Allowed {
		t.Fatalf("expected 4th request to be denied")
	}
	if result.RetryAfter <= 0 {
		t.Fatalf("expected a positive retry-after, got %v", result.RetryAfter)
	}
}

func TestRateLimiter_TokenCeiling(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{WindowMs: 60000, MaxRequests: 100, MaxTokens: 50})

	if r := rl.Check("p", 30); !r.Allowed {
		t.Fatalf("expected first 30-token request allowed")
	}
	if r := rl.Check("p", 30); r.Allowed {
		t.Fatalf("expected second 30-token request denied (total 60 > 50)")
	}
}

func TestRateLimiter_SeparatePrincipals(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{WindowMs: 60000, MaxRequests: 1, MaxTokens: 1000})

	if r := rl.Check("a", 1); !r.Allowed {
		t.Fatalf("expected a's first request allowed")
	}
	if r := rl.Check("a", 1); r.Allowed {
		t.Fatalf("expected a's second request denied")
	}
	if r := rl.Check("b", 1); !r.Allowed {
		t.Fatalf("expected b to have its own quota")
	}
}

func TestRateLimiter_SlidingWindowAgesOut(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{WindowMs: 50, MaxRequests: 1, MaxTokens: 1000})

	if r := rl.Check("p", 1); !r.Allowed {
		t.Fatalf("expected first request allowed")
	}
	if r := rl.Check("p", 1); r.Allowed {
		t.Fatalf("expected immediate second request denied")
	}

	time.Sleep(80 * time.Millisecond)

	if r := rl.Check("p", 1); !r.Allowed {
		t.Fatalf("expected request allowed once the window has aged out (reset after idle)")
	}
}

func TestRateLimiter_Reset(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{WindowMs: 60000, MaxRequests: 1, MaxTokens: 1000})

	rl.Check("p", 1)
	if r := rl.Check("p", 1); r.Allowed {
		t.Fatalf("expected denied before reset")
	}

	rl.Reset("p")
	if r := rl.Check("p", 1); !r.Allowed {
		t.Fatalf("expected allowed after reset")
	}
}
