package contextstore

import (
	"fmt"
	"testing"
)

func TestStore_SetAndGet(t *testing.T) {
	s := New()
	s.Set("c1", "web-search_result", map[string]any{"hits": 3})
	v, ok := s.Get("c1", "web-search_result")
	if !ok {
		t.Fatalf("expected value present")
	}
	m := v.(map[string]any)
	if m["hits"] != 3 {
		t.Fatalf("unexpected value: %+v", m)
	}
}

func TestStore_PruningKeepsImportantAndRecent(t *testing.T) {
	s := New()
	s.Set("c1", "user_preferences", map[string]any{"verbosity": "normal"})
	s.Set("c1", "session_data", map[string]any{"turn": 1})

	// Push well past the 1000-byte threshold with many large throwaway entries.
	for i := 0; i < 30; i++ {
		s.Set("c1", fmt.Sprintf("scratch_%d", i), fmt.Sprintf("padding-value-number-%d-xxxxxxxxxxxxxxxxxxxx", i))
	}

	snap := s.Snapshot("c1")
	if _, ok := snap["user_preferences"]; !ok {
		t.Fatalf("expected user_preferences to survive pruning")
	}
	if _, ok := snap["session_data"]; !ok {
		t.Fatalf("expected session_data to survive pruning")
	}

	nonImportant := 0
	for k := range snap {
		if k == "user_preferences" || k == "session_data" {
			continue
		}
		nonImportant++
	}
	if nonImportant > KeepRecent {
		t.Fatalf("expected at most %d non-important entries to survive, got %d", KeepRecent, nonImportant)
	}

	// Most recently set entries should be the ones kept.
	if _, ok := snap["scratch_29"]; !ok {
		t.Fatalf("expected most recently written entry to survive pruning")
	}
	if _, ok := snap["scratch_0"]; ok {
		t.Fatalf("expected oldest scratch entry to be pruned")
	}
}

func TestStore_MergePropagatesMemories(t *testing.T) {
	s := New()
	s.Merge("c1", map[string]any{"fact_1": "go is fun", "fact_2": "pruning works"})
	snap := s.Snapshot("c1")
	if snap["fact_1"] != "go is fun" || snap["fact_2"] != "pruning works" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestStore_DecodeIntoTypedStruct(t *testing.T) {
	type prefs struct {
		Verbosity string `mapstructure:"verbosity"`
	}
	s := New()
	s.Set("c1", "verbosity", "terse")

	var out prefs
	if err := s.Decode("c1", &out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out.Verbosity != "terse" {
		t.Fatalf("expected decoded verbosity 'terse', got %q", out.Verbosity)
	}
}

func TestStore_DeleteRemovesConversation(t *testing.T) {
	s := New()
	s.Set("c1", "k", "v")
	s.Delete("c1")
	if _, ok := s.Get("c1", "k"); ok {
		t.Fatalf("expected key gone after delete")
	}
}
