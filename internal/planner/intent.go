// Package planner implements the Execution Planner (spec.md §4.5): a
// stateless function from (query, context, preferences) to an
// ExecutionPlan, built from intent analysis, candidate retrieval
// against the Tool Registry, parameter synthesis, and priority scoring.
//
// Grounded on the teacher's pkg/reasoning strategy functions (pure,
// stateless transforms over a query plus a read-only AgentServices
// handle) generalized here to resolve against a registry.Registry
// instead of an LLM call — per spec.md the planner is rule-based, not
// model-driven.
package planner

import (
	"strings"
	"unicode"

	"github.com/kadirpekel/agentrt/internal/model"
)

var intentKeywords = []struct {
	intent   model.IntentType
	keywords []string
}{
	{model.IntentSearch, []string{"search", "find", "lookup"}},
	{model.IntentCalculation, []string{"calculate", "compute", "math"}},
	{model.IntentCode, []string{"code", "program", "script"}},
	{model.IntentAPI, []string{"api", "request", "call"}},
}

// AnalyzeIntent tokenizes query and classifies its Intent per
// spec.md §4.5: whitespace tokenization, tokens of length ≤ 2 dropped,
// lowercased for keyword matching; entities are original-case tokens
// starting with an uppercase letter; complexity is keyword-count
// scaled to [0,1].
func AnalyzeIntent(query string) model.Intent {
	rawTokens := strings.Fields(query)

	var keywords []string
	var entities []string
	for _, tok := range rawTokens {
		if isUpperStart(tok) {
			entities = append(entities, tok)
		}
		lower := strings.ToLower(tok)
		if len([]rune(lower)) <= 2 {
			continue
		}
		keywords = append(keywords, lower)
	}

	intentType := model.IntentGeneral
classify:
	for _, group := range intentKeywords {
		for _, kw := range keywords {
			if containsAny(kw, group.keywords) {
				intentType = group.intent
				break classify
			}
		}
	}

	complexity := float64(len(keywords)) / 5.0
	if complexity > 1 {
		complexity = 1
	}

	return model.Intent{
		Type:       intentType,
		Keywords:   keywords,
		Entities:   entities,
		Complexity: complexity,
	}
}

func isUpperStart(tok string) bool {
	for _, r := range tok {
		return unicode.IsUpper(r)
	}
	return false
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
