package planner

import (
	"sort"
	"strings"

	"github.com/kadirpekel/agentrt/internal/model"
	"github.com/kadirpekel/agentrt/internal/registry"
)

// Planner is the stateless Execution Planner. It borrows the Registry
// read-only and holds no per-call state of its own (spec.md §3:
// "Ownership... The Planner is stateless").
type Planner struct {
	reg     *registry.Registry
	weights Weights
}

// New builds a Planner over reg with the given weights (zero-valued
// fields fall back to DefaultWeights).
func New(reg *registry.Registry, weights Weights) *Planner {
	return &Planner{reg: reg, weights: weights.withDefaults()}
}

// Plan produces an ExecutionPlan for query given context and
// preferences, per the full pipeline in spec.md §4.5.
func (p *Planner) Plan(query string, ctx map[string]any, prefs model.Preferences) model.ExecutionPlan {
	intent := AnalyzeIntent(query)
	candidates := retrieveCandidates(p.reg, intent, prefs.AllowedCategories, prefs.MaxToolCalls)

	calls := p.buildCalls(candidates, intent, query, ctx)
	calls = inferDependencies(calls, candidates)

	plan := model.ExecutionPlan{
		ToolCalls:  calls,
		Reasoning:  reasoningText(intent, calls),
		Confidence: confidence(calls, intent.Complexity, p.weights.ConfidenceComplexity),
	}
	plan.Alternatives = p.alternatives(plan)
	return plan
}

func (p *Planner) buildCalls(candidates []model.ToolDefinition, intent model.Intent, rawQuery string, ctx map[string]any) []model.PlannedToolCall {
	var calls []model.PlannedToolCall
	for _, t := range candidates {
		params, ok := synthesizeParameters(t, intent, rawQuery, ctx)
		if !ok {
			continue
		}
		priority := p.priority(t, intent)
		calls = append(calls, model.PlannedToolCall{
			ToolID:     t.ID,
			Parameters: params,
			Priority:   priority,
			Reason:     reasonFor(t, intent),
		})
	}
	sort.SliceStable(calls, func(i, j int) bool { return calls[i].Priority > calls[j].Priority })
	return calls
}

// priority implements spec.md §4.5's formula: base + category-match
// bonus + per-keyword-hit bonus + exact-id bonus + calculation bonus,
// clamped to 1.
func (p *Planner) priority(t model.ToolDefinition, intent model.Intent) float64 {
	w := p.weights
	score := w.Base

	if cat, ok := intentToCategory[intent.Type]; ok && cat == t.Category {
		score += w.CategoryMatchBonus
	}

	haystack := strings.ToLower(t.Name + " " + t.Description)
	for _, kw := range intent.Keywords {
		if strings.Contains(haystack, kw) {
			score += w.KeywordMatchPerHit
		}
	}

	switch strings.ToLower(t.ID) {
	case "search", "api", "text":
		score += w.ExactIDBonus
	}

	if intent.Type == model.IntentCalculation {
		score += w.CalculationBonus * intent.Complexity
	}

	if score > 1 {
		score = 1
	}
	return score
}

func reasonFor(t model.ToolDefinition, intent model.Intent) string {
	return "matched intent " + string(intent.Type) + " against tool " + t.ID
}

func reasoningText(intent model.Intent, calls []model.PlannedToolCall) string {
	if len(calls) == 0 {
		return "no candidate tools matched intent " + string(intent.Type)
	}
	names := make([]string, 0, len(calls))
	for _, c := range calls {
		names = append(names, c.ToolID)
	}
	return "classified intent as " + string(intent.Type) + "; selected tools: " + strings.Join(names, ", ")
}

// confidence is mean(priority) × (1 − weight×complexity), weight being
// Weights.ConfidenceComplexity (0.2 by default), 0 with no candidates
// (spec.md §4.5).
func confidence(calls []model.PlannedToolCall, complexity, weight float64) float64 {
	if len(calls) == 0 {
		return 0
	}
	var sum float64
	for _, c := range calls {
		sum += c.Priority
	}
	mean := sum / float64(len(calls))
	return mean * (1 - weight*complexity)
}

// inferDependencies implements spec.md §4.5: an execution-category
// tool that follows one or more search tools in the candidate list
// declares each as a dependency.
func inferDependencies(calls []model.PlannedToolCall, candidates []model.ToolDefinition) []model.PlannedToolCall {
	categoryByID := make(map[string]model.Category, len(candidates))
	for _, t := range candidates {
		categoryByID[t.ID] = t.Category
	}

	var searchSoFar []string
	for i := range calls {
		id := calls[i].ToolID
		if categoryByID[id] == model.CategoryExecution && len(searchSoFar) > 0 {
			calls[i].Dependencies = append([]string(nil), searchSoFar...)
		}
		if categoryByID[id] == model.CategorySearch {
			searchSoFar = append(searchSoFar, id)
		}
	}
	return calls
}

// alternatives builds up to two alternative plans per spec.md §4.5: a
// reduced top-2 subset scored at 0.8× the primary confidence.
// Alternatives never carry further alternatives.
func (p *Planner) alternatives(primary model.ExecutionPlan) []model.ExecutionPlan {
	if len(primary.ToolCalls) <= 1 {
		return nil
	}
	topN := primary.ToolCalls
	if len(topN) > 2 {
		topN = topN[:2]
	}
	alt := model.ExecutionPlan{
		ToolCalls:  append([]model.PlannedToolCall(nil), topN...),
		Reasoning:  "reduced subset of the primary plan's top candidates",
		Confidence: primary.Confidence * 0.8,
	}
	return []model.ExecutionPlan{alt}
}
