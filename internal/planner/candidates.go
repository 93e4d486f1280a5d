package planner

import (
	"strings"

	"github.com/kadirpekel/agentrt/internal/model"
	"github.com/kadirpekel/agentrt/internal/registry"
)

// categoryAliases is the symmetric category-matching table from
// spec.md §4.5, keyed by Category with the set of loose terms that
// also count as a match against that category (and vice versa).
var categoryAliases = map[model.Category][]string{
	model.CategoryIntegration: {"api", "http"},
	model.CategorySearch:      {"web", "find", "lookup"},
	model.CategoryUtility:     {"text", "processing", "function"},
	model.CategoryCore:        {"ai", "llm", "chat", "embedding"},
	model.CategoryData:        {"knowledge", "database", "storage"},
}

// intentToCategory maps an Intent.Type onto the Category it most
// directly matches, used both for candidate filtering and for the
// "intent type matches tool category" priority bonus.
var intentToCategory = map[model.IntentType]model.Category{
	model.IntentSearch:      model.CategorySearch,
	model.IntentCalculation: model.CategoryUtility,
	model.IntentCode:        model.CategoryExecution,
	model.IntentAPI:         model.CategoryIntegration,
}

// retrieveCandidates runs a three-stage falling-back retrieval: a
// registry search for the intent's keywords joined into one query (the
// intent type is not part of that query), then every tool in the
// category the intent type maps to, then list(), each truncated to
// 2×maxToolCalls after an allowedCategories filter.
func retrieveCandidates(reg *registry.Registry, intent model.Intent, allowedCategories []model.Category, maxToolCalls int) []model.ToolDefinition {
	limit := 2 * maxToolCalls
	if limit <= 0 {
		limit = 2
	}

	query := strings.Join(intent.Keywords, " ")

	stageA := reg.Search(query, registry.Filter{}, registry.SearchOptions{})
	stageA = filterByCategory(stageA, allowedCategories)
	if len(stageA) > 0 {
		return truncate(stageA, limit)
	}

	cat, hasCat := intentToCategory[intent.Type]
	if hasCat {
		stageB := reg.List(registry.Filter{Category: cat})
		stageB = filterByCategory(stageB, allowedCategories)
		if len(stageB) > 0 {
			return truncate(stageB, limit)
		}
	}

	stageC := reg.List(registry.Filter{})
	stageC = filterByCategory(stageC, allowedCategories)
	return truncate(stageC, limit)
}

func truncate(tools []model.ToolDefinition, limit int) []model.ToolDefinition {
	if limit > 0 && len(tools) > limit {
		return tools[:limit]
	}
	return tools
}

// filterByCategory applies the lenient match described in spec.md
// §4.5: direct equality, tool-category contained in/containing the
// allowed term, or the symmetric alias table.
func filterByCategory(tools []model.ToolDefinition, allowed []model.Category) []model.ToolDefinition {
	if len(allowed) == 0 {
		return tools
	}
	var out []model.ToolDefinition
	for _, t := range tools {
		if categoryAllowed(t.Category, allowed) {
			out = append(out, t)
		}
	}
	return out
}

func categoryAllowed(category model.Category, allowed []model.Category) bool {
	for _, a := range allowed {
		if category == a {
			return true
		}
		if strings.Contains(string(category), string(a)) || strings.Contains(string(a), string(category)) {
			return true
		}
		if aliasMatches(category, a) {
			return true
		}
	}
	return false
}

func aliasMatches(category, allowed model.Category) bool {
	for _, alias := range categoryAliases[category] {
		if alias == string(allowed) {
			return true
		}
	}
	for _, alias := range categoryAliases[allowed] {
		if alias == string(category) {
			return true
		}
	}
	return false
}
