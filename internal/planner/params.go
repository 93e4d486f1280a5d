package planner

import (
	"regexp"
	"strings"

	"github.com/kadirpekel/agentrt/internal/model"
)

var interrogativeKeywords = []string{"what", "tell", "recall", "remember", "said", "did", "where", "when", "how", "who"}

var memoryKeySignals = []string{"name", "profession", "location", "interests", "workplace"}

var nameValuePattern = regexp.MustCompile(`(?i)(?:name is|i'm|called)\s+(\w+)`)

// synthesizeParameters builds the parameter map for one candidate tool
// per spec.md §4.5. Returns (params, ok); ok is false when the
// resulting map would be empty, signalling the candidate should be
// dropped.
func synthesizeParameters(tool model.ToolDefinition, intent model.Intent, rawQuery string, ctx map[string]any) (map[string]any, bool) {
	props, _ := tool.InputSchema["properties"].(map[string]any)
	if len(props) == 0 {
		return nil, false
	}

	params := map[string]any{}

	if isMemoryTool(tool) {
		if _, hasAction := props["action"]; hasAction {
			synthesizeMemoryParams(params, rawQuery)
		}
	}

	for name := range props {
		if _, already := params[name]; already {
			continue
		}
		switch {
		case name == "query" || name == "question":
			params[name] = strings.Join(intent.Keywords, " ")
		case name == "text" || name == "content":
			params[name] = rawQuery
		case name == "url":
			if tok := findHTTPToken(rawQuery); tok != "" {
				params[name] = tok
			}
		default:
			if v, ok := ctx[name]; ok {
				params[name] = v
			}
		}
	}

	if len(params) == 0 {
		return nil, false
	}
	return params, true
}

// isMemoryTool detects a memory-style tool per spec.md §4.5: id
// contains "memory", or category is utility and name contains
// "memory".
func isMemoryTool(tool model.ToolDefinition) bool {
	if strings.Contains(strings.ToLower(tool.ID), "memory") {
		return true
	}
	return tool.Category == model.CategoryUtility && strings.Contains(strings.ToLower(tool.Name), "memory")
}

func synthesizeMemoryParams(params map[string]any, rawQuery string) {
	lower := strings.ToLower(rawQuery)
	isRecall := strings.Contains(rawQuery, "?") || strings.Contains(lower, "about")
	if !isRecall {
		for _, kw := range interrogativeKeywords {
			if strings.Contains(lower, kw) {
				isRecall = true
				break
			}
		}
	}

	if isRecall {
		params["action"] = "recall"
	} else {
		params["action"] = "store"
	}

	var key string
	for _, signal := range memoryKeySignals {
		if strings.Contains(lower, signal) {
			key = signal
			break
		}
	}
	if key != "" {
		params["key"] = key
	}

	if m := nameValuePattern.FindStringSubmatch(rawQuery); len(m) == 2 {
		params["value"] = m[1]
	} else if !isRecall {
		params["value"] = rawQuery
	}
}

func findHTTPToken(rawQuery string) string {
	for _, tok := range strings.Fields(rawQuery) {
		if strings.Contains(strings.ToLower(tok), "http") {
			return tok
		}
	}
	return ""
}
