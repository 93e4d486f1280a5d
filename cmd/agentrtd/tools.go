package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kadirpekel/agentrt/internal/model"
	"github.com/kadirpekel/agentrt/internal/orchestrator"
	"github.com/kadirpekel/agentrt/internal/registry"
)

// registerBuiltinTools registers the demo binary's default catalogue:
// a web search stub, a text echo tool, and a process-wide memory
// store/recall tool (one bank shared by every conversation) — enough to exercise the planner's candidate
// retrieval, the memory-tool parameter synthesis of spec.md §4.5, and
// the orchestrator's result-propagation-into-context step.
func registerBuiltinTools(reg *registry.Registry) error {
	tools := []model.ToolDefinition{
		{
			ID:          "web-search",
			Name:        "Web Search",
			Description: "search the web for information on a topic",
			Version:     "1.0.0",
			Category:    model.CategorySearch,
			Kind:        model.KindWebSearch,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "description": "search terms"},
				},
				"required": []any{"query"},
			},
			OutputSchema: map[string]any{"type": "object"},
			Permissions:  model.Permissions{Network: true},
			Execution:    model.Execution{Environment: "direct", TimeoutMs: 5000},
		},
		{
			ID:          "echo",
			Name:        "Echo",
			Description: "echo text back, useful for testing the pipeline",
			Version:     "1.0.0",
			Category:    model.CategoryUtility,
			Kind:        model.KindFunction,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text": map[string]any{"type": "string"},
				},
			},
			OutputSchema: map[string]any{"type": "object"},
			Execution:    model.Execution{Environment: "direct", TimeoutMs: 1000},
		},
		{
			ID:          "memory",
			Name:        "Memory",
			Description: "store and recall facts about the user across a conversation",
			Version:     "1.0.0",
			Category:    model.CategoryUtility,
			Kind:        model.KindFunction,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"action": map[string]any{"type": "string", "enum": []any{"store", "recall"}},
					"key":    map[string]any{"type": "string"},
					"value":  map[string]any{"type": "string"},
				},
				"required": []any{"action"},
			},
			OutputSchema: map[string]any{"type": "object"},
			Execution:    model.Execution{Environment: "direct", TimeoutMs: 1000},
		},
	}

	for _, t := range tools {
		if err := reg.Register(t); err != nil {
			return fmt.Errorf("registering %s: %w", t.ID, err)
		}
	}
	return nil
}

// memoryBank is the demo binary's in-process store behind the memory
// tool; the spec's Context Store already fans a tool's "memories" key
// back into conversation.Context, so this is the stand-in for a real
// durable store a production tool would back onto.
type memoryBank struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryBank() *memoryBank {
	return &memoryBank{data: make(map[string]string)}
}

func registerBuiltinHandlers(orch *orchestrator.Orchestrator) {
	bank := newMemoryBank()

	orch.RegisterHandler("web-search", func(ctx context.Context, params map[string]any) (any, error) {
		query, _ := params["query"].(string)
		return map[string]any{
			"success": true,
			"results": []string{
				fmt.Sprintf("stub result for %q (no live search wired in this demo)", query),
			},
		}, nil
	})

	orch.RegisterHandler("echo", func(ctx context.Context, params map[string]any) (any, error) {
		text, _ := params["text"].(string)
		return map[string]any{"success": true, "echo": text}, nil
	})

	orch.RegisterHandler("memory", func(ctx context.Context, params map[string]any) (any, error) {
		action, _ := params["action"].(string)
		key, _ := params["key"].(string)

		switch strings.ToLower(action) {
		case "store":
			value, _ := params["value"].(string)
			if key == "" {
				key = "note"
			}
			bank.mu.Lock()
			bank.data[key] = value
			snapshot := make(map[string]any, len(bank.data))
			for k, v := range bank.data {
				snapshot[k] = v
			}
			bank.mu.Unlock()
			return map[string]any{"success": true, "memories": snapshot}, nil
		case "recall":
			bank.mu.Lock()
			value, ok := bank.data[key]
			bank.mu.Unlock()
			if !ok {
				return map[string]any{"success": true, "found": false}, nil
			}
			return map[string]any{"success": true, "found": true, key: value}, nil
		default:
			return map[string]any{"success": false, "error": fmt.Sprintf("unknown memory action %q", action)}, nil
		}
	})
}
