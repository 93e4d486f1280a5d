package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentrt/internal/audit"
	"github.com/kadirpekel/agentrt/internal/contextstore"
	"github.com/kadirpekel/agentrt/internal/events"
	"github.com/kadirpekel/agentrt/internal/executor"
	"github.com/kadirpekel/agentrt/internal/model"
	"github.com/kadirpekel/agentrt/internal/planner"
	"github.com/kadirpekel/agentrt/internal/registry"
	"github.com/kadirpekel/agentrt/internal/rterr"
	"github.com/kadirpekel/agentrt/internal/security"
)

// This file exercises the six end-to-end scenarios the pipeline is
// built against: plan-only event ordering, auto-exec success wording,
// the memory tool's store/recall round trip, message-level rate
// limiting, input content filtering, and executor timeouts. Each test
// is independent of the others and builds its own Orchestrator so a
// failure in one never masks another.

func memoryTool(id string) model.ToolDefinition {
	return model.ToolDefinition{
		ID:          id,
		Name:        id,
		Description: "store and recall facts about the user across a conversation",
		Version:     "1.0.0",
		Category:    model.CategoryUtility,
		Kind:        model.KindFunction,
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{"type": "string"},
				"key":    map[string]any{"type": "string"},
				"value":  map[string]any{"type": "string"},
				"query":  map[string]any{"type": "string"},
			},
		},
		OutputSchema: map[string]any{"type": "object"},
		Execution:    model.Execution{Environment: "direct", TimeoutMs: 1000},
	}
}

func newOrchestratorWithPolicy(t *testing.T, policy security.Policy, recorder security.EventRecorder) (*Orchestrator, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	pl := planner.New(reg, planner.Weights{})
	gate := security.NewGate(policy, recorder, nil, idSeq("evt"))
	exec := executor.New(idSeq("env"))
	store := contextstore.New()
	return New(reg, pl, gate, exec, store, idSeq("id"), fixedClock(time.Now())), reg
}

// S1 — plan-only.
func TestScenario_PlanOnly(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	require.NoError(t, reg.Register(searchTool("web-search")))

	prefs := model.Preferences{AutoExecute: false, MaxToolCalls: 2, AllowedCategories: []model.Category{model.CategorySearch}}
	id := o.CreateConversation(&prefs)

	sink := &events.CollectingSink{}
	msg, err := o.ProcessMessage(context.Background(), id, "Search for React best practices", sink)
	require.NoError(t, err)

	assert.Empty(t, msg.ToolCalls, "plan-only mode must not execute any tool calls")
	assert.Contains(t, msg.Content, "web-search")

	require.Len(t, sink.Events, 3)
	wantKinds := []events.Kind{events.KindThinking, events.KindThinking, events.KindText}
	for i, k := range wantKinds {
		assert.Equalf(t, k, sink.Events[i].Kind, "event %d kind", i)
	}
}

// S2 — auto-exec success.
func TestScenario_AutoExecSuccess(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	require.NoError(t, reg.Register(searchTool("web-search")))
	o.RegisterHandler("web-search", func(ctx context.Context, params map[string]any) (any, error) {
		return map[string]any{"success": true, "results": []string{"react best practices"}}, nil
	})

	id := o.CreateConversation(nil)
	sink := &events.CollectingSink{}
	msg, err := o.ProcessMessage(context.Background(), id, "Search for React best practices", sink)
	require.NoError(t, err)

	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "web-search", msg.ToolCalls[0].ToolID)
	assert.Equal(t, model.ToolCallOK, msg.ToolCalls[0].Status)
	assert.True(t, strings.HasPrefix(msg.Content, "I've executed 1 tool(s) successfully"),
		"assistant message should start with the success template, got %q", msg.Content)

	var callIdx, resultIdx = -1, -1
	for i, e := range sink.Events {
		if e.Kind == events.KindToolCall && e.ToolName == "web-search" {
			callIdx = i
		}
		if e.Kind == events.KindToolResult && e.ToolName == "web-search" && e.Success {
			resultIdx = i
		}
	}
	require.GreaterOrEqual(t, callIdx, 0, "expected a tool_call event")
	require.GreaterOrEqual(t, resultIdx, 0, "expected a successful tool_result event")
	assert.Less(t, callIdx, resultIdx, "tool_call must precede tool_result")
}

// S3 — memory tool store/recall.
func TestScenario_MemoryStoreAndRecall(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	require.NoError(t, reg.Register(memoryTool("memory-store")))

	var lastStoredKey, lastStoredValue, lastAction string
	o.RegisterHandler("memory-store", func(ctx context.Context, params map[string]any) (any, error) {
		action, _ := params["action"].(string)
		key, _ := params["key"].(string)
		lastAction = action
		switch action {
		case "store":
			value, _ := params["value"].(string)
			lastStoredKey, lastStoredValue = key, value
			return map[string]any{"success": true, "memories": map[string]any{key: value}}, nil
		case "recall":
			if key == lastStoredKey {
				return map[string]any{"success": true, "found": true, key: lastStoredValue}, nil
			}
			return map[string]any{"success": true, "found": false}, nil
		}
		return map[string]any{"success": false}, nil
	})

	id := o.CreateConversation(nil)

	_, err := o.ProcessMessage(context.Background(), id, "My name is Alice", events.NullSink{})
	require.NoError(t, err)
	assert.Equal(t, "store", lastAction)

	conv, ok := o.GetConversation(id)
	require.True(t, ok)
	assert.Equal(t, "Alice", conv.Context["name"])

	msg, err := o.ProcessMessage(context.Background(), id, "What's my name?", events.NullSink{})
	require.NoError(t, err)
	assert.Equal(t, "recall", lastAction)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, model.ToolCallOK, msg.ToolCalls[0].Status)
}

// S4 — rate limit.
func TestScenario_RateLimit(t *testing.T) {
	policy := security.DefaultPolicy()
	policy.RateLimit = security.RateLimitConfig{WindowMs: 1000, MaxRequests: 3, MaxTokens: 10000}
	o, _ := newOrchestratorWithPolicy(t, policy, nil)

	id := o.CreateConversation(nil)

	for i := 0; i < 3; i++ {
		_, err := o.ProcessMessage(context.Background(), id, "hello", events.NullSink{})
		require.NoErrorf(t, err, "call %d within budget", i)
	}

	sink := &events.CollectingSink{}
	msg, err := o.ProcessMessage(context.Background(), id, "hello", sink)
	require.NoError(t, err, "a denied turn still completes — it yields an explanatory message, not a Go error")
	require.NotEmpty(t, sink.Events)
	assert.Equal(t, events.KindError, sink.Events[0].Kind)
	assert.Equal(t, string(rterr.RateLimited), sink.Events[0].Code)
	assert.Equal(t, events.KindText, sink.Events[len(sink.Events)-1].Kind, "error event must precede a final text event")
	assert.NotEmpty(t, msg.Content, "the denial must be persisted as an assistant message")

	conv, ok := o.GetConversation(id)
	require.True(t, ok)
	last := conv.Messages[len(conv.Messages)-1]
	assert.Equal(t, model.RoleAssistant, last.Role, "denied turn must be recorded in the transcript")
	assert.Equal(t, msg.Content, last.Content)

	time.Sleep(1100 * time.Millisecond)
	_, err = o.ProcessMessage(context.Background(), id, "hello", events.NullSink{})
	assert.NoError(t, err, "fifth call should succeed once the window elapses")
}

// S5 — content filter.
func TestScenario_ContentFilterRedactsSSN(t *testing.T) {
	buf := audit.New(audit.DefaultCapacity, nil, nil)
	o, _ := newOrchestratorWithPolicy(t, security.DefaultPolicy(), buf)

	id := o.CreateConversation(nil)
	_, err := o.ProcessMessage(context.Background(), id, "My SSN is 123-45-6789", events.NullSink{})
	require.NoError(t, err)

	conv, ok := o.GetConversation(id)
	require.True(t, ok)
	require.NotEmpty(t, conv.Messages)

	userMsg := conv.Messages[0]
	assert.NotContains(t, userMsg.Content, "123-45-6789", "raw SSN must never reach the transcript")
	assert.Contains(t, userMsg.Content, "[REDACTED_SSN]")

	secEvents := buf.Events(audit.Query{Kind: model.EventContentFilter, MinSeverity: model.SeverityHigh})
	assert.Len(t, secEvents, 1)
}

// S6 — executor timeout.
func TestScenario_ExecutorTimeout(t *testing.T) {
	o, reg := newTestOrchestrator(t)
	slow := searchTool("slow-search")
	slow.Execution = model.Execution{Environment: "sandboxed", TimeoutMs: 500}
	require.NoError(t, reg.Register(slow))
	o.RegisterHandler("slow-search", func(ctx context.Context, params map[string]any) (any, error) {
		time.Sleep(2 * time.Second)
		return map[string]any{"success": true}, nil
	})

	id := o.CreateConversation(nil)

	start := time.Now()
	msg, err := o.ProcessMessage(context.Background(), id, "search for rain in Paris", events.NullSink{})
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.Lessf(t, elapsed, 700*time.Millisecond, "turn should return well before the handler's own sleep")

	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, model.ToolCallFailed, msg.ToolCalls[0].Status)
	require.NotNil(t, msg.ToolCalls[0].Result)
	assert.Equal(t, string(rterr.ExecutionTimeout), msg.ToolCalls[0].Result.ErrorCode)

	_, err = o.ProcessMessage(context.Background(), id, "hello again", events.NullSink{})
	assert.NoError(t, err, "orchestrator should remain usable after a timeout")
}
