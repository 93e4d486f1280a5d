package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kadirpekel/agentrt/internal/events"
	"github.com/kadirpekel/agentrt/internal/executor"
	"github.com/kadirpekel/agentrt/internal/model"
	"github.com/kadirpekel/agentrt/internal/rterr"
	"github.com/kadirpekel/agentrt/internal/schema"
)

// ProcessMessage runs the full pipeline from spec.md §4.6 for one user
// message: append it to the transcript, plan, gate and execute any
// planned tool calls, then append and return the assistant's reply.
//
// ctx governs the whole turn; cancelling it stops the tool-call loop
// before its next iteration, leaving any already-started call to run
// to completion and every call after it in the cancelled state — the
// runtime's cooperative-cancellation contract (spec.md §7), chosen
// over a separate cancellation-token type since ctx.Done() already
// carries that signal through every blocking call in the pipeline.
//
// sink receives every event emitted during the turn in order; pass
// events.NullSink{} to run plan-only or test calls that don't care
// about the stream.
func (o *Orchestrator) ProcessMessage(ctx context.Context, conversationID, content string, sink events.Sink) (model.Message, error) {
	cs := o.lookup(conversationID)
	if cs == nil {
		return model.Message{}, rterr.Newf(rterr.NotFound, "conversation %q not found", conversationID)
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	turnID := o.nextTurnID()
	now := o.now()

	if err := o.gate.CheckMessageRate(conversationID, conversationID); err != nil {
		return o.failTurn(cs, conversationID, turnID, sink, err), nil
	}

	filtered, err := o.gate.FilterMessage(conversationID, conversationID, content)
	if err != nil {
		return o.failTurn(cs, conversationID, turnID, sink, err), nil
	}
	content = filtered

	userMsg := model.Message{ID: o.idFunc(), Role: model.RoleUser, Content: content, Timestamp: now}
	cs.conv.Messages = append(cs.conv.Messages, userMsg)
	cs.conv.LastActivityAt = now

	reply, err := o.runTurn(ctx, cs, conversationID, turnID, content, sink, 0)
	if err != nil {
		return model.Message{}, err
	}
	return reply, nil
}

// runTurn executes one planner invocation and its tool calls, then
// recurses when a tool result asks for a followup turn
// (model.ToolExecutionResult.Data carrying a "followupQuery" string,
// spec.md §4.6's "recursive ... loop"), for at most MaxIterations
// planner invocations in total.
func (o *Orchestrator) runTurn(ctx context.Context, cs *conversationState, conversationID, turnID, query string, sink events.Sink, iteration int) (model.Message, error) {
	send(sink, events.Thinking(conversationID, turnID, "Analyzing your request..."))

	merged := o.ctxStore.Snapshot(conversationID)
	for k, v := range cs.conv.Context {
		merged[k] = v
	}

	plan := o.planner.Plan(query, merged, cs.conv.Preferences)
	send(sink, events.Thinking(conversationID, turnID, plan.Reasoning))

	prefs := cs.conv.Preferences
	if !prefs.AutoExecute || len(plan.ToolCalls) == 0 {
		content := formatPlanSummary(plan)
		assistant := o.appendAssistant(cs, conversationID, turnID, content, nil)
		send(sink, events.Text(conversationID, turnID, assistant.Content))
		return assistant, nil
	}

	calls := plan.ToolCalls
	if prefs.MaxToolCalls > 0 && len(calls) > prefs.MaxToolCalls {
		calls = calls[:prefs.MaxToolCalls]
	}

	toolCalls := make([]model.ToolCall, 0, len(calls))
	var followupQuery string

	for i, planned := range calls {
		if ctx.Err() != nil {
			toolCalls = append(toolCalls, o.cancelRemaining(calls[i:])...)
			send(sink, events.Err(conversationID, turnID, "turn cancelled", string(rterr.Cancelled)))
			break
		}

		tc := o.executeOne(ctx, conversationID, turnID, planned, sink)
		if data, ok := resultDataMap(tc.Result); ok {
			if fq, ok := data["followupQuery"].(string); ok && fq != "" {
				followupQuery = fq
			}
			o.propagateResult(conversationID, cs, planned.ToolID, data)
		}
		toolCalls = append(toolCalls, tc)
	}

	content := summarizeToolCalls(toolCalls)
	assistant := o.appendAssistant(cs, conversationID, turnID, content, toolCalls)

	if followupQuery != "" && iteration+1 < MaxIterations {
		nextTurn := o.nextTurnID()
		return o.runTurn(ctx, cs, conversationID, nextTurn, followupQuery, sink, iteration+1)
	}

	send(sink, events.Text(conversationID, turnID, assistant.Content))
	return assistant, nil
}

func (o *Orchestrator) cancelRemaining(calls []model.PlannedToolCall) []model.ToolCall {
	out := make([]model.ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, model.ToolCall{
			ID:         o.idFunc(),
			ToolID:     c.ToolID,
			Parameters: c.Parameters,
			Status:     model.ToolCallCancelled,
			Error:      "turn cancelled before this call started",
		})
	}
	return out
}

// executeOne runs the Security Gate + tool handler + Security Gate
// pipeline for one planned call, isolating its failure from the rest
// of the turn (spec.md §7: "per-tool-call failures ... remaining calls
// still run").
func (o *Orchestrator) executeOne(ctx context.Context, conversationID, turnID string, planned model.PlannedToolCall, sink events.Sink) model.ToolCall {
	tc := model.ToolCall{
		ID:         o.idFunc(),
		ToolID:     planned.ToolID,
		Parameters: planned.Parameters,
		Status:     model.ToolCallPending,
		StartedAt:  o.now(),
	}

	principal := conversationID
	mctx := &MiddlewareContext{ConversationID: conversationID, Principal: principal, ToolID: planned.ToolID, Params: planned.Parameters}

	if err := o.runPreCall(mctx); err != nil {
		tc.Status = model.ToolCallFailed
		tc.Error = err.Error()
		tc.FinishedAt = o.now()
		send(sink, events.Err(conversationID, turnID, err.Error(), string(rterr.CodeOf(err))))
		return tc
	}
	sanitizedParams := mctx.Params
	tc.Parameters = sanitizedParams

	send(sink, events.ToolCall(conversationID, turnID, planned.ToolID, sanitizedParams))

	tool, ok := o.reg.Get(planned.ToolID)
	if !ok {
		tc.Status = model.ToolCallFailed
		tc.Error = toolErrf(planned.ToolID).Error()
		tc.FinishedAt = o.now()
		send(sink, events.ToolResult(conversationID, turnID, planned.ToolID, false, tc.Error, nil))
		return tc
	}

	validated, verr := o.validateParameters(tool, sanitizedParams)
	if verr != nil {
		tc.Status = model.ToolCallFailed
		tc.Error = verr.Error()
		tc.FinishedAt = o.now()
		send(sink, events.ToolResult(conversationID, turnID, planned.ToolID, false, tc.Error, nil))
		return tc
	}
	sanitizedParams = validated
	tc.Parameters = sanitizedParams

	o.outerMu.Lock()
	handler, hasHandler := o.handlers[planned.ToolID]
	o.outerMu.Unlock()

	tc.Status = model.ToolCallRunning
	started := time.Now()
	var raw any
	var runErr error
	if hasHandler {
		raw, runErr = o.invoke(ctx, tool, sanitizedParams, handler)
	} else {
		runErr = rterr.Newf(rterr.ToolNotFound, "no handler registered for tool %q", planned.ToolID)
	}
	elapsed := time.Since(started)

	result := normalizeResult(raw, runErr, elapsed)

	mctx.Params = sanitizedParams
	if postErr := o.runPostCall(mctx, &result); postErr != nil {
		result.Success = false
		result.Data = nil
		result.Error = postErr.Error()
	}

	tc.Result = &result
	tc.FinishedAt = o.now()
	if result.Success {
		tc.Status = model.ToolCallOK
	} else {
		tc.Status = model.ToolCallFailed
		tc.Error = result.Error
	}

	send(sink, events.ToolResult(conversationID, turnID, planned.ToolID, result.Success, result.Error, result.Metadata))
	return tc
}

// validateParameters runs a planned call's (already gate-sanitized)
// parameters through the Schema Validator against the tool's declared
// InputSchema, non-strict so planner-synthesized string values coerce
// into the types the handler expects. A tool with no object schema (or
// an unparseable one) skips validation rather than failing closed.
func (o *Orchestrator) validateParameters(tool model.ToolDefinition, params map[string]any) (map[string]any, error) {
	if len(tool.InputSchema) == 0 {
		return params, nil
	}
	sc, err := schema.FromMap(tool.InputSchema)
	if err != nil {
		return params, nil
	}

	result := schema.Validate(params, sc, schema.Options{})
	if !result.OK {
		msgs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			msgs = append(msgs, fmt.Sprintf("%s: %s", e.Path, e.Message))
		}
		return nil, rterr.Newf(rterr.ValidationFailed, "parameters for %q: %s", tool.ID, strings.Join(msgs, "; "))
	}
	coerced, ok := result.CoercedValue.(map[string]any)
	if !ok {
		return params, nil
	}
	return coerced, nil
}

// invoke runs handler either directly or through the Sandboxed
// Executor, depending on the tool's declared execution environment
// (spec.md §4.3/§4.6).
func (o *Orchestrator) invoke(ctx context.Context, tool model.ToolDefinition, params map[string]any, handler ToolHandler) (any, error) {
	env := tool.Execution.Environment
	if env == "" || env == string(executor.KindDirect) {
		timeout := tool.Execution.TimeoutMs
		if timeout <= 0 {
			timeout = 30000
		}
		callCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Millisecond)
		defer cancel()
		return handler(callCtx, params)
	}

	envID := o.environmentFor(tool)
	_, result := o.exec.Execute(ctx, envID, "", func(execCtx context.Context, logger executor.Logger) (any, error) {
		return handler(execCtx, params)
	})
	if !result.Success {
		return nil, rterr.New(result.ErrorCode, result.Error)
	}
	return result.Output, nil
}

// environmentFor lazily creates (and caches) one Executor Environment
// per tool id, sized from the tool's own ResourceLimits.
func (o *Orchestrator) environmentFor(tool model.ToolDefinition) string {
	o.outerMu.Lock()
	defer o.outerMu.Unlock()
	if o.envByTool == nil {
		o.envByTool = make(map[string]string)
	}
	if id, ok := o.envByTool[tool.ID]; ok {
		return id
	}

	limits := tool.Execution.ResourceLimits
	if tool.Execution.TimeoutMs > 0 {
		limits.MaxExecutionTimeMs = tool.Execution.TimeoutMs
	}
	id := o.exec.CreateEnvironment(executor.Kind(tool.Execution.Environment), limits, executor.Policy{})
	o.envByTool[tool.ID] = id
	return id
}

// failTurn records a turn that was denied before the user's message ever
// reached the transcript — a message-level rate limit or an unredactable
// content-filter hit — as a persisted assistant message, per spec.md §7:
// "every failed turn yields a persisted assistant message explaining the
// failure; streamed error events precede the final text event with the
// same information." The caller passes the denial err both here (where
// it becomes the error event and the message content) and doesn't
// propagate it any further — the turn completed, it just didn't do what
// was asked.
func (o *Orchestrator) failTurn(cs *conversationState, conversationID, turnID string, sink events.Sink, err error) model.Message {
	send(sink, events.Err(conversationID, turnID, err.Error(), string(rterr.CodeOf(err))))
	assistant := o.appendAssistant(cs, conversationID, turnID, err.Error(), nil)
	send(sink, events.Text(conversationID, turnID, assistant.Content))
	return assistant
}

func (o *Orchestrator) appendAssistant(cs *conversationState, conversationID, turnID, content string, toolCalls []model.ToolCall) model.Message {
	msg := model.Message{
		ID:        o.idFunc(),
		Role:      model.RoleAssistant,
		Content:   content,
		Timestamp: o.now(),
		ToolCalls: toolCalls,
	}
	cs.conv.Messages = append(cs.conv.Messages, msg)
	cs.conv.LastActivityAt = o.now()
	return msg
}

// propagateResult writes a tool's result under "<toolId>_result" and,
// when the result carries a "memories" map, merges those directly into
// the conversation's own context (spec.md §4.6 step 5).
func (o *Orchestrator) propagateResult(conversationID string, cs *conversationState, toolID string, data map[string]any) {
	o.ctxStore.Set(conversationID, toolID+"_result", data)
	if memories, ok := data["memories"].(map[string]any); ok {
		for k, v := range memories {
			cs.conv.Context[k] = v
		}
	}
}

func resultDataMap(result *model.ToolExecutionResult) (map[string]any, bool) {
	if result == nil || result.Data == nil {
		return nil, false
	}
	m, ok := result.Data.(map[string]any)
	return m, ok
}

func normalizeResult(raw any, err error, elapsed time.Duration) model.ToolExecutionResult {
	if err != nil {
		return model.ToolExecutionResult{Success: false, Error: err.Error(), ErrorCode: string(rterr.CodeOf(err)), ProcessingTime: elapsed}
	}
	if res, ok := raw.(model.ToolExecutionResult); ok {
		if res.ProcessingTime == 0 {
			res.ProcessingTime = elapsed
		}
		return res
	}
	if m, ok := raw.(map[string]any); ok {
		success := true
		if sv, ok := m["success"].(bool); ok {
			success = sv
		}
		errMsg, _ := m["error"].(string)
		return model.ToolExecutionResult{Success: success, Data: m, Error: errMsg, ProcessingTime: elapsed}
	}
	return model.ToolExecutionResult{Success: true, Data: raw, ProcessingTime: elapsed}
}

// estimateMemoryMB always reports 0: no per-call memory sample reaches
// the post-call check. ResourceMonitor keeps the peak, so a 0 sample
// never raises a conversation's MemoryMB.
func estimateMemoryMB(any) int {
	return 0
}

func formatPlanSummary(plan model.ExecutionPlan) string {
	if len(plan.ToolCalls) == 0 {
		return "I don't have a tool call planned for that: " + plan.Reasoning
	}
	names := make([]string, 0, len(plan.ToolCalls))
	for _, c := range plan.ToolCalls {
		names = append(names, c.ToolID)
	}
	return fmt.Sprintf("Here's my plan (confidence %.2f): %s. Reasoning: %s", plan.Confidence, strings.Join(names, ", "), plan.Reasoning)
}

// summarizeToolCalls formats the assistant-facing summary of a turn's
// executed tool calls (spec.md §4.6 step 6, "template in §6"): leads
// with how many succeeded, since that's the common case, then appends
// failure/cancellation counts only when present.
func summarizeToolCalls(calls []model.ToolCall) string {
	if len(calls) == 0 {
		return "No tool calls were executed."
	}
	var ok, failed, cancelled []string
	for _, c := range calls {
		switch c.Status {
		case model.ToolCallOK:
			ok = append(ok, c.ToolID)
		case model.ToolCallFailed:
			failed = append(failed, c.ToolID)
		case model.ToolCallCancelled:
			cancelled = append(cancelled, c.ToolID)
		}
	}

	parts := []string{fmt.Sprintf("I've executed %d tool(s) successfully", len(ok))}
	if len(ok) > 0 {
		parts[0] += ": " + strings.Join(ok, ", ")
	}
	if len(failed) > 0 {
		parts = append(parts, fmt.Sprintf("%d failed: %s", len(failed), strings.Join(failed, ", ")))
	}
	if len(cancelled) > 0 {
		parts = append(parts, fmt.Sprintf("%d cancelled: %s", len(cancelled), strings.Join(cancelled, ", ")))
	}
	return strings.Join(parts, "; ")
}

func send(sink events.Sink, e events.Event) {
	if sink == nil {
		return
	}
	_ = sink.Send(e)
}
