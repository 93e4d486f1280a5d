// Package orchestrator implements the Conversation Orchestrator
// (spec.md §4.6): the per-conversation state store and the
// processMessage pipeline that ties the Planner, Security Gate,
// Sandboxed Executor, Context Store, and Event Stream together.
//
// Grounded on the teacher's pkg/session in-memory service (outer map
// lookup lock, per-session inner state) for the conversation store,
// and pkg/runner's turn loop (append message, run reasoning, stream
// events, append assistant reply) for the processMessage pipeline
// shape — generalized from an LLM reasoning loop to the spec's
// plan-then-execute pipeline.
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kadirpekel/agentrt/internal/contextstore"
	"github.com/kadirpekel/agentrt/internal/executor"
	"github.com/kadirpekel/agentrt/internal/model"
	"github.com/kadirpekel/agentrt/internal/planner"
	"github.com/kadirpekel/agentrt/internal/registry"
	"github.com/kadirpekel/agentrt/internal/rterr"
	"github.com/kadirpekel/agentrt/internal/security"
)

// MaxIterations is the hard ceiling on planner invocations within a
// single processMessage call, counting the first one and every
// followup (spec.md §4.6).
const MaxIterations = 5

// ToolHandler is what a registered tool actually runs. Matches the
// Tool handler contract of spec.md §6: it receives the planned
// parameters and returns either a raw value or an error; the
// orchestrator normalises the result into a ToolExecutionResult.
type ToolHandler func(ctx context.Context, params map[string]any) (any, error)

// conversationState is one conversation's mutable record plus its own
// lock — acquired for the duration of a single pipeline run so two
// turns on the same conversation never interleave (spec.md §5).
type conversationState struct {
	mu   sync.Mutex
	conv model.Conversation
}

// Orchestrator is the Conversation Orchestrator.
type Orchestrator struct {
	outerMu sync.RWMutex
	convs   map[string]*conversationState

	reg      *registry.Registry
	planner  *planner.Planner
	gate     *security.Gate
	exec     *executor.Executor
	ctxStore *contextstore.Store
	handlers map[string]ToolHandler

	// middleware is the ordered PreCall/PostCall chain executeOne runs
	// every planned tool call through (spec.md §4.6, §9 REDESIGN FLAGS).
	// New installs the Security Gate as its first (and, by the reverse
	// PostCall order, also outermost-on-the-way-out) entry.
	middleware []Middleware

	// envByTool caches one Executor Environment id per tool, created
	// lazily on first sandboxed invocation. Guarded by outerMu, same as
	// handlers.
	envByTool map[string]string

	idFunc func() string
	now    func() time.Time
}

// New builds an Orchestrator over the given components. idFunc mints
// conversation/message/toolCall ids; now returns the current time
// (time.Now in production, a fixed clock in tests).
func New(reg *registry.Registry, plan *planner.Planner, gate *security.Gate, exec *executor.Executor, ctxStore *contextstore.Store, idFunc func() string, now func() time.Time) *Orchestrator {
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		convs:      make(map[string]*conversationState),
		reg:        reg,
		planner:    plan,
		gate:       gate,
		exec:       exec,
		ctxStore:   ctxStore,
		handlers:   make(map[string]ToolHandler),
		envByTool:  make(map[string]string),
		middleware: []Middleware{gateMiddleware(gate)},
		idFunc:     idFunc,
		now:        now,
	}
}

// RegisterHandler binds a ToolHandler to a tool id. The tool must
// already exist in the Registry; handlers are looked up by id at call
// time, not copied into the ToolDefinition.
func (o *Orchestrator) RegisterHandler(toolID string, handler ToolHandler) {
	o.outerMu.Lock()
	defer o.outerMu.Unlock()
	o.handlers[toolID] = handler
}

// CreateConversation applies the defaults from spec.md §4.6, or the
// caller's own Preferences verbatim when partial is non-nil. A full
// struct rather than a merge: Preferences.AutoExecute is a plain bool,
// so there is no zero value that could mean "leave this field alone"
// versus "explicitly turn off" — a caller who wants defaults with one
// field changed should start from model.DefaultPreferences() and
// modify it before calling CreateConversation.
func (o *Orchestrator) CreateConversation(partial *model.Preferences) string {
	prefs := model.DefaultPreferences()
	if partial != nil {
		prefs = *partial
	}

	id := o.idFunc()
	now := o.now()
	cs := &conversationState{
		conv: model.Conversation{
			ID:             id,
			Preferences:    prefs,
			Context:        map[string]any{},
			CreatedAt:      now,
			LastActivityAt: now,
		},
	}

	o.outerMu.Lock()
	o.convs[id] = cs
	o.outerMu.Unlock()
	return id
}

func mergePreferences(base, partial model.Preferences) model.Preferences {
	if partial.AutoExecute {
		base.AutoExecute = partial.AutoExecute
	}
	if partial.MaxToolCalls > 0 {
		base.MaxToolCalls = partial.MaxToolCalls
	}
	if len(partial.AllowedCategories) > 0 {
		base.AllowedCategories = partial.AllowedCategories
	}
	if partial.Verbosity != "" {
		base.Verbosity = partial.Verbosity
	}
	if len(partial.PreferredTools) > 0 {
		base.PreferredTools = partial.PreferredTools
	}
	if partial.SafetyLevel != "" {
		base.SafetyLevel = partial.SafetyLevel
	}
	return base
}

// GetConversation returns a snapshot of a conversation's state.
func (o *Orchestrator) GetConversation(id string) (model.Conversation, bool) {
	cs := o.lookup(id)
	if cs == nil {
		return model.Conversation{}, false
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cloneConversation(cs.conv), true
}

// ListConversations returns every known conversation id, sorted for
// determinism.
func (o *Orchestrator) ListConversations() []string {
	o.outerMu.RLock()
	defer o.outerMu.RUnlock()
	ids := make([]string, 0, len(o.convs))
	for id := range o.convs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DeleteConversation removes a conversation and its associated context.
func (o *Orchestrator) DeleteConversation(id string) bool {
	o.outerMu.Lock()
	_, existed := o.convs[id]
	delete(o.convs, id)
	o.outerMu.Unlock()
	if existed {
		o.ctxStore.Delete(id)
	}
	return existed
}

// UpdatePreferences merges partial into the conversation's preferences.
func (o *Orchestrator) UpdatePreferences(id string, partial model.Preferences) bool {
	cs := o.lookup(id)
	if cs == nil {
		return false
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.conv.Preferences = mergePreferences(cs.conv.Preferences, partial)
	return true
}

// lookup acquires the outer lock only long enough to fetch the
// per-conversation state pointer (spec.md §5: "outer lookup lock held
// only to obtain the inner lock").
func (o *Orchestrator) lookup(id string) *conversationState {
	o.outerMu.RLock()
	defer o.outerMu.RUnlock()
	return o.convs[id]
}

func cloneConversation(c model.Conversation) model.Conversation {
	out := c
	out.Messages = append([]model.Message(nil), c.Messages...)
	out.ActiveTools = append([]string(nil), c.ActiveTools...)
	ctxCopy := make(map[string]any, len(c.Context))
	for k, v := range c.Context {
		ctxCopy[k] = v
	}
	out.Context = ctxCopy
	return out
}

func (o *Orchestrator) nextTurnID() string {
	return o.idFunc()
}

// toolErrf formats a not-found error for a missing tool id.
func toolErrf(toolID string) error {
	return rterr.Newf(rterr.ToolNotFound, "tool %q not found in registry", toolID)
}
