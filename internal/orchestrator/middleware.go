package orchestrator

import (
	"github.com/kadirpekel/agentrt/internal/model"
	"github.com/kadirpekel/agentrt/internal/security"
)

// MiddlewareContext carries the per-call state a Middleware's PreCall may
// inspect or rewrite, and the identity a PostCall needs to re-derive its
// own bookkeeping (spec.md §4.6).
type MiddlewareContext struct {
	ConversationID string
	Principal      string
	ToolID         string
	Params         map[string]any
}

// Middleware is one entry in the orchestrator's tool-call chain (spec.md
// §9 REDESIGN FLAGS: "express as an explicit middleware chain object —
// ordered list of {preCall(ctx)->ctx, postCall(ctx,result)->result}
// handlers"). PreCall runs in registration order before the tool handler
// and may rewrite ctx.Params; PostCall runs in reverse registration order
// after it, onion-style — the middleware that ran first on the way in
// runs last on the way out, mirroring the Predicate combinators in the
// teacher's pkg/tool/tool.go (Combine/Or/Not) generalized from boolean
// composition to a request/response pipeline.
type Middleware struct {
	Name     string
	PreCall  func(ctx *MiddlewareContext) (map[string]any, error)
	PostCall func(ctx *MiddlewareContext, result *model.ToolExecutionResult) (any, error)
}

// gateMiddleware installs the Security Gate's pre/post checks as a single
// Middleware entry — the only one the orchestrator wires by default, but
// an ordinary one: nothing in runPreCall/runPostCall knows it's "the
// gate" rather than any other handler.
func gateMiddleware(gate *security.Gate) Middleware {
	return Middleware{
		Name: "security-gate",
		PreCall: func(ctx *MiddlewareContext) (map[string]any, error) {
			return gate.PreCallCheck(ctx.ConversationID, ctx.Principal, ctx.ToolID, ctx.Params)
		},
		PostCall: func(ctx *MiddlewareContext, result *model.ToolExecutionResult) (any, error) {
			return gate.PostCallCheck(ctx.ConversationID, ctx.Principal, ctx.ToolID, result.Data, result.ProcessingTime.Milliseconds(), estimateMemoryMB(result.Data))
		},
	}
}

// runPreCall threads ctx.Params through every middleware's PreCall in
// registration order, stopping at the first error — the call is denied
// outright and no later middleware (or the tool itself) ever sees it.
func (o *Orchestrator) runPreCall(ctx *MiddlewareContext) error {
	for _, mw := range o.middleware {
		if mw.PreCall == nil {
			continue
		}
		params, err := mw.PreCall(ctx)
		if err != nil {
			return err
		}
		ctx.Params = params
	}
	return nil
}

// runPostCall threads result.Data through every middleware's PostCall in
// reverse registration order. A PostCall error replaces neither Params
// nor Data itself — the caller decides how to fold the failure into the
// result (executeOne marks the call failed and drops the data).
func (o *Orchestrator) runPostCall(ctx *MiddlewareContext, result *model.ToolExecutionResult) error {
	for i := len(o.middleware) - 1; i >= 0; i-- {
		mw := o.middleware[i]
		if mw.PostCall == nil {
			continue
		}
		data, err := mw.PostCall(ctx, result)
		if err != nil {
			return err
		}
		result.Data = data
	}
	return nil
}
