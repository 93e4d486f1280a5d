package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/kadirpekel/agentrt/internal/audit"
	"github.com/kadirpekel/agentrt/internal/contextstore"
	"github.com/kadirpekel/agentrt/internal/executor"
	"github.com/kadirpekel/agentrt/internal/mcpadapter"
	"github.com/kadirpekel/agentrt/internal/metrics"
	"github.com/kadirpekel/agentrt/internal/model"
	"github.com/kadirpekel/agentrt/internal/orchestrator"
	"github.com/kadirpekel/agentrt/internal/planner"
	"github.com/kadirpekel/agentrt/internal/registry"
	"github.com/kadirpekel/agentrt/internal/rtconfig"
	"github.com/kadirpekel/agentrt/internal/rtlog"
	"github.com/kadirpekel/agentrt/internal/security"
)

// runtime bundles every component cmd/agentrtd wires together, kept
// around only so ChatCmd can reach the orchestrator and close any MCP
// connections on exit.
type runtime struct {
	orch       *orchestrator.Orchestrator
	reg        *registry.Registry
	rec        *metrics.Recorder
	mcpClients []*mcpadapter.Client
}

// buildRuntime assembles the runtime from a config path (may be empty)
// and an optional MCP server command, the way the teacher's ServeCmd
// assembles a pkg/runtime.Runtime from CLI flags.
func buildRuntime(ctx context.Context, configPath, mcpCommand, logLevel string) (*runtime, error) {
	rtlog.Init(rtlog.ParseLevel(logLevel), os.Stderr)

	cfg := rtconfig.Default()
	if configPath != "" {
		loaded, err := rtconfig.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	rec := metrics.New()

	var seq uint64
	idFunc := func() string {
		return uuid.NewString()
	}
	auditIDFunc := func() string {
		n := atomic.AddUint64(&seq, 1)
		return fmt.Sprintf("evt-%d", n)
	}

	buf := audit.New(audit.DefaultCapacity, rec, func(e model.SecurityEvent) {
		slog.Warn("security event", "kind", e.Kind, "severity", e.Severity, "principal", e.Principal)
	})

	gate := security.NewGate(cfg.Policy, buf, rec, auditIDFunc)
	if len(cfg.FilterPatterns) > 0 {
		gate.SetFilterPatterns(cfg.FilterPatterns)
	}

	reg := registry.New()
	if err := registerBuiltinTools(reg); err != nil {
		return nil, fmt.Errorf("registering built-in tools: %w", err)
	}

	exec := executor.New(idFunc)
	ctxStore := contextstore.New()
	plan := planner.New(reg, cfg.PlannerWeights)

	orch := orchestrator.New(reg, plan, gate, exec, ctxStore, idFunc, nil)
	registerBuiltinHandlers(orch)

	rt := &runtime{orch: orch, reg: reg, rec: rec}

	if mcpCommand != "" {
		client, err := mcpadapter.Connect(ctx, mcpadapter.StdioConfig{Command: mcpCommand})
		if err != nil {
			return nil, fmt.Errorf("connecting to MCP server %q: %w", mcpCommand, err)
		}
		defs, handlers, err := client.DiscoverTools(ctx, nil)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("discovering MCP tools: %w", err)
		}
		for _, def := range defs {
			if err := reg.Register(def); err != nil {
				slog.Warn("skipping MCP tool", "tool", def.ID, "error", err)
				continue
			}
			orch.RegisterHandler(def.ID, orchestrator.ToolHandler(handlers[def.ID]))
		}
		rt.mcpClients = append(rt.mcpClients, client)
	}

	syncRegistryMetrics(reg, rec)

	return rt, nil
}

// Close releases every MCP connection opened for this runtime.
func (rt *runtime) Close() {
	for _, c := range rt.mcpClients {
		_ = c.Close()
	}
}

func syncRegistryMetrics(reg *registry.Registry, rec *metrics.Recorder) {
	stats := reg.Stats()
	for category, n := range stats.TotalByCategory {
		rec.SetToolCategoryCount(string(category), n)
	}
	for kind, n := range stats.TotalByKind {
		rec.SetToolKindCount(string(kind), n)
	}
	rec.SetDeprecatedCount(stats.Deprecated)
	rec.SetExperimentalCount(stats.Experimental)
}
