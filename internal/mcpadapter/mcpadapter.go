// Package mcpadapter bridges an external MCP (Model Context Protocol)
// server into the runtime's Tool Registry: it lists the server's tools
// once at connect time and wraps each one in a model.ToolDefinition
// of kind mcp_server plus a HandlerFunc that proxies a call over the
// MCP session.
//
// Grounded on the teacher's pkg/tool/mcptoolset/mcptoolset.go: lazy
// stdio connection via mark3labs/mcp-go, initialize handshake, list
// tools once, wrap each into a caller-facing tool that forwards
// Call/CallTool and collapses the response's text content into a
// result map. This adapter only implements the stdio transport (the
// teacher's sse/streamable-http paths go through its own httpclient
// package, which isn't part of this runtime's dependency surface).
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kadirpekel/agentrt/internal/model"
	"github.com/kadirpekel/agentrt/internal/rterr"
)

// HandlerFunc matches orchestrator.ToolHandler's signature so a
// discovered tool's handler can be registered directly with an
// Orchestrator without this package importing it.
type HandlerFunc func(ctx context.Context, params map[string]any) (any, error)

// StdioConfig configures a subprocess MCP server connection.
type StdioConfig struct {
	Command string
	Args    []string
	Env     map[string]string
}

// Client wraps one connected MCP session.
type Client struct {
	mcp *client.Client
}

// Connect starts the MCP server subprocess, performs the initialize
// handshake, and returns a connected Client.
func Connect(ctx context.Context, cfg StdioConfig) (*Client, error) {
	mcpClient, err := client.NewStdioMCPClient(cfg.Command, envSlice(cfg.Env), cfg.Args...)
	if err != nil {
		return nil, rterr.Wrap(rterr.ExecutionError, "failed to create MCP client", err)
	}
	if err := mcpClient.Start(ctx); err != nil {
		return nil, rterr.Wrap(rterr.ExecutionError, "failed to start MCP client", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "agentrtd", Version: "0.1.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return nil, rterr.Wrap(rterr.ExecutionError, "failed to initialize MCP session", err)
	}

	return &Client{mcp: mcpClient}, nil
}

// Close releases the underlying subprocess/connection.
func (c *Client) Close() error {
	return c.mcp.Close()
}

// DiscoverTools lists every tool the connected server exposes and
// returns a ToolDefinition plus a bound HandlerFunc for each. filter,
// if non-empty, restricts the result to those named tools (spec.md
// §4.2's import path for externally-hosted tools).
func (c *Client) DiscoverTools(ctx context.Context, filter []string) ([]model.ToolDefinition, map[string]HandlerFunc, error) {
	var allow map[string]bool
	if len(filter) > 0 {
		allow = make(map[string]bool, len(filter))
		for _, name := range filter {
			allow[name] = true
		}
	}

	resp, err := c.mcp.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, nil, rterr.Wrap(rterr.ExecutionError, "failed to list MCP tools", err)
	}

	var defs []model.ToolDefinition
	handlers := make(map[string]HandlerFunc, len(resp.Tools))
	for _, t := range resp.Tools {
		if allow != nil && !allow[t.Name] {
			continue
		}
		schema := convertSchema(t.InputSchema)
		defs = append(defs, model.ToolDefinition{
			ID:          t.Name,
			Name:        t.Name,
			Description: t.Description,
			Version:     "1.0.0",
			Category:    model.CategoryIntegration,
			Kind:        model.KindMCPServer,
			InputSchema: schema,
			OutputSchema: map[string]any{
				"type": "object",
			},
			Execution: model.Execution{Environment: "direct", TimeoutMs: 30000},
		})
		handlers[t.Name] = c.callHandler(t.Name)
	}
	return defs, handlers, nil
}

func (c *Client) callHandler(toolName string) HandlerFunc {
	return func(ctx context.Context, params map[string]any) (any, error) {
		req := mcp.CallToolRequest{}
		req.Params.Name = toolName
		req.Params.Arguments = params

		resp, err := c.mcp.CallTool(ctx, req)
		if err != nil {
			return nil, rterr.Wrap(rterr.ToolError, fmt.Sprintf("MCP call to %q failed", toolName), err)
		}
		return parseCallResult(resp), nil
	}
}

// parseCallResult collapses an MCP CallToolResult's text content into
// the runtime's result-map shape, matching the teacher's
// parseToolResponse: single text block -> "result", multiple -> "results".
func parseCallResult(resp *mcp.CallToolResult) map[string]any {
	out := map[string]any{"success": !resp.IsError}

	var texts []string
	for _, content := range resp.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}

	if resp.IsError {
		if len(texts) > 0 {
			out["error"] = texts[0]
		} else {
			out["error"] = "unknown MCP error"
		}
		return out
	}

	switch len(texts) {
	case 0:
	case 1:
		out["result"] = texts[0]
	default:
		out["results"] = texts
	}
	return out
}

// convertSchema round-trips schema through JSON into a plain map —
// the teacher's approach (marshal then unmarshal) rather than reading
// mcp.ToolInputSchema's fields directly, so a wire-shape change in the
// mcp-go library doesn't require touching this adapter.
func convertSchema(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	return out
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
