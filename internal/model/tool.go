// Package model holds the data types shared across the runtime: tool
// definitions, conversations, messages, tool calls, execution plans,
// intents, and security events. Types here carry no behavior beyond
// small, pure helpers — the owning components (registry, orchestrator,
// planner, audit) hold the mutation logic.
package model

import "time"

// Category classifies a tool's general purpose.
type Category string

const (
	CategoryCore        Category = "core"
	CategoryIntegration Category = "integration"
	CategoryExecution   Category = "execution"
	CategoryData        Category = "data"
	CategorySearch      Category = "search"
	CategoryUtility     Category = "utility"
)

// Kind is the tagged-union discriminant for a tool's implementation
// shape (spec.md §9 REDESIGN FLAGS: ToolKind replaces duck typing).
type Kind string

const (
	KindFunction    Kind = "function"
	KindAPI         Kind = "api"
	KindKnowledge   Kind = "knowledge"
	KindAI          Kind = "ai"
	KindWebSearch   Kind = "web_search"
	KindJSExec      Kind = "js_execution"
	KindPyExec      Kind = "py_execution"
	KindMCPServer   Kind = "mcp_server"
	KindFileSystem  Kind = "file_system"
	KindDatabase    Kind = "database"
	KindWorkflow    Kind = "workflow"
)

// Permissions describes the capability surface a tool needs.
type Permissions struct {
	Network      bool `json:"network"`
	FileSystem   bool `json:"fileSystem"`
	RequiresAuth bool `json:"requiresAuth"`
}

// ResourceLimits bounds a single tool's sandboxed execution.
type ResourceLimits struct {
	MaxMemoryMB             int  `json:"maxMemoryMB,omitempty"`
	MaxExecutionTimeMs      int  `json:"maxExecutionTimeMs,omitempty"`
	MaxConcurrentExecutions int  `json:"maxConcurrentExecutions,omitempty"`
	AllowNetwork            bool `json:"allowNetwork,omitempty"`
	AllowFileSystem         bool `json:"allowFileSystem,omitempty"`
}

// Execution describes how a tool is run.
type Execution struct {
	Environment    string         `json:"environment,omitempty"` // direct|worker|sandboxed|isolated
	TimeoutMs      int            `json:"timeoutMs"`
	ResourceLimits ResourceLimits `json:"resourceLimits,omitempty"`
}

// ToolDefinition is the immutable record a tool is registered with.
// Once registered it is never mutated; a changed definition requires
// unregister + register.
type ToolDefinition struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Version      string         `json:"version"`
	Category     Category       `json:"category"`
	Kind         Kind           `json:"type"`
	InputSchema  map[string]any `json:"inputSchema"`
	OutputSchema map[string]any `json:"outputSchema"`
	Permissions  Permissions    `json:"permissions"`
	Execution    Execution      `json:"execution"`
	Tags         []string       `json:"tags,omitempty"`
	Deprecated   bool           `json:"deprecated,omitempty"`
	Experimental bool           `json:"experimental,omitempty"`
}

// ToolExecutionResult is the canonical, normalised shape every tool
// invocation produces once the orchestrator has interpreted the
// handler's raw return value (spec.md §4.6 step 5, §6).
type ToolExecutionResult struct {
	Success        bool           `json:"success"`
	Data           any            `json:"data,omitempty"`
	Error          string         `json:"error,omitempty"`
	ErrorCode      string         `json:"errorCode,omitempty"`
	ProcessingTime time.Duration  `json:"processingTime"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}
