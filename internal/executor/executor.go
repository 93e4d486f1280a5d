// Package executor implements the Sandboxed Executor (spec.md §4.3): a
// registry of named Environments, each running Handlers under a hard
// wall-clock deadline and a polled memory ceiling, with an ordered log
// capture and a concurrency semaphore per environment.
//
// Grounded on the teacher's pkg/tool runtime invocation path (a
// handler func(ctx, params) (any, error) invoked with the tool's
// configured timeout) combined with the goroutine + context.WithTimeout
// + runtime.ReadMemStats pattern used nowhere verbatim in the teacher
// but consistent with its context-first style throughout pkg/runner —
// this is the one subsystem built on the standard library alone: no
// pack dependency offers per-goroutine memory-limited sandboxing, and
// the teacher's own isolation (hashicorp/go-plugin, a subprocess per
// tool) is a coarser unit of isolation than spec.md's per-call
// semantics require (see DESIGN.md).
package executor

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/kadirpekel/agentrt/internal/model"
	"github.com/kadirpekel/agentrt/internal/rterr"
)

// Kind names one of the four environment flavors from spec.md §4.3.
// The runtime treats them as policy presets over the same goroutine
// sandbox; none of them shells out to a real JS/Python interpreter.
type Kind string

const (
	KindDirect    Kind = "direct"
	KindWorker    Kind = "worker"
	KindSandboxed Kind = "sandboxed"
	KindIsolated  Kind = "isolated"
)

// DefaultLimits returns spec.md §4.3's defaults: 64MB, 30s, 5
// concurrent, no network, no filesystem.
func DefaultLimits() model.ResourceLimits {
	return model.ResourceLimits{
		MaxMemoryMB:             64,
		MaxExecutionTimeMs:      30000,
		MaxConcurrentExecutions: 5,
		AllowNetwork:            false,
		AllowFileSystem:         false,
	}
}

// Policy is the security policy plug-in consulted before execute
// (spec.md §4.3).
type Policy struct {
	AllowUnsafeEval       bool
	AllowExternalRequests bool
	MaxCodeLength         int
	BlockedPatterns       []string
	AllowedModules        []string
}

// LogEntry is one captured log line (spec.md §4.3).
type LogEntry struct {
	Level     string
	Message   string
	Timestamp time.Time
}

// ExecutionResult is execute's return value.
type ExecutionResult struct {
	Success        bool
	Output         any
	Error          string
	ErrorCode      rterr.Code
	Logs           []LogEntry
	ProcessingTime time.Duration
}

// Status tracks one in-flight or completed execution.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
	StatusCancelled Status = "cancelled"
)

type execution struct {
	id       string
	envID    string
	status   Status
	result   ExecutionResult
	cancel   context.CancelFunc
	mu       sync.Mutex
}

// Handler is the user-supplied work to run inside an environment. It
// receives a Logger to append ordered log entries, mirroring how
// sandboxed code would emit console output.
type Handler func(ctx context.Context, logger Logger) (any, error)

// Logger appends one log entry.
type Logger func(level, message string)

// Environment is a single-kind sandbox: a concurrency-limited pool of
// executions sharing one ResourceLimits/Policy pair.
type Environment struct {
	id      string
	kind    Kind
	limits  model.ResourceLimits
	policy  Policy
	sem     chan struct{}
	destroyed bool

	mu         sync.Mutex
	executions map[string]*execution
}

// Executor is the top-level registry of Environments (spec.md §4.3).
type Executor struct {
	mu   sync.RWMutex
	envs map[string]*Environment
	idFn func() string
}

// New builds an empty Executor. idFn mints environment/execution ids;
// pass uuid.NewString in production.
func New(idFn func() string) *Executor {
	return &Executor{envs: make(map[string]*Environment), idFn: idFn}
}

// CreateEnvironment registers a new Environment of kind with limits
// (DefaultLimits() merged in for any zero field) and policy.
func (e *Executor) CreateEnvironment(kind Kind, limits model.ResourceLimits, policy Policy) string {
	limits = mergeDefaults(limits)
	concurrency := limits.MaxConcurrentExecutions
	if concurrency <= 0 {
		concurrency = 1
	}

	env := &Environment{
		id:         e.idFn(),
		kind:       kind,
		limits:     limits,
		policy:     policy,
		sem:        make(chan struct{}, concurrency),
		executions: make(map[string]*execution),
	}

	e.mu.Lock()
	e.envs[env.id] = env
	e.mu.Unlock()
	return env.id
}

func mergeDefaults(limits model.ResourceLimits) model.ResourceLimits {
	d := DefaultLimits()
	if limits.MaxMemoryMB <= 0 {
		limits.MaxMemoryMB = d.MaxMemoryMB
	}
	if limits.MaxExecutionTimeMs <= 0 {
		limits.MaxExecutionTimeMs = d.MaxExecutionTimeMs
	}
	if limits.MaxConcurrentExecutions <= 0 {
		limits.MaxConcurrentExecutions = d.MaxConcurrentExecutions
	}
	return limits
}

// DestroyEnvironment removes an environment. Idempotent: destroying an
// already-destroyed or unknown environment is a no-op.
func (e *Executor) DestroyEnvironment(envID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if env, ok := e.envs[envID]; ok {
		env.mu.Lock()
		env.destroyed = true
		env.mu.Unlock()
		delete(e.envs, envID)
	}
}

// codeCheck validates code against envID's security policy before any
// execution runs, per spec.md §4.3. codeLength/blockedPatterns only
// apply when the caller supplies source text (js/py execution tools);
// handler-backed tools (function/api/etc.) skip this check.
func (e *Executor) codeCheck(env *Environment, code string) error {
	if code == "" {
		return nil
	}
	if env.policy.MaxCodeLength > 0 && len(code) > env.policy.MaxCodeLength {
		return rterr.Newf(rterr.PolicyViolation, "code length %d exceeds policy maximum %d", len(code), env.policy.MaxCodeLength)
	}
	for _, pattern := range env.policy.BlockedPatterns {
		if pattern != "" && containsSubstr(code, pattern) {
			return rterr.Newf(rterr.PolicyViolation, "code matches blocked pattern %q", pattern)
		}
	}
	return nil
}

func containsSubstr(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// Execute runs handler inside envID, enforcing the wall-clock deadline
// and polled memory ceiling from spec.md §4.3. code is the optional
// source text to run through the security policy's code-length/
// blocked-pattern checks; pass "" for handler-backed tools.
func (e *Executor) Execute(ctx context.Context, envID, code string, handler Handler) (string, ExecutionResult) {
	e.mu.RLock()
	env, ok := e.envs[envID]
	e.mu.RUnlock()
	if !ok {
		return "", ExecutionResult{Success: false, Error: "environment not found", ErrorCode: rterr.NotFound}
	}

	env.mu.Lock()
	if env.destroyed {
		env.mu.Unlock()
		return "", ExecutionResult{Success: false, Error: "environment destroyed", ErrorCode: rterr.NotFound}
	}
	env.mu.Unlock()

	if err := e.codeCheck(env, code); err != nil {
		return "", ExecutionResult{Success: false, Error: err.Error(), ErrorCode: rterr.PolicyViolation}
	}

	execID := e.idFn()
	execCtx, cancel := context.WithTimeout(ctx, time.Duration(env.limits.MaxExecutionTimeMs)*time.Millisecond)
	ex := &execution{id: execID, envID: envID, status: StatusRunning, cancel: cancel}

	env.mu.Lock()
	env.executions[execID] = ex
	env.mu.Unlock()

	env.sem <- struct{}{}
	defer func() { <-env.sem }()

	result := e.run(execCtx, env, handler)
	cancel()

	ex.mu.Lock()
	ex.result = result
	switch {
	case ex.status == StatusCancelled:
		// Terminate already marked this execution; keep its status.
	case result.ErrorCode == rterr.ExecutionTimeout:
		ex.status = StatusTimedOut
	case result.ErrorCode == rterr.MemoryLimitExceeded:
		ex.status = StatusFailed
	case result.Success:
		ex.status = StatusCompleted
	default:
		ex.status = StatusFailed
	}
	ex.mu.Unlock()

	return execID, result
}

func (e *Executor) run(ctx context.Context, env *Environment, handler Handler) ExecutionResult {
	start := time.Now()
	var baseline runtime.MemStats
	runtime.ReadMemStats(&baseline)
	var logs []LogEntry
	var logMu sync.Mutex
	logger := func(level, message string) {
		logMu.Lock()
		logs = append(logs, LogEntry{Level: level, Message: message, Timestamp: time.Now()})
		logMu.Unlock()
	}

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: rterr.Newf(rterr.ExecutionError, "panic in sandboxed handler: %v", r)}
			}
		}()
		v, err := handler(ctx, logger)
		done <- outcome{value: v, err: err}
	}()

	memCeiling := uint64(env.limits.MaxMemoryMB) * 1024 * 1024
	ticker := time.NewTicker(memPollInterval())
	defer ticker.Stop()

	for {
		select {
		case out := <-done:
			logMu.Lock()
			logsCopy := append([]LogEntry(nil), logs...)
			logMu.Unlock()
			if out.err != nil {
				return ExecutionResult{
					Success:        false,
					Error:          out.err.Error(),
					ErrorCode:      rterr.CodeOf(out.err),
					Logs:           logsCopy,
					ProcessingTime: time.Since(start),
				}
			}
			return ExecutionResult{Success: true, Output: out.value, Logs: logsCopy, ProcessingTime: time.Since(start)}

		case <-ctx.Done():
			logMu.Lock()
			logsCopy := append([]LogEntry(nil), logs...)
			logMu.Unlock()
			if ctx.Err() == context.Canceled {
				return ExecutionResult{
					Success:        false,
					Error:          "execution cancelled",
					ErrorCode:      rterr.Cancelled,
					Logs:           logsCopy,
					ProcessingTime: time.Since(start),
				}
			}
			return ExecutionResult{
				Success:        false,
				Error:          "execution exceeded timeout",
				ErrorCode:      rterr.ExecutionTimeout,
				Logs:           logsCopy,
				ProcessingTime: time.Since(start),
			}

		case <-ticker.C:
			if memCeiling == 0 {
				continue
			}
			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)
			if mem.Alloc > baseline.Alloc && mem.Alloc-baseline.Alloc > memCeiling {
				logMu.Lock()
				logsCopy := append([]LogEntry(nil), logs...)
				logMu.Unlock()
				return ExecutionResult{
					Success:        false,
					Error:          "execution exceeded memory ceiling",
					ErrorCode:      rterr.MemoryLimitExceeded,
					Logs:           logsCopy,
					ProcessingTime: time.Since(start),
				}
			}
		}
	}
}

func memPollInterval() time.Duration {
	return 500 * time.Millisecond
}

// Terminate cancels an in-flight execution. Idempotent.
func (e *Executor) Terminate(envID, executionID string) error {
	e.mu.RLock()
	env, ok := e.envs[envID]
	e.mu.RUnlock()
	if !ok {
		return rterr.Newf(rterr.NotFound, "environment %q not found", envID)
	}

	env.mu.Lock()
	ex, ok := env.executions[executionID]
	env.mu.Unlock()
	if !ok {
		return rterr.Newf(rterr.NotFound, "execution %q not found", executionID)
	}

	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ex.status == StatusRunning && ex.cancel != nil {
		ex.cancel()
		ex.status = StatusCancelled
	}
	return nil
}

// Status returns an execution's current status and result snapshot.
func (e *Executor) Status(envID, executionID string) (Status, ExecutionResult, error) {
	e.mu.RLock()
	env, ok := e.envs[envID]
	e.mu.RUnlock()
	if !ok {
		return "", ExecutionResult{}, rterr.Newf(rterr.NotFound, "environment %q not found", envID)
	}

	env.mu.Lock()
	ex, ok := env.executions[executionID]
	env.mu.Unlock()
	if !ok {
		return "", ExecutionResult{}, rterr.Newf(rterr.NotFound, "execution %q not found", executionID)
	}

	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.status, ex.result, nil
}

// ListExecutions returns every execution id tracked in envID.
func (e *Executor) ListExecutions(envID string) ([]string, error) {
	e.mu.RLock()
	env, ok := e.envs[envID]
	e.mu.RUnlock()
	if !ok {
		return nil, rterr.Newf(rterr.NotFound, "environment %q not found", envID)
	}

	env.mu.Lock()
	defer env.mu.Unlock()
	ids := make([]string, 0, len(env.executions))
	for id := range env.executions {
		ids = append(ids, id)
	}
	return ids, nil
}
