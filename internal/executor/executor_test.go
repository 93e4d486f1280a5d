package executor

import (
	"context"
	"testing"
	"time"

	"github.com/kadirpekel/agentrt/internal/model"
	"github.com/kadirpekel/agentrt/internal/rterr"
)

func newTestExecutor() *Executor {
	counter := 0
	return New(func() string {
		counter++
		return "id"
	})
}

func TestExecutor_SuccessfulExecution(t *testing.T) {
	ex := newTestExecutor()
	envID := ex.CreateEnvironment(KindDirect, model.ResourceLimits{MaxExecutionTimeMs: 1000}, Policy{})

	_, result := ex.Execute(context.Background(), envID, "", func(ctx context.Context, logger Logger) (any, error) {
		logger("info", "working")
		return "done", nil
	})

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Output != "done" {
		t.Fatalf("expected output 'done', got %v", result.Output)
	}
	if len(result.Logs) != 1 || result.Logs[0].Message != "working" {
		t.Fatalf("expected one captured log entry, got %+v", result.Logs)
	}
}

func TestExecutor_TimeoutExceeded(t *testing.T) {
	ex := newTestExecutor()
	envID := ex.CreateEnvironment(KindDirect, model.ResourceLimits{MaxExecutionTimeMs: 30}, Policy{})

	_, result := ex.Execute(context.Background(), envID, "", func(ctx context.Context, logger Logger) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	if result.Success {
		t.Fatalf("expected timeout failure")
	}
	if result.ErrorCode != rterr.ExecutionTimeout {
		t.Fatalf("expected EXECUTION_TIMEOUT, got %s", result.ErrorCode)
	}
}

func TestExecutor_HandlerErrorYieldsExecutionError(t *testing.T) {
	ex := newTestExecutor()
	envID := ex.CreateEnvironment(KindDirect, model.ResourceLimits{MaxExecutionTimeMs: 1000}, Policy{})

	_, result := ex.Execute(context.Background(), envID, "", func(ctx context.Context, logger Logger) (any, error) {
		return nil, rterr.New(rterr.ExecutionError, "boom")
	})

	if result.Success {
		t.Fatalf("expected failure")
	}
	if result.ErrorCode != rterr.ExecutionError {
		t.Fatalf("expected EXECUTION_ERROR, got %s", result.ErrorCode)
	}
}

func TestExecutor_PolicyBlocksCodeLength(t *testing.T) {
	ex := newTestExecutor()
	envID := ex.CreateEnvironment(KindSandboxed, model.ResourceLimits{MaxExecutionTimeMs: 1000}, Policy{MaxCodeLength: 5})

	_, result := ex.Execute(context.Background(), envID, "way too long source", func(ctx context.Context, logger Logger) (any, error) {
		return "should not run", nil
	})

	if result.Success {
		t.Fatalf("expected policy violation before execution")
	}
	if result.ErrorCode != rterr.PolicyViolation {
		t.Fatalf("expected POLICY_VIOLATION, got %s", result.ErrorCode)
	}
}

func TestExecutor_PolicyBlocksPattern(t *testing.T) {
	ex := newTestExecutor()
	envID := ex.CreateEnvironment(KindIsolated, model.ResourceLimits{MaxExecutionTimeMs: 1000}, Policy{BlockedPatterns: []string{"rm -rf"}})

	_, result := ex.Execute(context.Background(), envID, "rm -rf /", func(ctx context.Context, logger Logger) (any, error) {
		return nil, nil
	})
	if result.ErrorCode != rterr.PolicyViolation {
		t.Fatalf("expected POLICY_VIOLATION, got %s", result.ErrorCode)
	}
}

func TestExecutor_DestroyedEnvironmentReturnsNotFound(t *testing.T) {
	ex := newTestExecutor()
	envID := ex.CreateEnvironment(KindDirect, model.ResourceLimits{}, Policy{})
	ex.DestroyEnvironment(envID)

	_, result := ex.Execute(context.Background(), envID, "", func(ctx context.Context, logger Logger) (any, error) {
		return nil, nil
	})
	if result.ErrorCode != rterr.NotFound {
		t.Fatalf("expected NOT_FOUND on a destroyed environment, got %s", result.ErrorCode)
	}

	// Idempotent: destroying again is a no-op, not an error.
	ex.DestroyEnvironment(envID)
}

func TestExecutor_TerminateIsIdempotent(t *testing.T) {
	ex := newTestExecutor()
	envID := ex.CreateEnvironment(KindDirect, model.ResourceLimits{MaxExecutionTimeMs: 2000}, Policy{})

	started := make(chan struct{})
	execDone := make(chan struct{})
	var execID string
	go func() {
		execID, _ = ex.Execute(context.Background(), envID, "", func(ctx context.Context, logger Logger) (any, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		})
		close(execDone)
	}()

	<-started
	time.Sleep(10 * time.Millisecond)

	ids, err := ex.ListExecutions(envID)
	if err != nil || len(ids) == 0 {
		t.Fatalf("expected at least one tracked execution, got %v, err=%v", ids, err)
	}

	if err := ex.Terminate(envID, ids[0]); err != nil {
		t.Fatalf("unexpected terminate error: %v", err)
	}
	if err := ex.Terminate(envID, ids[0]); err != nil {
		t.Fatalf("expected idempotent terminate, got %v", err)
	}

	<-execDone
	_ = execID
}

func TestExecutor_ConcurrencyLimitSerializesExcessCalls(t *testing.T) {
	ex := newTestExecutor()
	envID := ex.CreateEnvironment(KindWorker, model.ResourceLimits{MaxExecutionTimeMs: 2000, MaxConcurrentExecutions: 1}, Policy{})

	release := make(chan struct{})
	firstStarted := make(chan struct{})
	go ex.Execute(context.Background(), envID, "", func(ctx context.Context, logger Logger) (any, error) {
		close(firstStarted)
		<-release
		return "first", nil
	})
	<-firstStarted

	secondStarted := make(chan struct{})
	go func() {
		ex.Execute(context.Background(), envID, "", func(ctx context.Context, logger Logger) (any, error) {
			close(secondStarted)
			return "second", nil
		})
	}()

	select {
	case <-secondStarted:
		t.Fatalf("expected second execution to wait for the semaphore")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	<-secondStarted
}
