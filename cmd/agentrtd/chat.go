package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kadirpekel/agentrt/internal/events"
)

// ChatCmd starts an interactive REPL over one conversation, printing
// every event as it streams in — mirroring the teacher's
// startDirectChat loop (cmd/hector/chat_direct.go), generalized from
// an LLM chat turn to a plan-then-execute turn.
type ChatCmd struct{}

func (c *ChatCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	rt, err := buildRuntime(ctx, cli.Config, cli.MCP, cli.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to start runtime: %w", err)
	}
	defer rt.Close()

	convID := rt.orch.CreateConversation(nil)

	reader := bufio.NewReader(os.Stdin)
	fmt.Println("agentrtd ready. Type a message, or /quit to exit.")

	for {
		fmt.Print("You: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			fmt.Println("goodbye")
			return nil
		}

		sink := events.SinkFunc(func(e events.Event) error {
			printEvent(e)
			return nil
		})

		msg, err := rt.orch.ProcessMessage(ctx, convID, line, sink)
		if err != nil {
			fmt.Printf("error: %v\n\n", err)
			continue
		}
		fmt.Printf("\nagent: %s\n\n", msg.Content)
	}
}

func printEvent(e events.Event) {
	switch e.Kind {
	case events.KindThinking:
		fmt.Printf("  [thinking] %s\n", e.Content)
	case events.KindToolCall:
		fmt.Printf("  [tool_call] %s %v\n", e.ToolName, e.Parameters)
	case events.KindToolResult:
		status := "ok"
		if !e.Success {
			status = "failed"
		}
		fmt.Printf("  [tool_result] %s %s: %s\n", e.ToolName, status, e.Content)
	case events.KindError:
		fmt.Printf("  [error] %s (%s)\n", e.Content, e.Code)
	}
}
