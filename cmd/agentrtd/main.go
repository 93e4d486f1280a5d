// Command agentrtd is a thin demo binary for the runtime: it wires a
// default tool set, an optional YAML security/planner config, and a
// line-oriented REPL around processMessage. All real logic lives in
// the internal/ packages; this binary only does wiring, matching the
// way the teacher's cmd/hector wires pkg/runner.Runner around its CLI.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

// CLI defines the command-line interface.
type CLI struct {
	Chat ChatCmd `cmd:"" default:"1" help:"Start an interactive chat session."`

	Config   string `short:"c" help:"Path to a runtime config file (security policy, planner weights)." type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
	MCP      string `name:"mcp" help:"Command to launch a stdio MCP server whose tools are imported alongside the built-ins."`
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("agentrtd"),
		kong.Description("Agentic tool-execution runtime demo"),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
