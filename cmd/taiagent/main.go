// taiagent is a tool-calling chat agent for the terminal: a conversation loop
// that lets the model call search, web and clock tools until it can answer,
// plus a task runner that plans a request into steps and retries each step.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	// Provider packages register their client factories from init.
	_ "github.com/taiagent/taiagent/internal/groq"
	_ "github.com/taiagent/taiagent/internal/llm"
	_ "github.com/taiagent/taiagent/internal/ollama"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
