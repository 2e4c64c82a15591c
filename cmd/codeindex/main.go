// Command codeindex indexes source trees into a vector database and serves
// semantic and hybrid code search over them.
//
// Usage:
//
//	codeindex index ./myrepo --hybrid
//	codeindex search "where is the login handler" --hybrid --top-k 5
//	codeindex serve --port 9090
//
// Configuration comes from ~/.config/codeindex/config.yaml and CODEINDEX_*
// environment variables. See internal/config.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
