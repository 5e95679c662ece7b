package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/dstack-labs/bronzeload/internal/cli"
	"github.com/dstack-labs/bronzeload/pkg/bronze"
)

func main() {
	// Recover from panics to ensure graceful exits with stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())
			os.Exit(bronze.ExitPanic)
		}
	}()

	if err := cli.Execute(); err != nil {
		os.Exit(bronze.ExitCodeForError(err))
	}
}
