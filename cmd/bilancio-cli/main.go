// Command bilancio-cli records and inspects ledger transactions from the
// terminal, against the same store the server uses.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bilancio/internal/cli"
	"bilancio/internal/core"
)

// Exit codes
const (
	exitOK         = 0
	exitFailure    = 1
	exitValidation = 2
)

func main() {
	cli.LoadEnvFile()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
	}
	os.Exit(exitCode(err))
}

// exitCode maps validation errors to 2 and every other failure to 1.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		return exitValidation
	default:
		if _, ok := core.IsValidation(err); ok {
			return exitValidation
		}
		return exitFailure
	}
}
