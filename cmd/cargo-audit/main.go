package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/rustsec/cargo-audit-go/internal/audit"
	"github.com/rustsec/cargo-audit-go/internal/cmd"
)

func main() {
	os.Exit(run())
}

// run maps the audit outcome onto the process exit code: 0 when the audit
// passed, 1 when vulnerabilities were found, 2 for operational failures.
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cmd.New().ExecuteContext(ctx); err != nil {
		if errors.Is(err, audit.ErrVulnerabilitiesFound) {
			return 1
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	return 0
}
