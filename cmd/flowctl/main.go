// flowctl drives FATE-Flow jobs from the command line: submit, upload,
// monitor, query and fetch component outputs.
//
// Usage:
//
//	flowctl submit --conf <conf> [--dsl <dsl>] [--wait --role <role> --party-id <id>]
//	flowctl upload --conf <conf> [--drop 1]
//	flowctl monitor <job-id> --role <role> --party-id <id>
//	flowctl query job|task <job-id> --role <role> --party-id <id>
//	flowctl output table|data|model|metric|summary <job-id> --component <name> --role <role> --party-id <id>
//	flowctl predict-dsl --train-dsl <dsl> --cpn <name>[,<name>...]
package main

import (
	"context"
	"errors"
	"flowclient/internal/apperrors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes flowctl with args and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return apperrors.ExitOK
	}
	// Errors not built by the client come from cobra parsing the command line.
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) && ctx.Err() == nil {
		err = apperrors.Validation("usage", err.Error())
	}
	if !errors.Is(err, apperrors.ErrJobFailed) {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return apperrors.ExitCode(err)
}
