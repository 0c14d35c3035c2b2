package main

import (
	"context"
	"flowclient/internal/apperrors"
	"flowclient/internal/flow"
	"flowclient/internal/notify"

	"github.com/spf13/cobra"
)

func newMonitorCmd(a *app) *cobra.Command {
	var party partyFlags

	cmd := &cobra.Command{
		Use:   "monitor <job-id>",
		Short: "Poll a job until it succeeds or fails",
		Long: "monitor prints the running components of a job until it reaches a\n" +
			"terminal state. The exit code is 0 on success and 1 when the job failed.",
		Args: cobra.ExactArgs(1),
		RunE: a.action(func(ctx context.Context, _ *cobra.Command, args []string) error {
			return a.monitor(ctx, args[0], party)
		}),
	}
	party.register(cmd, true)
	return cmd
}

// monitor waits for jobID to finish and emits the exit event. A failed job
// is reported as apperrors.ErrJobFailed.
func (a *app) monitor(ctx context.Context, jobID string, p partyFlags) error {
	code, err := a.client.MonitorStatus(ctx, jobID, p.role, p.partyID)
	if err != nil {
		return err
	}
	if a.notifier.Enabled() {
		_ = a.notifier.Notify(ctx, notify.NewEventBuilder(jobID, "").BuildExitEvent(p.role, p.partyID, code))
	}
	if code == flow.StatusFail {
		return apperrors.JobFailed(jobID)
	}
	return nil
}
