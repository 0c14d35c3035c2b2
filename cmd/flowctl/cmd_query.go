package main

import (
	"context"
	"flowclient/internal/flow"

	"github.com/spf13/cobra"
)

func newQueryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query job and task status",
	}
	cmd.AddCommand(newQueryJobCmd(a), newQueryTaskCmd(a))
	return cmd
}

func newQueryJobCmd(a *app) *cobra.Command {
	var party partyFlags

	cmd := &cobra.Command{
		Use:   "job <job-id>",
		Short: "Show the status record of a job",
		Args:  cobra.ExactArgs(1),
		RunE: a.action(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			q, err := a.client.QueryJob(ctx, args[0], party.role, party.partyID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), q)
		}),
	}
	party.register(cmd, true)
	return cmd
}

func newQueryTaskCmd(a *app) *cobra.Command {
	var (
		party  partyFlags
		status string
	)

	cmd := &cobra.Command{
		Use:   "task <job-id>",
		Short: "List the tasks of a job",
		Args:  cobra.ExactArgs(1),
		RunE: a.action(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			q, err := a.client.QueryTask(ctx, args[0], party.role, party.partyID, flow.JobStatus(status))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), q)
		}),
	}
	party.register(cmd, true)
	cmd.Flags().StringVar(&status, "status", "", "Only list tasks in this status (waiting, running, success, failed)")
	return cmd
}
