package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// componentFlags select one component of one job as seen by a party.
type componentFlags struct {
	party     partyFlags
	component string
}

func (c *componentFlags) register(cmd *cobra.Command) {
	c.party.register(cmd, true)
	cmd.Flags().StringVar(&c.component, "component", "", "Component name (required)")
	_ = cmd.MarkFlagRequired("component")
}

func newOutputCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "output",
		Short: "Fetch component outputs of a job",
	}
	cmd.AddCommand(
		newOutputTableCmd(a),
		newOutputDataCmd(a),
		newArtifactCmd(a, "model", "Show the model parameters of a component"),
		newArtifactCmd(a, "metric", "Show all metrics of a component"),
		newArtifactCmd(a, "summary", "Show the summary of a component"),
	)
	return cmd
}

func newOutputTableCmd(a *app) *cobra.Command {
	var flags componentFlags

	cmd := &cobra.Command{
		Use:   "table <job-id>",
		Short: "Show the output table references of a component",
		Args:  cobra.ExactArgs(1),
		RunE: a.action(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			out, err := a.client.OutputDataTable(ctx, args[0], flags.component, flags.party.role, flags.party.partyID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		}),
	}
	flags.register(cmd)
	return cmd
}

func newOutputDataCmd(a *app) *cobra.Command {
	var (
		flags componentFlags
		limit int
	)

	cmd := &cobra.Command{
		Use:   "data <job-id>",
		Short: "Download a sample of the output data of a component",
		Args:  cobra.ExactArgs(1),
		RunE: a.action(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			out, err := a.client.OutputData(ctx, args[0], flags.component, flags.party.role, flags.party.partyID, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		}),
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", -1, "Maximum lines per output, header included; negative reads all")
	return cmd
}

type artifactFetcher func(ctx context.Context, jobID, component, role, partyID string) (json.RawMessage, bool)

func newArtifactCmd(a *app, use, short string) *cobra.Command {
	var flags componentFlags

	cmd := &cobra.Command{
		Use:   use + " <job-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: a.action(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			fetch := a.fetcherFor(use)
			data, ok := fetch(ctx, args[0], flags.component, flags.party.role, flags.party.partyID)
			if !ok {
				fmt.Fprintf(cmd.ErrOrStderr(), "No %s output for component %s\n", use, flags.component)
				return nil
			}
			return printJSON(cmd.OutOrStdout(), data)
		}),
	}
	flags.register(cmd)
	return cmd
}

// fetcherFor picks the client method for an artifact command. The
// client only exists once setup has run.
func (a *app) fetcherFor(kind string) artifactFetcher {
	switch kind {
	case "model":
		return a.client.ModelParam
	case "metric":
		return a.client.Metrics
	default:
		return a.client.Summary
	}
}
