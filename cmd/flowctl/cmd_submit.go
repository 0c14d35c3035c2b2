package main

import (
	"context"
	"encoding/json"
	"flowclient/internal/apperrors"
	"flowclient/internal/flow"
	"flowclient/internal/notify"
	"fmt"

	"github.com/spf13/cobra"
)

func newSubmitCmd(a *app) *cobra.Command {
	var flags struct {
		dsl   string
		conf  string
		wait  bool
		party partyFlags
	}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a job from a DSL and runtime configuration",
		Args:  cobra.NoArgs,
		RunE: a.action(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			conf, err := loadDocument("conf", flags.conf)
			if err != nil {
				return err
			}
			dsl, err := loadDocument("dsl", flags.dsl)
			if err != nil {
				return err
			}
			party := flags.party
			if flags.wait {
				if party, err = resolveParty(cmd, party, conf); err != nil {
					return err
				}
			}

			sub, err := a.client.Submit(ctx, dsl, conf)
			if err != nil {
				return err
			}
			a.notifySubmitted(ctx, sub)
			if err := printJSON(cmd.OutOrStdout(), sub); err != nil {
				return err
			}
			if !flags.wait {
				return nil
			}
			return a.monitor(ctx, sub.JobID, party)
		}),
	}

	f := cmd.Flags()
	f.StringVar(&flags.conf, "conf", "", "Job runtime configuration file, JSON or YAML (required)")
	f.StringVar(&flags.dsl, "dsl", "", "Job DSL file, JSON or YAML")
	f.BoolVar(&flags.wait, "wait", false, "Monitor the job until it finishes")
	flags.party.register(cmd, false)
	_ = cmd.MarkFlagRequired("conf")
	return cmd
}

func newUploadCmd(a *app) *cobra.Command {
	var flags struct {
		conf  string
		drop  int
		wait  bool
		party partyFlags
	}

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a local data file as a table",
		Args:  cobra.NoArgs,
		RunE: a.action(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			conf, err := loadDocument("conf", flags.conf)
			if err != nil {
				return err
			}
			party := flags.party
			if flags.wait {
				if party, err = resolveParty(cmd, party, conf); err != nil {
					return err
				}
			}

			sub, err := a.client.UploadData(ctx, conf, flags.drop)
			if err != nil {
				return err
			}
			a.notifySubmitted(ctx, sub)
			if err := printJSON(cmd.OutOrStdout(), sub); err != nil {
				return err
			}
			if !flags.wait {
				return nil
			}
			return a.monitor(ctx, sub.JobID, party)
		}),
	}

	f := cmd.Flags()
	f.StringVar(&flags.conf, "conf", "", "Upload configuration file, JSON or YAML (required)")
	f.IntVar(&flags.drop, "drop", 0, "Replace an existing table of the same name when 1")
	f.BoolVar(&flags.wait, "wait", false, "Monitor the upload job until it finishes")
	flags.party.register(cmd, false)
	_ = cmd.MarkFlagRequired("conf")
	return cmd
}

// resolveParty fills the monitored party from the configuration's initiator
// when --party-id was not given.
func resolveParty(cmd *cobra.Command, p partyFlags, conf any) (partyFlags, error) {
	if p.partyID != "" {
		return p, nil
	}
	role, partyID, ok := initiatorOf(conf)
	if !ok {
		return p, apperrors.Validation("party-id", "required with --wait when the configuration names no initiator")
	}
	if !cmd.Flags().Changed("role") && role != "" {
		p.role = role
	}
	p.partyID = partyID
	return p, nil
}

// initiatorOf reads initiator.role and initiator.party_id from a runtime
// configuration.
func initiatorOf(conf any) (role, partyID string, ok bool) {
	m, isMap := conf.(map[string]any)
	if !isMap {
		return "", "", false
	}
	initiator, isMap := m["initiator"].(map[string]any)
	if !isMap {
		return "", "", false
	}
	role, _ = initiator["role"].(string)
	switch v := initiator["party_id"].(type) {
	case string:
		partyID = v
	case json.Number:
		partyID = v.String()
	case float64:
		partyID = fmt.Sprintf("%.0f", v)
	case int:
		partyID = fmt.Sprintf("%d", v)
	}
	return role, partyID, partyID != ""
}

func (a *app) notifySubmitted(ctx context.Context, sub *flow.Submission) {
	if !a.notifier.Enabled() {
		return
	}
	_ = a.notifier.Notify(ctx, notify.NewEventBuilder(sub.JobID, "").BuildSubmittedEvent(sub.Data))
}
