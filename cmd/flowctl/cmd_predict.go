package main

import (
	"context"
	"flowclient/internal/apperrors"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newPredictDSLCmd(a *app) *cobra.Command {
	var flags struct {
		trainDSL   string
		components []string
		version    string
		out        string
	}

	cmd := &cobra.Command{
		Use:   "predict-dsl",
		Short: "Derive a prediction DSL from a training DSL",
		Args:  cobra.NoArgs,
		RunE: a.action(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			trainDSL, err := loadDocument("train-dsl", flags.trainDSL)
			if err != nil {
				return err
			}
			var components []string
			for _, c := range flags.components {
				if c = strings.TrimSpace(c); c != "" {
					components = append(components, c)
				}
			}

			dsl, err := a.client.PredictDSL(ctx, trainDSL, components, flags.version)
			if err != nil {
				return err
			}
			if flags.out == "" {
				return printJSON(cmd.OutOrStdout(), dsl)
			}
			f, err := os.Create(flags.out)
			if err != nil {
				return apperrors.Internal("predict.dsl.write", err)
			}
			defer f.Close()
			return printJSON(f, dsl)
		}),
	}

	f := cmd.Flags()
	f.StringVar(&flags.trainDSL, "train-dsl", "", "Training DSL file, JSON or YAML (required)")
	f.StringSliceVar(&flags.components, "cpn", nil, "Components to keep in the prediction DSL (required)")
	f.StringVar(&flags.version, "version", "1", "DSL version")
	f.StringVarP(&flags.out, "out", "o", "", "Write the DSL to this file instead of stdout")
	_ = cmd.MarkFlagRequired("train-dsl")
	_ = cmd.MarkFlagRequired("cpn")
	return cmd
}
