package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/1kastner/sherpa/internal/studyfile"
	"github.com/1kastner/sherpa/pkg/model"
)

func newSubmitCmd() *cobra.Command {
	var validateOnly bool

	cmd := &cobra.Command{
		Use:   "submit <study.yaml>",
		Short: "Submit a study definition to the server",
		Long:  "Validate a study definition locally, then submit it to the sherpa server to start the search.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			// Validate locally first so errors arrive without a server round trip.
			spec, err := studyfile.Load(path)
			if err != nil {
				return err
			}
			if errs := spec.Validate(); len(errs) > 0 {
				fmt.Fprintf(os.Stderr, "Invalid study definition %s:\n", path)
				for _, e := range errs {
					fmt.Fprintf(os.Stderr, "  - %s: %s\n", e.Field, e.Message)
				}
				return fmt.Errorf("%d validation errors", len(errs))
			}
			if validateOnly {
				fmt.Printf("Study definition valid: %s (%d parameters, ladder %v)\n",
					spec.Name, len(spec.Parameters), spec.SchedulerConfig().Budgets())
				return nil
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read study file: %w", err)
			}
			resp, err := client.PostRaw("/api/v1/studies/", data, "application/yaml")
			if err != nil {
				return fmt.Errorf("create study: %w", err)
			}

			var study model.Study
			if err := decodeData(resp, &study); err != nil {
				return err
			}
			fmt.Printf("Study created: %s (%s)\n", study.ID, study.Name)
			fmt.Printf("  Ladder:  %v (eta %d)\n", spec.SchedulerConfig().Budgets(), study.Eta)
			fmt.Printf("  Stops:   after %d top-rung completions\n", study.MaxFinishedTrials)
			return nil
		},
	}

	cmd.Flags().BoolVar(&validateOnly, "validate", false, "Validate without submitting")
	return cmd
}
