package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/1kastner/sherpa/pkg/model"
)

func newBestCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "best <study_id>",
		Short: "Show the best result of a study",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			resp, err := client.Get("/api/v1/studies/" + id + "/best")
			if err != nil {
				return fmt.Errorf("get best result: %w", err)
			}

			var best struct {
				Observation model.Observation  `json:"observation"`
				Parameters  model.ParameterSet `json:"parameters"`
			}
			if err := decodeData(resp, &best); err != nil {
				return err
			}

			if asJSON {
				out, err := json.MarshalIndent(best, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}

			fmt.Printf("Best result for %s:\n", id)
			fmt.Printf("  Objective: %g\n", best.Observation.Objective)
			fmt.Printf("  Trial:     %d (rung %d)\n", best.Observation.TrialID, best.Observation.Rung)
			fmt.Println("  Parameters:")
			names := make([]string, 0, len(best.Parameters))
			for name := range best.Parameters {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("    %s: %v\n", name, best.Parameters[name])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}
