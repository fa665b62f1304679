package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/1kastner/sherpa/pkg/model"
)

func newListCmd() *cobra.Command {
	var state string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List studies",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/studies/"
			if state != "" {
				path += "?state=" + state
			}
			resp, err := client.Get(path)
			if err != nil {
				return fmt.Errorf("list studies: %w", err)
			}

			var studies []model.Study
			if err := decodeData(resp, &studies); err != nil {
				return err
			}
			if len(studies) == 0 {
				fmt.Println("No studies found.")
				return nil
			}

			fmt.Printf("%-12s  %-10s  %-24s  %-16s  %s\n", "ID", "STATE", "NAME", "TRIALS", "CREATED")
			fmt.Printf("%-12s  %-10s  %-24s  %-16s  %s\n", "----", "-----", "----", "------", "-------")
			for _, s := range studies {
				trials := fmt.Sprintf("%d/%d top-rung", s.TrialSummary.TopRungCompleted, s.MaxFinishedTrials)
				fmt.Printf("%-12s  %-10s  %-24s  %-16s  %s\n",
					s.ID, s.State, s.Name, trials, s.CreatedAt.Format("2006-01-02 15:04"))
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Printf("\n(%d of %d shown)\n", len(studies), resp.Pagination.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Filter by state (ACTIVE, FINISHED)")
	return cmd
}
