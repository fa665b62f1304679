package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/1kastner/sherpa/pkg/asha"
	"github.com/1kastner/sherpa/pkg/model"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <study_id>",
		Short: "Check the status of a study",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			resp, err := client.Get("/api/v1/studies/" + id)
			if err != nil {
				return fmt.Errorf("get study: %w", err)
			}
			var study model.Study
			if err := decodeData(resp, &study); err != nil {
				return err
			}

			direction := "maximize"
			if study.LowerIsBetter {
				direction = "minimize"
			}

			fmt.Printf("Study: %s\n", study.ID)
			fmt.Printf("  Name:      %s\n", study.Name)
			fmt.Printf("  State:     %s\n", study.State)
			fmt.Printf("  Objective: %s\n", direction)
			fmt.Printf("  Resource:  %d..%d (eta %d)\n", study.MinResource, study.MaxResource, study.Eta)

			ts := study.TrialSummary
			fmt.Printf("  Trials:    %d total", ts.Total)
			if ts.Completed > 0 {
				fmt.Printf(", %d completed", ts.Completed)
			}
			if ts.Running > 0 {
				fmt.Printf(", %d running", ts.Running)
			}
			if ts.Pending > 0 {
				fmt.Printf(", %d pending", ts.Pending)
			}
			if ts.Stopped > 0 {
				fmt.Printf(", %d stopped", ts.Stopped)
			}
			fmt.Println()
			fmt.Printf("  Top rung:  %d/%d finished\n", ts.TopRungCompleted, study.MaxFinishedTrials)

			if rungsResp, err := client.Get("/api/v1/studies/" + id + "/rungs"); err == nil {
				var rungs []asha.RungSummary
				if err := decodeData(rungsResp, &rungs); err == nil && len(rungs) > 0 {
					fmt.Println("  Rungs:")
					for _, r := range rungs {
						line := fmt.Sprintf("    - rung %d (resource %d): %d observed, %d promoted",
							r.Rung, r.Resource, r.Observations, r.Promoted)
						if r.Best != nil {
							line += fmt.Sprintf(", best %.4f", *r.Best)
						}
						fmt.Println(line)
					}
				}
			}

			fmt.Printf("  Created:   %s\n", study.CreatedAt.Format("2006-01-02 15:04:05"))
			if study.FinishedAt != nil {
				fmt.Printf("  Finished:  %s\n", study.FinishedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}
