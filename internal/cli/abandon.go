package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/1kastner/sherpa/pkg/model"
)

func newAbandonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "abandon <study_id> <trial_id>",
		Short: "Abandon a trial",
		Long:  "Mark a trial as stopped. Its results never enter promotion decisions.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, tid := args[0], args[1]

			resp, err := client.Post(fmt.Sprintf("/api/v1/studies/%s/trials/%s/abandon", sid, tid), nil)
			if err != nil {
				return fmt.Errorf("abandon trial: %w", err)
			}
			var trial model.Trial
			if err := decodeData(resp, &trial); err != nil {
				return err
			}
			fmt.Printf("Trial %d abandoned (state %s)\n", trial.ID, trial.State)
			return nil
		},
	}
}
