package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/1kastner/sherpa/pkg/model"
)

func newTrialsCmd() *cobra.Command {
	var showParams bool

	cmd := &cobra.Command{
		Use:   "trials <study_id>",
		Short: "List the trials of a study",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			resp, err := client.Get("/api/v1/studies/" + id + "/trials")
			if err != nil {
				return fmt.Errorf("list trials: %w", err)
			}
			var trials []model.Trial
			if err := decodeData(resp, &trials); err != nil {
				return err
			}
			if len(trials) == 0 {
				fmt.Println("No trials yet.")
				return nil
			}

			fmt.Printf("%-6s  %-10s  %-5s  %-10s  %-8s  %s\n", "ID", "STATE", "RUNG", "RESOURCE", "PARENT", "WORKER")
			fmt.Printf("%-6s  %-10s  %-5s  %-10s  %-8s  %s\n", "--", "-----", "----", "--------", "------", "------")
			for _, t := range trials {
				parent := "-"
				if t.ParentID != 0 {
					parent = fmt.Sprintf("%d", t.ParentID)
				}
				resource := fmt.Sprintf("%d..%d", t.ResourceFrom, t.ResourceTo)
				fmt.Printf("%-6d  %-10s  %-5d  %-10s  %-8s  %s\n",
					t.ID, t.State, t.Rung, resource, parent, t.WorkerID)
				if showParams {
					params, _ := json.Marshal(t.Parameters)
					fmt.Printf("        %s\n", params)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showParams, "params", false, "Show each trial's parameters")
	return cmd
}
