package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/1kastner/sherpa/pkg/model"
)

func newWorkersCmd() *cobra.Command {
	var workerKey string

	cmd := &cobra.Command{
		Use:   "workers",
		Short: "List registered workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			headers := map[string]string{}
			if workerKey != "" {
				headers["X-Worker-Key"] = workerKey
			}
			resp, err := client.GetWithHeaders("/api/v1/workers/", headers)
			if err != nil {
				return fmt.Errorf("list workers: %w", err)
			}

			var workers []model.Worker
			if err := decodeData(resp, &workers); err != nil {
				return err
			}
			if len(workers) == 0 {
				fmt.Println("No workers registered.")
				return nil
			}

			fmt.Printf("%-12s  %-16s  %-8s  %-8s  %-14s  %s\n", "ID", "NAME", "STATE", "TRAINER", "CURRENT", "LAST SEEN")
			fmt.Printf("%-12s  %-16s  %-8s  %-8s  %-14s  %s\n", "--", "----", "-----", "-------", "-------", "---------")
			for _, w := range workers {
				current := "-"
				if w.CurrentTrial != 0 {
					current = fmt.Sprintf("%s/%d", w.CurrentStudy, w.CurrentTrial)
				}
				fmt.Printf("%-12s  %-16s  %-8s  %-8s  %-14s  %s\n",
					w.ID, w.Name, w.State, w.Trainer, current, formatAge(w.LastSeen))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workerKey, "worker-key", "", "Worker API key (when the server requires one)")
	return cmd
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	age := time.Since(t).Round(time.Second)
	if age < 0 {
		age = 0
	}
	return fmt.Sprintf("%s ago", age)
}
