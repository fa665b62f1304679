package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/1kastner/sherpa/internal/bundle"
	"github.com/1kastner/sherpa/pkg/model"
)

func newExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <study_id>",
		Short: "Export a study as a tar.gz archive",
		Long:  "Download a study's full history (trials, observations, best result) into a portable archive.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if output == "" {
				output = id + ".tar.gz"
			}

			snap := &bundle.Snapshot{}

			resp, err := client.Get("/api/v1/studies/" + id)
			if err != nil {
				return fmt.Errorf("get study: %w", err)
			}
			snap.Study = &model.Study{}
			if err := decodeData(resp, snap.Study); err != nil {
				return err
			}

			resp, err = client.Get("/api/v1/studies/" + id + "/trials")
			if err != nil {
				return fmt.Errorf("list trials: %w", err)
			}
			if err := decodeData(resp, &snap.Trials); err != nil {
				return err
			}

			resp, err = client.Get("/api/v1/studies/" + id + "/observations")
			if err != nil {
				return fmt.Errorf("list observations: %w", err)
			}
			if err := decodeData(resp, &snap.Observations); err != nil {
				return err
			}

			// A study with no reports yet has no best result; that is not an
			// error for export.
			resp, err = client.Get("/api/v1/studies/" + id + "/best")
			if err != nil {
				var apiErr *model.APIError
				if !errors.As(err, &apiErr) || apiErr.Code != model.ErrNotFound {
					return fmt.Errorf("get best result: %w", err)
				}
			} else {
				snap.Best = &bundle.BestEntry{}
				if err := decodeData(resp, snap.Best); err != nil {
					return err
				}
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create archive: %w", err)
			}
			defer f.Close()

			if err := bundle.Export(f, snap); err != nil {
				return fmt.Errorf("write archive: %w", err)
			}
			fmt.Printf("Exported %s: %d trials, %d observations -> %s\n",
				id, len(snap.Trials), len(snap.Observations), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Archive path (default <study_id>.tar.gz)")
	return cmd
}
