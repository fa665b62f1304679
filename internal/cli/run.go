package cli

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/1kastner/sherpa/internal/studyfile"
	"github.com/1kastner/sherpa/pkg/asha"
	"github.com/1kastner/sherpa/pkg/model"
	"github.com/1kastner/sherpa/pkg/param"
	"github.com/1kastner/sherpa/pkg/runner"
)

func newRunCmd() *cobra.Command {
	var (
		trainer     string
		script      string
		command     string
		concurrency int
		seed        int64
	)

	cmd := &cobra.Command{
		Use:   "run <study.yaml>",
		Short: "Run a study locally without a server",
		Long: `Run a hyperparameter study entirely in-process: sample and promote
trials with a local scheduler and train them on a worker pool. Useful for
trying out a study definition before submitting it to a server.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := studyfile.Load(args[0])
			if err != nil {
				return err
			}
			if errs := spec.Validate(); len(errs) > 0 {
				fmt.Fprintf(os.Stderr, "Invalid study definition %s:\n", args[0])
				for _, e := range errs {
					fmt.Fprintf(os.Stderr, "  - %s: %s\n", e.Field, e.Message)
				}
				return fmt.Errorf("%d validation errors", len(errs))
			}

			if seed == 0 {
				seed = spec.Seed
			}
			if seed == 0 {
				seed = time.Now().UnixNano()
			}

			sampler, err := param.NewSampler(spec.SearchSpace(), seed)
			if err != nil {
				return fmt.Errorf("build sampler: %w", err)
			}
			sched, err := asha.New(spec.SchedulerConfig(), sampler, logger)
			if err != nil {
				return fmt.Errorf("build scheduler: %w", err)
			}

			kind := model.TrainerType(trainer)
			if trainer == "" {
				kind = model.TrainerSim
				if spec.Trainer != "" {
					kind = model.TrainerType(spec.Trainer)
				}
			}
			scriptSrc := ""
			if script != "" {
				data, err := os.ReadFile(script)
				if err != nil {
					return fmt.Errorf("read script: %w", err)
				}
				scriptSrc = string(data)
			}
			var argv []string
			if command != "" {
				argv = []string{"sh", "-c", command}
			}
			tr, err := runner.New(kind, runner.Config{
				Script:  scriptSrc,
				Command: argv,
				Seed:    seed,
			})
			if err != nil {
				return err
			}

			pool, err := runner.NewPool(sched, tr, concurrency, logger)
			if err != nil {
				return err
			}

			fmt.Printf("Running %s: ladder %v, stop after %d top-rung completions, %d workers\n",
				spec.Name, sched.Budgets(), spec.MaxFinishedTrials, concurrency)
			start := time.Now()
			if err := pool.Run(cmd.Context()); err != nil {
				return fmt.Errorf("run study: %w", err)
			}

			summary := sched.TrialSummary()
			fmt.Printf("Finished in %s: %d trials (%d completed, %d stopped)\n",
				time.Since(start).Round(time.Millisecond), summary.Total, summary.Completed, summary.Stopped)

			best, ok := sched.BestResult()
			if !ok {
				fmt.Println("No observations recorded.")
				return nil
			}
			trialInfo, err := sched.Trial(best.TrialID)
			if err != nil {
				return err
			}
			fmt.Printf("Best objective: %g (trial %d, rung %d)\n", best.Objective, best.TrialID, best.Rung)
			names := make([]string, 0, len(trialInfo.Parameters))
			for name := range trialInfo.Parameters {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("  %s: %v\n", name, trialInfo.Parameters[name])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&trainer, "trainer", "", "Trainer kind (sim, script, command; default from the study file)")
	cmd.Flags().StringVar(&script, "script", "", "Path to a JavaScript trainer (kind script)")
	cmd.Flags().StringVar(&command, "command", "", "Shell command to run per trial (kind command)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 2, "Number of in-process workers")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Override the study's random seed")

	return cmd
}
