package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/1kastner/sherpa/internal/logging"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking SHERPA_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("SHERPA_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the sherpa CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sherpa",
		Short: "sherpa — asynchronous successive halving for hyperparameter search",
		Long:  "sherpa submits, monitors, and exports hyperparameter studies, or runs them locally.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "sherpa server URL (or SHERPA_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newSubmitCmd(),
		newStatusCmd(),
		newListCmd(),
		newTrialsCmd(),
		newBestCmd(),
		newAbandonCmd(),
		newWorkersCmd(),
		newExportCmd(),
		newRunCmd(),
	)

	return root
}
