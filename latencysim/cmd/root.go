// Package cmd provides the command-line interface for latencysim.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/HaseebLUMS/tree-sim/config"
	"github.com/HaseebLUMS/tree-sim/logging"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "latencysim",
	Short: "Measure packet latency over a simulated TCP link.",
	Long: `latencysim sends a rate-controlled stream of timestamped packets ` +
		`from a client to a sink over a simulated point-to-point link and ` +
		`records the latency of every packet that arrives.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")

		err := config.LoadDotEnv(envFile)
		if err != nil {
			return err
		}

		return setupLogger(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info",
		"Log level: debug, info, warn, or error.")
	rootCmd.PersistentFlags().String("log-format", string(logging.FormatText),
		"Log format: text or json.")
	rootCmd.PersistentFlags().String("env-file", ".env",
		"File with TREESIM_* variables. Ignored if missing.")
}

func setupLogger(cmd *cobra.Command) error {
	levelName, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")

	logger, err := logging.New(cmd.ErrOrStderr(), levelName,
		logging.Format(format))
	if err != nil {
		return err
	}

	slog.SetDefault(logger)
	cmd.SetContext(logging.NewContext(cmd.Context(), logger))

	return nil
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Functions registered with atexit run before the process
// exits.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
