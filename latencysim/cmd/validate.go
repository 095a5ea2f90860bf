package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HaseebLUMS/tree-sim/config"
	"github.com/HaseebLUMS/tree-sim/latency"
)

var validateCmd = &cobra.Command{
	Use:   "validate FILE...",
	Short: "Check scenario files without running them.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var failed int

		for _, path := range args {
			cfg, err := config.Load(path)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
				failed++

				continue
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, %d packets\n", path,
				latency.PacketCount(cfg.Client.Rate, cfg.Client.Duration))
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d scenario files are invalid",
				failed, len(args))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
