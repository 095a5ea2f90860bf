package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/HaseebLUMS/tree-sim/config"
	"github.com/HaseebLUMS/tree-sim/id"
	"github.com/HaseebLUMS/tree-sim/logging"
	"github.com/HaseebLUMS/tree-sim/monitoring"
	"github.com/HaseebLUMS/tree-sim/scenario"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a latency experiment.",
	Long: "`run` builds the experiment from defaults, an optional scenario " +
		"file, TREESIM_* variables, and flags, in that order of precedence, " +
		"and writes one latency in seconds per line to the output file.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger := logging.FromContext(cmd.Context())

		cfg, err := loadScenario(cmd)
		if err != nil {
			return err
		}

		parallelIDs, _ := cmd.Flags().GetBool("parallel-ids")
		if parallelIDs {
			err = id.UseParallelGenerator()
			if err != nil {
				return err
			}
		}

		sim, err := scenario.Build(cfg, logger)
		if err != nil {
			return err
		}

		monitorAddr, _ := cmd.Flags().GetString("monitor")
		if monitorAddr != "" {
			monitor := startMonitor(logger, sim, monitorAddr)
			defer func() {
				err := monitor.Shutdown(context.Background())
				if err != nil {
					logger.Warn("cannot stop monitor", "err", err)
				}
			}()
		}

		profilePath, _ := cmd.Flags().GetString("cpuprofile")

		var profiler *monitoring.Profiler
		if profilePath != "" {
			profiler, err = monitoring.StartProfiler()
			if err != nil {
				return err
			}
		}

		result, runErr := sim.Run()

		if profiler != nil {
			err = saveProfile(cmd, profiler, profilePath)
			if err != nil {
				logger.Error("cannot save profile", "err", err)
			}
		}

		if runErr != nil {
			return runErr
		}

		monitoring.LogResources(logger)

		fmt.Fprintf(cmd.OutOrStdout(),
			"sent %d, recorded %d, malformed %d, violations %d, dropped %d\n",
			result.Sent, result.Latencies.Len(), result.Malformed,
			result.Violations, result.Dropped)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringP("config", "c", "", "Scenario file in YAML.")
	f.Float64("rate", 0, "Packets per second.")
	f.Float64("duration", 0, "Seconds of sending.")
	f.Int("payload-size", 0, "Bytes per packet, at least 8.")
	f.Duration("delay", 0, "Propagation delay of the link.")
	f.Uint64("data-rate", 0, "Link data rate in bits per second, 0 for "+
		"infinite.")
	f.Duration("stop-time", 0, "Halt the simulation at this virtual time.")
	f.StringP("output", "o", "", "Latency output file.")
	f.String("sqlite", "", "Also store samples in this SQLite database "+
		"(without the .sqlite3 suffix).")
	f.String("metrics", "", "Also write Prometheus metrics to this file.")
	f.String("trace", "", "Trace every segment to this CSV file "+
		"(without the .csv suffix).")
	f.String("cpuprofile", "", "Write a CPU profile of the run to this file.")
	f.String("monitor", "", "Serve progress, resources, metrics, and "+
		"pause/continue over HTTP on this host:port.")
	f.Bool("parallel-ids", false, "Use globally unique IDs instead of "+
		"sequential ones.")
}

func loadScenario(cmd *cobra.Command) (*config.Scenario, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg := config.Default()
	if path != "" {
		var err error

		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}

	err := cfg.ApplyEnv()
	if err != nil {
		return nil, err
	}

	applyFlags(cmd, cfg)

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Scenario) {
	f := cmd.Flags()

	if f.Changed("rate") {
		cfg.Client.Rate, _ = f.GetFloat64("rate")
	}

	if f.Changed("duration") {
		cfg.Client.Duration, _ = f.GetFloat64("duration")
	}

	if f.Changed("payload-size") {
		cfg.Client.PayloadSize, _ = f.GetInt("payload-size")
	}

	if f.Changed("delay") {
		cfg.Link.Delay, _ = f.GetDuration("delay")
	}

	if f.Changed("data-rate") {
		cfg.Link.DataRateBps, _ = f.GetUint64("data-rate")
	}

	if f.Changed("stop-time") {
		cfg.StopTime, _ = f.GetDuration("stop-time")
	}

	if f.Changed("output") {
		cfg.Output.Latencies, _ = f.GetString("output")
	}

	if f.Changed("sqlite") {
		cfg.Output.SQLite, _ = f.GetString("sqlite")
	}

	if f.Changed("metrics") {
		cfg.Output.Metrics, _ = f.GetString("metrics")
	}

	if f.Changed("trace") {
		cfg.Output.Trace, _ = f.GetString("trace")
	}
}

func startMonitor(
	logger *slog.Logger,
	sim *scenario.Simulation,
	addr string,
) *monitoring.Monitor {
	monitor := monitoring.NewMonitor(logger).WithAddress(addr)
	monitor.RegisterEngine(sim.Engine())
	monitor.RegisterGatherer(sim.Collector().Registry())
	monitor.RegisterProgressBar(sim.Progress().Bar())

	_, err := monitor.StartServer()
	if err != nil {
		logger.Warn("running without monitor", "err", err)
	}

	return monitor
}

func saveProfile(
	cmd *cobra.Command,
	profiler *monitoring.Profiler,
	path string,
) error {
	prof, err := profiler.Stop()
	if err != nil {
		return err
	}

	err = os.WriteFile(path, profiler.Bytes(), 0o644)
	if err != nil {
		return err
	}

	logger := logging.FromContext(cmd.Context())
	for _, fn := range monitoring.TopFunctions(prof, 5) {
		logger.Info("cpu hotspot", "function", fn.Name, "flat", fn.Flat)
	}

	return nil
}
