package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/paint-sequencer/paint-sequencer/sim"
	"github.com/paint-sequencer/paint-sequencer/sim/telemetry"
	"github.com/paint-sequencer/paint-sequencer/sim/trace"
)

var (
	// CLI flags shared by run and drain
	seed       int64  // Seed for arrivals, colors and job IDs
	logLevel   string // Log verbosity level
	configPath string // Optional YAML config layered over the defaults

	// CLI flags for run
	horizonSeconds float64 // Simulated time in seconds
	o1MeanSeconds  float64 // Mean inter-arrival time of oven O1
	o2MeanSeconds  float64 // Mean inter-arrival time of oven O2
	drainAfter     float64 // Stop the ovens and drain after this many seconds (0 = never)
	drainExact     bool    // Use the exact solver when draining
	metricsFile    string  // Write Prometheus text exposition here after the run
	traceLevel     string  // Decision trace verbosity
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "paint-sequencer",
	Short: "Color sequencing core for paint-shop buffer lines",
}

// setupLogging applies the --log flag.
func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// loadConfig returns the --config file layered over the defaults.
func loadConfig() (sim.Config, error) {
	if configPath == "" {
		return sim.DefaultConfig(), nil
	}
	cfg, err := sim.LoadConfig(configPath)
	if err != nil {
		return sim.Config{}, err
	}
	return *cfg, nil
}

// applyRunFlags copies explicitly set run flags onto cfg.
func applyRunFlags(cmd *cobra.Command, cfg *sim.Config) {
	flags := cmd.Flags()
	if flags.Changed("horizon") {
		cfg.Simulation.HorizonSeconds = horizonSeconds
	}
	if flags.Changed("o1-mean") {
		cfg.Simulation.O1MeanSeconds = o1MeanSeconds
	}
	if flags.Changed("o2-mean") {
		cfg.Simulation.O2MeanSeconds = o2MeanSeconds
	}
	if flags.Changed("drain-after") {
		cfg.Simulation.DrainAfterSeconds = drainAfter
	}
	if flags.Changed("drain-exact") {
		cfg.Simulation.DrainExact = drainExact
	}
}

// runCmd executes the simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the paint-shop simulation",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level: %s", traceLevel)
		}

		cfg, err := loadConfig()
		if err != nil {
			logrus.Fatalf("Config: %v", err)
		}
		applyRunFlags(cmd, &cfg)

		reg := prometheus.NewRegistry()
		opts := []sim.SimOption{sim.WithMetrics(telemetry.NewPrometheus(reg, ""))}
		var st *trace.SimulationTrace
		if trace.TraceLevel(traceLevel) == trace.TraceLevelDecisions {
			st = trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})
			opts = append(opts, sim.WithDecisionTrace(st))
		}

		s, err := sim.NewSimulator(cfg, seed, opts...)
		if err != nil {
			logrus.Fatalf("Simulator: %v", err)
		}
		logrus.Infof("Starting simulation: horizon=%.0fs seed=%d O1=%.1fs O2=%.1fs",
			cfg.Simulation.HorizonSeconds, seed, cfg.Simulation.O1MeanSeconds, cfg.Simulation.O2MeanSeconds)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		start := time.Now()
		res, err := s.Run(ctx)
		if err != nil {
			logrus.Fatalf("Simulation aborted: %v", err)
		}

		res.Stats.Print(os.Stdout)
		printPlant(res.Plant, len(res.Held))
		if st != nil {
			printTraceSummary(trace.Summarize(st))
		}
		if metricsFile != "" {
			if err := writeMetrics(reg, metricsFile); err != nil {
				logrus.Fatalf("Metrics: %v", err)
			}
		}
		logrus.Infof("Simulation complete in %v.", time.Since(start))
	},
}

func printPlant(p *sim.PlantState, held int) {
	fmt.Println("=== Final Plant State ===")
	for _, b := range p.Buffers() {
		fmt.Printf("%-4s %2d/%2d %s\n", b.ID, b.Occupancy(), b.Capacity, b)
	}
	fmt.Printf("Held at ovens        : %d\n", held)
}

func printTraceSummary(s *trace.TraceSummary) {
	fmt.Println("=== Decision Trace ===")
	fmt.Printf("Assignments          : %d (held %d, emergency %d)\n", s.TotalAssignments, s.HeldCount, s.EmergencyCount)
	fmt.Printf("Picks                : %d (%d jobs, %d color changes)\n", s.TotalPicks, s.PickedJobs, s.ColorChanges)
	fmt.Printf("Mean Pick Margin     : %.2f\n", s.MeanMargin)
	for mode, n := range s.ModeDistribution {
		fmt.Printf("  mode %-16s: %d\n", mode, n)
	}
	if s.Replans > 0 {
		fmt.Printf("Drain Replans        : %d\n", s.Replans)
	}
}

// writeMetrics dumps every gathered family in Prometheus text format.
func writeMetrics(g prometheus.Gatherer, path string) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(f, mf); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", mf.GetName(), err)
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	logrus.Infof("[metrics] wrote %d families, %d samples to %s", len(families), countSamples(families), path)
	return nil
}

func countSamples(families []*dto.MetricFamily) int {
	n := 0
	for _, mf := range families {
		n += len(mf.GetMetric())
	}
	return n
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	def := sim.DefaultConfig().Simulation

	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 42, "Seed for arrivals, colors and job IDs")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file layered over the defaults")

	runCmd.Flags().Float64Var(&horizonSeconds, "horizon", def.HorizonSeconds, "Simulated time (in seconds)")
	runCmd.Flags().Float64Var(&o1MeanSeconds, "o1-mean", def.O1MeanSeconds, "Mean inter-arrival time of oven O1 (in seconds)")
	runCmd.Flags().Float64Var(&o2MeanSeconds, "o2-mean", def.O2MeanSeconds, "Mean inter-arrival time of oven O2 (in seconds)")
	runCmd.Flags().Float64Var(&drainAfter, "drain-after", def.DrainAfterSeconds, "Stop the ovens and enter drain mode after this many seconds (0 = never)")
	runCmd.Flags().BoolVar(&drainExact, "drain-exact", def.DrainExact, "Try the exact solver when entering drain mode")
	runCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")
	runCmd.Flags().StringVar(&traceLevel, "trace-level", "none", "Decision trace level (none, decisions)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(drainCmd)
	rootCmd.AddCommand(defaultsCmd)
}
