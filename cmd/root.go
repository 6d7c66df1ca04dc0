package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/allocsim/allocsim/sim"
	"github.com/allocsim/allocsim/sim/metrics"
	"github.com/allocsim/allocsim/sim/policy"
	"github.com/allocsim/allocsim/sim/trace"
)

// Environment variables read from the process or a .env file in the working directory.
const (
	envConfigPath = "ALLOCSIM_CONFIG"
	envLogLevel   = "ALLOCSIM_LOG"
)

var (
	configPath  string // YAML env config
	seed        int64  // Seed for all random streams
	episodes    int    // Episodes to run
	policyName  string // Baseline policy driving the engine
	logLevel    string // Log verbosity level
	metricsFile string // Prometheus textfile output
	resultsPath string // JSON results output
	traceLevel  string // Trace verbosity: none or steps

	// bin packing
	continuous bool // Drive the continuous-action variant

	// matching
	graphPath string // Graph file; overrides offline/online/edges
	features  bool   // Append optimal-matching probabilities to observations
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "allocsim",
	Short: "Online bin-packing and bipartite-matching decision processes",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			logrus.Warnf("reading .env: %v", err)
		}
		if !cmd.Flags().Changed("log") {
			if v := os.Getenv(envLogLevel); v != "" {
				logLevel = v
			}
		}
		if !cmd.Flags().Changed("config") {
			if v := os.Getenv(envConfigPath); v != "" {
				configPath = v
			}
		}
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// loadConfig reads --config (if any) and applies CLI overrides.
// --seed wins over the YAML seed only when set explicitly.
func loadConfig(cmd *cobra.Command) (sim.EnvConfig, error) {
	var cfg sim.EnvConfig
	if configPath != "" {
		loaded, err := sim.LoadEnvConfig(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("seed") || cfg.Seed == 0 {
		cfg.Seed = seed
	}
	if graphPath != "" {
		cfg.GraphFile = graphPath
	}
	return cfg, nil
}

// newRun validates the shared flags and assembles the run options.
func newRun(env string, cfg sim.EnvConfig, rng *sim.PartitionedRNG, bestFitHighest bool) (runOptions, *prometheus.Registry, error) {
	if episodes <= 0 {
		return runOptions{}, nil, fmt.Errorf("--episodes must be positive, got %d", episodes)
	}
	if !policy.IsValidPolicy(policyName) {
		return runOptions{}, nil, fmt.Errorf("unknown policy %q; valid policies: %v", policyName, policy.ValidPolicyNames())
	}
	if !trace.IsValidTraceLevel(traceLevel) {
		return runOptions{}, nil, fmt.Errorf("unknown trace level %q", traceLevel)
	}
	reg := prometheus.NewRegistry()
	return runOptions{
		Env:        env,
		Seed:       cfg.Seed,
		Episodes:   episodes,
		PolicyName: policyName,
		Policy:     policy.NewPolicy(policyName, rng.ForSubsystem(sim.SubsystemPolicy), bestFitHighest),
		Recorder:   metrics.NewRecorder(reg),
		KeepSteps:  trace.TraceLevel(traceLevel) == trace.TraceLevelSteps,
	}, reg, nil
}

// writeMetrics exports reg when --metrics-file is set.
func writeMetrics(reg *prometheus.Registry) {
	if metricsFile == "" {
		return
	}
	if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
		logrus.Fatalf("writing metrics: %v", err)
	}
	logrus.Infof("Metrics written to: %s", metricsFile)
}

// Execute runs the CLI root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML env config")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 42, "Seed for all random streams (overrides the config seed when set)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")

	for _, c := range []*cobra.Command{binpackCmd, matchCmd} {
		c.Flags().IntVar(&episodes, "episodes", 1, "Number of episodes to run")
		c.Flags().StringVar(&policyName, "policy", "random", fmt.Sprintf("Baseline policy %v", policy.ValidPolicyNames()))
		c.Flags().StringVar(&resultsPath, "results-path", "", "Write episode summaries (and traces) as JSON to this file")
		c.Flags().StringVar(&traceLevel, "trace-level", "none", "Trace verbosity: none, steps")
	}
	binpackCmd.Flags().BoolVar(&continuous, "continuous", false, "Submit actions through the continuous [0,1] interface")
	matchCmd.Flags().StringVar(&graphPath, "graph", "", "Graph file (header, 'm n' line, then 1-indexed 'x y' edges)")
	matchCmd.Flags().BoolVar(&features, "features", false, "Append optimal-matching probabilities to observations")
	oracleCmd.Flags().StringVar(&graphPath, "graph", "", "Graph file; the table is cached beside it")

	rootCmd.AddCommand(binpackCmd, matchCmd, oracleCmd)
}
