package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/allocsim/allocsim/sim"
	"github.com/allocsim/allocsim/sim/graph"
	"github.com/allocsim/allocsim/sim/matching"
	"github.com/allocsim/allocsim/sim/metrics"
	"github.com/allocsim/allocsim/sim/oracle"
)

// oracleCmd builds (or loads) the optimal-matching probability table of a graph file.
var oracleCmd = &cobra.Command{
	Use:   "oracle",
	Short: "Build the optimal-matching probability table of a graph file",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			logrus.Fatalf("loading config: %v", err)
		}
		if cfg.GraphFile == "" {
			logrus.Fatalf("oracle needs --graph or graph_file in --config")
		}
		g, cfg, err := matching.BuildGraph(cfg)
		if err != nil {
			logrus.Fatalf("loading graph: %v", err)
		}
		reg := prometheus.NewRegistry()
		table, err := probabilityTable(cmd.Context(), cfg, g, sim.NewPartitionedRNG(sim.Seed(cfg.Seed)), metrics.NewRecorder(reg))
		if err != nil {
			logrus.Fatalf("building probability table: %v", err)
		}
		printTable(os.Stdout, graph.CachePath(cfg.GraphFile), table)
		writeMetrics(reg)
	},
}

// printTable reports the expected size of an optimal matching.
func printTable(w io.Writer, path string, t *oracle.Table) {
	fmt.Fprintln(w, "=== Optimal Matching Probabilities ===")
	fmt.Fprintf(w, "Cache file           : %s\n", path)
	fmt.Fprintf(w, "Online x Offline     : %d x %d\n", t.Online(), t.Offline())
	total := 0.0
	for v := 0; v < t.Online(); v++ {
		total += t.ExpectedMatches(v)
	}
	fmt.Fprintf(w, "Mean matching size   : %.4f\n", total)
}
