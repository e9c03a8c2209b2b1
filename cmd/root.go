package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hgq-alloc/hgq-alloc/hgq"
	"github.com/hgq-alloc/hgq-alloc/hgq/trace"
)

var (
	// CLI flags
	poolFile   string  // YAML pool configuration (params, pool size, demand)
	poolSize   float64 // pool size override; negative means "use the file"
	logLevel   string  // log verbosity level
	traceLevel string  // allocation trace level override
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "hgq-alloc",
	Short: "Hierarchical group quota allocator for negotiator accounting",
}

// loadBundle reads and validates the pool bundle behind --pool-file.
func loadBundle() (*hgq.PoolBundle, error) {
	if poolFile == "" {
		return nil, fmt.Errorf("no pool file provided (use --pool-file)")
	}
	bundle, err := hgq.LoadPoolBundle(poolFile)
	if err != nil {
		return nil, err
	}
	if err := bundle.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}
	return bundle, nil
}

// allocateCmd runs one allocation cycle from the pool file and prints the
// per-group results.
var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Run one allocation cycle and print per-group slot grants",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		bundle, err := loadBundle()
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		tree, err := hgq.ConstructTree(bundle.BuildParams())
		if err != nil {
			logrus.Fatalf("constructing quota tree: %v", err)
		}

		pool := bundle.Pool
		if poolSize >= 0 {
			pool = poolSize
		}

		tl := bundle.Trace
		if traceLevel != "" {
			tl = traceLevel
		}
		if !trace.IsValidLevel(tl) {
			logrus.Fatalf("unknown trace level %q", tl)
		}
		tr := trace.New(trace.Config{Level: trace.Level(tl)})

		tree.InjectDemand(bundle.BuildDemand())
		tree.RunCycle(pool, tr)

		outputTable(tree.Results())
		if tr.Enabled() {
			s := tr.Summary
			fmt.Printf("pool= %g  requested= %g  allocated= %g  residual= %g\n",
				s.Pool, s.TotalRequested, s.TotalAllocated, s.ResidualSurplus)
		}
	},
}

// validateCmd parses and validates a pool file without allocating anything.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse and validate a pool file without running a cycle",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		bundle, err := loadBundle()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		tree, err := hgq.ConstructTree(bundle.BuildParams())
		if err != nil {
			logrus.Fatalf("constructing quota tree: %v", err)
		}
		fmt.Printf("%s: ok (%d groups)\n", poolFile, len(tree.Groups)-1)
	},
}

// outputTable renders per-group results, breadth-first, root row first.
func outputTable(results []hgq.GroupResult) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Group", "Quota", "Requested", "Allocated", "RR"})
	for _, r := range results {
		table.Append([]string{
			r.Name,
			strconv.FormatFloat(r.Quota, 'g', -1, 64),
			strconv.FormatFloat(r.Requested, 'g', -1, 64),
			strconv.FormatFloat(r.Allocated, 'f', 0, 64),
			strconv.FormatBool(r.RoundRobin),
		})
	}
	table.Render()
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&poolFile, "pool-file", "", "YAML pool configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	allocateCmd.Flags().Float64Var(&poolSize, "pool", -1, "Pool size override (slots); takes precedence over the pool file")
	allocateCmd.Flags().StringVar(&traceLevel, "trace", "", "Allocation trace level (none, cycles)")

	rootCmd.AddCommand(allocateCmd)
	rootCmd.AddCommand(validateCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
