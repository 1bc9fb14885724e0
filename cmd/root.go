package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/transmission-sim/transmission-sim/sim"
	"github.com/transmission-sim/transmission-sim/sim/scenario"
)

var (
	logLevel string // Log verbosity level

	// CLI flags for a single run
	scenarioPath string  // YAML scenario file
	initEIR      float64 // Annual entomological inoculation rate at equilibrium
	timesteps    int     // Number of simulated days
	seed         int64   // Seed for all random streams
	population   int     // Number of simulated humans
	columns      []string

	// CLI flags for output
	outPath      string // Output file; stdout when empty
	outputFormat string // csv, arrow or sqlite
	runID        string // Run id used by the sqlite format
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:          "transmission-sim",
	Short:        "Individual-based malaria transmission simulator",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
		return nil
	},
}

// runCmd runs one scenario from a YAML file, CLI flags, or both
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulation from equilibrium",
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := resolveScenario(cmd)
		if err != nil {
			return err
		}
		snap, err := sc.Snapshot()
		if err != nil {
			return err
		}

		logrus.Infof("Starting simulation: eir=%g, timesteps=%d, humans=%d, species=%d, seed=%d",
			sc.InitEIR, sc.Timesteps, snap.HumanPopulation, len(snap.Species), snap.Seed)
		startTime := time.Now()

		init, err := sim.SetEquilibrium(snap, sc.InitEIR)
		if err != nil {
			return err
		}
		tbl, err := sim.Run(cmd.Context(), sc.Timesteps, init, sim.RunConfig{Columns: sc.Columns()})
		if err != nil {
			return err
		}
		logrus.Infof("Simulation complete: %d rows in %s", tbl.Rows(), time.Since(startTime))

		id := runID
		if id == "" {
			id = sc.Name
		}
		return writeTable(cmd.Context(), cmd.OutOrStdout(), tbl, outputFormat, outPath, id)
	},
}

// resolveScenario loads --scenario if given, then applies any flag the user
// set explicitly on top of it. Flags left at their defaults never override
// file values.
func resolveScenario(cmd *cobra.Command) (*scenario.Scenario, error) {
	sc := &scenario.Scenario{Version: scenario.CurrentVersion, Name: "run"}
	if scenarioPath != "" {
		loaded, err := scenario.LoadScenario(scenarioPath)
		if err != nil {
			return nil, err
		}
		sc = loaded
	} else {
		sc.InitEIR = initEIR
		sc.Timesteps = timesteps
	}

	flags := cmd.Flags()
	if flags.Changed("eir") {
		sc.InitEIR = initEIR
	}
	if flags.Changed("timesteps") {
		sc.Timesteps = timesteps
	}
	if flags.Changed("seed") {
		s := seed
		sc.Seed = &s
	}
	if flags.Changed("population") {
		n := population
		sc.HumanPopulation = &n
	}
	if flags.Changed("columns") {
		if sc.Output == nil {
			sc.Output = &scenario.OutputSpec{}
		}
		sc.Output.Columns = columns
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return sc, nil
}

// Execute runs the CLI root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := execute(ctx, os.Args[1:]); err != nil {
		stop()
		os.Exit(1)
	}
}

// execute runs the command tree with args and logs any failure.
func execute(ctx context.Context, args []string) error {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		logrus.Error(err)
	}
	return err
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	addRunFlags(runCmd)
	addOutputFlags(runCmd)
	runCmd.Flags().StringVar(&runID, "run-id", "", "Run id stored with sqlite output (default: scenario name)")

	rootCmd.AddCommand(runCmd)
}

func addRunFlags(c *cobra.Command) {
	c.Flags().StringVar(&scenarioPath, "scenario", "", "YAML scenario file")
	c.Flags().Float64Var(&initEIR, "eir", 10, "Annual EIR the starting population is in equilibrium with")
	c.Flags().IntVar(&timesteps, "timesteps", 365, "Number of days to simulate")
	c.Flags().Int64Var(&seed, "seed", 42, "Seed for all random streams")
	c.Flags().IntVar(&population, "population", 1000, "Number of simulated humans")
	c.Flags().StringSliceVar(&columns, "columns", nil, "Comma-separated output columns (default: all)")
}
