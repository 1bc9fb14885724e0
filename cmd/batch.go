package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/transmission-sim/transmission-sim/sim/batch"
	"github.com/transmission-sim/transmission-sim/sim/scenario"
)

var (
	batchScenarios []string // YAML scenario files, one job each
	parallelism    int      // Maximum concurrent runs
	outDir         string   // Directory for per-run csv/arrow files
)

// batchCmd runs several scenarios concurrently
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run several scenarios in parallel",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := append(append([]string(nil), batchScenarios...), args...)
		if len(paths) == 0 {
			return fmt.Errorf("at least one --scenario is required")
		}
		ext, ok := validFormats[outputFormat]
		if !ok {
			return fmt.Errorf("unknown output format %q; valid: csv, arrow, sqlite", outputFormat)
		}
		if outputFormat != FormatSQLite && outDir == "" {
			return fmt.Errorf("--out-dir is required for %s output", outputFormat)
		}

		jobs, err := loadJobs(paths)
		if err != nil {
			return err
		}

		startTime := time.Now()
		results, err := batch.Run(cmd.Context(), jobs, parallelism)
		if err != nil {
			return err
		}
		logrus.Infof("Batch complete: %d runs in %s", len(results), time.Since(startTime))

		for _, res := range results {
			path := outPath
			if outputFormat != FormatSQLite {
				path = filepath.Join(outDir, res.Name+ext)
			}
			if err := writeTable(cmd.Context(), cmd.OutOrStdout(), res.Table, outputFormat, path, res.Name); err != nil {
				return fmt.Errorf("writing %q: %w", res.Name, err)
			}
		}
		return nil
	},
}

// loadJobs turns scenario files into batch jobs. A scenario without a name
// is named after its file; names must be unique.
func loadJobs(paths []string) ([]batch.Job, error) {
	jobs := make([]batch.Job, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		sc, err := scenario.LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		snap, err := sc.Snapshot()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		name := sc.Name
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		if prev, dup := seen[name]; dup {
			return nil, fmt.Errorf("%s: run name %q already used by %s", path, name, prev)
		}
		seen[name] = path
		jobs = append(jobs, batch.Job{
			Name:      name,
			Snapshot:  snap,
			InitEIR:   sc.InitEIR,
			Timesteps: sc.Timesteps,
			Columns:   sc.Columns(),
		})
	}
	return jobs, nil
}

func init() {
	batchCmd.Flags().StringArrayVar(&batchScenarios, "scenario", nil, "YAML scenario file (repeatable)")
	batchCmd.Flags().IntVar(&parallelism, "parallel", 0, "Maximum concurrent runs (default: GOMAXPROCS)")
	batchCmd.Flags().StringVar(&outDir, "out-dir", "", "Directory for per-run csv/arrow files")
	addOutputFlags(batchCmd)

	rootCmd.AddCommand(batchCmd)
}
