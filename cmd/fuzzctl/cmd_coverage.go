package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fuzzops/builder/pkg/docker"
	"github.com/spf13/cobra"
)

var (
	coverageOutDir  string
	coverageCovDir  string
	coverageImage   string
	coverageRunTime time.Duration
)

var coverageCmd = &cobra.Command{
	Use:   "coverage TARGET [-- FUZZER_ARGS...]",
	Short: "Run one fuzz target with coverage collection and serve the report",
	Long: `Runs the target through the runner image for a bounded time with
sanitizer coverage dumping enabled, then runs the coverage image over the
collected data and serves the report on port 8001.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conf, err := loadProjectConfig()
		if err != nil {
			return err
		}
		outDir, err := ensureOutDir(coverageOutDir)
		if err != nil {
			return err
		}
		covDir := coverageCovDir
		if covDir == "" {
			if covDir, err = os.MkdirTemp("", conf.Name+"-cov"); err != nil {
				return fmt.Errorf("failed to create coverage directory: %w", err)
			}
		} else {
			if covDir, err = ensureOutDir(covDir); err != nil {
				return err
			}
		}
		dc := newDockerClient()
		if err := dc.CoverageRun(ctx, conf.RunnerImage, outDir, covDir, args[0], coverageRunTime, args[1:]...); err != nil {
			return err
		}
		fmt.Printf("Coverage data collected in %s, serving report on :8001\n", covDir)
		return dc.CoverageReport(ctx, coverageImage, outDir, covDir, args[0])
	},
}

func init() {
	coverageCmd.Flags().StringVar(&coverageOutDir, "out", "out/address", "directory holding the built fuzz targets")
	coverageCmd.Flags().StringVar(&coverageCovDir, "cov", "", "directory for coverage data (default: a temp directory)")
	coverageCmd.Flags().StringVar(&coverageImage, "coverage-image", docker.DefaultCoverageImage, "image that renders the coverage report")
	coverageCmd.Flags().DurationVar(&coverageRunTime, "run-time", 60*time.Second, "how long to run the fuzzer")
}
