package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fuzzops/builder/pkg/fuzz"
	"github.com/spf13/cobra"
)

var (
	runOutDir      string
	runRunnerImage string
	shellOutDir    string
	checkOutDir    string
	checkRuns      int
	checkSanitizer string
)

var runFuzzerCmd = &cobra.Command{
	Use:   "run-fuzzer TARGET [-- FUZZER_ARGS...]",
	Short: "Run one built fuzz target through the runner image",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadProjectConfig()
		if err != nil {
			return err
		}
		outDir, err := ensureOutDir(runOutDir)
		if err != nil {
			return err
		}
		runnerImage := runRunnerImage
		if runnerImage == "" {
			runnerImage = conf.RunnerImage
		}
		output, err := newDockerClient().RunFuzzer(cmd.Context(), runnerImage, outDir, args[0], args[1:]...)
		os.Stdout.Write(output)
		return err
	},
}

var checkBuildCmd = &cobra.Command{
	Use:   "check-build",
	Short: "Smoke-run every built fuzz target and write the report",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadProjectConfig()
		if err != nil {
			return err
		}
		sanitizer := checkSanitizer
		if sanitizer == "" {
			sanitizer = conf.Sanitizers[0]
		}
		outDir := checkOutDir
		if outDir == "" {
			outDir = filepath.Join("out", sanitizer)
		}
		if outDir, err = ensureOutDir(outDir); err != nil {
			return err
		}
		runner := fuzz.NewSmokeRunner(newDockerClient(), conf.RunnerImage, checkRuns, appLogger)
		report, err := runner.Run(cmd.Context(), conf.Name, sanitizer, conf.RunnerImage, outDir)
		if err != nil {
			return err
		}
		reportPath, err := fuzz.WriteReportFile(outDir, report)
		if err != nil {
			return err
		}
		for _, r := range report.Results {
			status := "PASS"
			if !r.Passed {
				status = "FAIL"
			}
			fmt.Printf("%s %s %s\n", status, r.Name, r.Detail)
		}
		fmt.Printf("Report written to %s\n", reportPath)
		if !report.Passed() {
			return fmt.Errorf("smoke run failed: %d of %d targets crashed", report.FailureCount(), len(report.Results))
		}
		return nil
	},
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell in the project image",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadProjectConfig()
		if err != nil {
			return err
		}
		outDir, err := ensureOutDir(shellOutDir)
		if err != nil {
			return err
		}
		return newDockerClient().Shell(cmd.Context(), conf.ImageRef(), outDir, os.Stdin, os.Stdout, os.Stderr)
	},
}

func init() {
	runFuzzerCmd.Flags().StringVar(&runOutDir, "out", "out/address", "directory holding the built fuzz targets")
	runFuzzerCmd.Flags().StringVar(&runRunnerImage, "runner-image", "", "runner image (default: runner_image from the project config)")
	checkBuildCmd.Flags().StringVar(&checkOutDir, "out", "", "directory holding the built fuzz targets (default: out/<sanitizer>)")
	checkBuildCmd.Flags().StringVar(&checkSanitizer, "sanitizer", "", "sanitizer the targets were built with")
	checkBuildCmd.Flags().IntVar(&checkRuns, "runs", fuzz.DefaultSmokeRuns, "libFuzzer iteration count per target")
	shellCmd.Flags().StringVar(&shellOutDir, "out", "out/address", "directory to mount at /out")
}
