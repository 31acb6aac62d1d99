package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ca-risken/common/pkg/logging"
	"github.com/fuzzops/builder/pkg/config"
	"github.com/fuzzops/builder/pkg/docker"
	"github.com/fuzzops/builder/pkg/github"
	"github.com/spf13/cobra"
	"k8s.io/utils/exec"
)

var (
	configPath  string
	dockerPath  string
	githubToken string
	verbose     bool

	appLogger = logging.NewLogger()
)

var rootCmd = &cobra.Command{
	Use:   "fuzzctl",
	Short: "Build and smoke-test libFuzzer projects locally",
	Long: `fuzzctl drives the fuzzer build pipeline from a developer machine:
scaffold a new project, build its container image, build the fuzzers per
sanitizer, smoke-run them and optionally run the whole pipeline including
artifact upload and image publish.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			appLogger.Level(logging.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "project.yaml", "path to the project config file")
	rootCmd.PersistentFlags().StringVar(&dockerPath, "docker", "docker", "docker binary to use")
	rootCmd.PersistentFlags().StringVar(&githubToken, "github-token", "", "token for cloning private repositories")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(buildImageCmd)
	rootCmd.AddCommand(buildFuzzersCmd)
	rootCmd.AddCommand(runFuzzerCmd)
	rootCmd.AddCommand(coverageCmd)
	rootCmd.AddCommand(checkBuildCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(pipelineCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadProjectConfig() (*config.ProjectConfig, error) {
	return config.Load(configPath)
}

// configBaseDir anchors relative paths from the project config to the
// directory holding the config file.
func configBaseDir() (string, error) {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return "", err
	}
	return filepath.Dir(abs), nil
}

func resolveConfigPath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

func newDockerClient() docker.DockerServiceClient {
	return docker.NewDockerClient(dockerPath, exec.New(), appLogger)
}

func newGithubClient() github.GithubServiceClient {
	return github.NewGithubClient(githubToken, "", appLogger)
}

// ensureOutDir creates outDir when missing and returns it as an absolute
// path so docker can bind-mount it.
func ensureOutDir(outDir string) (string, error) {
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return "", fmt.Errorf("failed to create out directory: dir=%s, err=%w", abs, err)
	}
	return abs, nil
}
