package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ca-risken/common/pkg/logging"
	"k8s.io/utils/exec"
)

const (
	DefaultEngine        = "libfuzzer"
	DefaultArchitecture  = "x86_64"
	DefaultCoverageImage = "fuzzops/coverage"

	imageBuildTimeout  = 90 * time.Minute
	fuzzerBuildTimeout = 60 * time.Minute
	fuzzerRunTimeout   = 10 * time.Minute
	imagePushTimeout   = 30 * time.Minute
)

type DockerServiceClient interface {
	BuildImage(ctx context.Context, imageRef, dockerfile, contextDir string) error
	BuildFuzzers(ctx context.Context, imageRef, srcDir, outDir, sanitizer string) error
	RunFuzzer(ctx context.Context, runnerImage, outDir, target string, args ...string) ([]byte, error)
	CoverageRun(ctx context.Context, runnerImage, outDir, covDir, target string, maxTotalTime time.Duration, args ...string) error
	CoverageReport(ctx context.Context, coverageImage, outDir, covDir, target string) error
	PushImage(ctx context.Context, imageRef string) error
	Shell(ctx context.Context, imageRef, outDir string, stdin io.Reader, stdout, stderr io.Writer) error
}

type dockerClient struct {
	dockerPath string
	exec       exec.Interface
	logger     logging.Logger
}

func NewDockerClient(dockerPath string, e exec.Interface, l logging.Logger) DockerServiceClient {
	if dockerPath == "" {
		dockerPath = "docker"
	}
	return &dockerClient{
		dockerPath: dockerPath,
		exec:       e,
		logger:     l,
	}
}

func (d *dockerClient) BuildImage(ctx context.Context, imageRef, dockerfile, contextDir string) error {
	ctx, cancel := context.WithTimeout(ctx, imageBuildTimeout)
	defer cancel()

	args := []string{"build", "--pull"}
	if dockerfile != "" {
		args = append(args, "-f", dockerfile)
	}
	args = append(args, "-t", imageRef, contextDir)
	d.logger.Infof(ctx, "Start docker build: image=%s, context=%s", imageRef, contextDir)
	if err := d.run(ctx, args, nil); err != nil {
		return fmt.Errorf("failed to build image: image=%s, err=%w", imageRef, err)
	}
	d.logger.Infof(ctx, "Success docker build: image=%s", imageRef)
	return nil
}

// BuildFuzzers runs the project image once for the given sanitizer with the
// sanitizer-specific output directory mounted at /out.
func (d *dockerClient) BuildFuzzers(ctx context.Context, imageRef, srcDir, outDir, sanitizer string) error {
	ctx, cancel := context.WithTimeout(ctx, fuzzerBuildTimeout)
	defer cancel()

	args := []string{
		"run", "--rm", "-i",
		"--cap-add", "SYS_PTRACE",
		"-e", "FUZZING_ENGINE=" + DefaultEngine,
		"-e", "SANITIZER=" + sanitizer,
		"-e", "ARCHITECTURE=" + DefaultArchitecture,
	}
	if srcDir != "" {
		args = append(args, "-v", srcDir+":/src")
	}
	args = append(args, "-v", outDir+":/out", "-t", imageRef)
	d.logger.Infof(ctx, "Start fuzzer build: image=%s, sanitizer=%s, out=%s", imageRef, sanitizer, outDir)
	if err := d.run(ctx, args, nil); err != nil {
		return fmt.Errorf("failed to build fuzzers: image=%s, sanitizer=%s, err=%w", imageRef, sanitizer, err)
	}
	d.logger.Infof(ctx, "Success fuzzer build: image=%s, sanitizer=%s", imageRef, sanitizer)
	return nil
}

// RunFuzzer executes one fuzz target binary through the runner image. The
// target path is relative to outDir. The combined output is returned even on
// failure so callers can extract the crash summary.
func (d *dockerClient) RunFuzzer(ctx context.Context, runnerImage, outDir, target string, fuzzerArgs ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, fuzzerRunTimeout)
	defer cancel()

	args := []string{
		"run", "--rm", "-i",
		"-v", outDir + ":/out",
		"-t", runnerImage,
		"/out/" + target,
	}
	args = append(args, fuzzerArgs...)
	cmd := d.exec.CommandContext(ctx, d.dockerPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("failed to run fuzzer: target=%s, err=%w", target, err)
	}
	return output, nil
}

// CoverageRun executes one fuzz target with sanitizer coverage dumping
// enabled for a bounded time. The .sancov files land in covDir.
func (d *dockerClient) CoverageRun(ctx context.Context, runnerImage, outDir, covDir, target string, maxTotalTime time.Duration, fuzzerArgs ...string) error {
	args := []string{
		"run", "--rm", "-i",
		"-v", outDir + ":/out",
		"-v", covDir + ":/cov",
		"-w", "/cov",
		"-e", "ASAN_OPTIONS=coverage=1,detect_leaks=0",
		"-t", runnerImage,
		"/out/" + target,
		fmt.Sprintf("-max_total_time=%d", int(maxTotalTime.Seconds())),
	}
	args = append(args, fuzzerArgs...)
	d.logger.Infof(ctx, "Start coverage run: target=%s, cov=%s, max_total_time=%s", target, covDir, maxTotalTime)
	if err := d.run(ctx, args, nil); err != nil {
		return fmt.Errorf("failed to run coverage: target=%s, err=%w", target, err)
	}
	return nil
}

// CoverageReport renders the collected coverage data and serves the report on
// port 8001. Blocks until the container exits.
func (d *dockerClient) CoverageReport(ctx context.Context, coverageImage, outDir, covDir, target string) error {
	args := []string{
		"run", "--rm", "-i",
		"-v", outDir + ":/out",
		"-v", covDir + ":/cov",
		"-w", "/cov",
		"-p", "8001:8001",
		"-t", coverageImage,
		"/out/" + target,
	}
	d.logger.Infof(ctx, "Serving coverage report: target=%s, cov=%s, port=8001", target, covDir)
	if err := d.run(ctx, args, nil); err != nil {
		return fmt.Errorf("failed to render coverage report: target=%s, err=%w", target, err)
	}
	return nil
}

func (d *dockerClient) PushImage(ctx context.Context, imageRef string) error {
	ctx, cancel := context.WithTimeout(ctx, imagePushTimeout)
	defer cancel()

	d.logger.Infof(ctx, "Start docker push: image=%s", imageRef)
	if err := d.run(ctx, []string{"push", imageRef}, nil); err != nil {
		return fmt.Errorf("failed to push image: image=%s, err=%w", imageRef, err)
	}
	d.logger.Infof(ctx, "Success docker push: image=%s", imageRef)
	return nil
}

// Shell starts an interactive shell in the project image for debugging builds.
func (d *dockerClient) Shell(ctx context.Context, imageRef, outDir string, stdin io.Reader, stdout, stderr io.Writer) error {
	args := []string{
		"run", "--rm", "-i",
		"-v", outDir + ":/out",
		"-t", imageRef,
		"/bin/bash",
	}
	cmd := d.exec.CommandContext(ctx, d.dockerPath, args...)
	cmd.SetStdin(stdin)
	cmd.SetStdout(stdout)
	cmd.SetStderr(stderr)
	return cmd.Run()
}

func (d *dockerClient) run(ctx context.Context, args []string, env []string) error {
	cmd := d.exec.CommandContext(ctx, d.dockerPath, args...)
	if len(env) > 0 {
		cmd.SetEnv(env)
	}
	var stderr bytes.Buffer
	cmd.SetStderr(&stderr)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker %s: err=%w, stderr=%s", args[0], err, tail(stderr.String(), 2000))
	}
	return nil
}

func tail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "... " + s[len(s)-max:]
}
