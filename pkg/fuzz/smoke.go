package fuzz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ca-risken/common/pkg/logging"
	"github.com/fuzzops/builder/pkg/docker"
	"k8s.io/utils/exec"
)

// DefaultSmokeRuns is the fixed iteration count for the post-build smoke run.
// Enough to catch startup crashes and broken instrumentation without spending
// real fuzzing time.
const DefaultSmokeRuns = 100

// libFuzzer exit codes, from compiler-rt FuzzerOptions.h plus the sanitizer
// default exitcode.
const (
	exitSanitizerError = 1
	exitTimeout        = 70
	exitOOM            = 71
	exitCrash          = 77
)

// Markers bounding the interesting part of a crashing run's output.
var stacktraceToolMarkers = [][]byte{
	[]byte("AddressSanitizer"),
	[]byte("ASAN:"),
	[]byte("ERROR: libFuzzer"),
	[]byte("LeakSanitizer"),
	[]byte("MemorySanitizer"),
	[]byte("ThreadSanitizer"),
	[]byte("UndefinedBehaviorSanitizer"),
}

var stacktraceEndMarkers = [][]byte{
	[]byte("ABORTING"),
	[]byte("END MEMORY TOOL REPORT"),
	[]byte("End of process memory map."),
	[]byte("SUMMARY:"),
	[]byte("[end of stack trace]"),
}

type TargetResult struct {
	Name     string
	Passed   bool
	Detail   string
	Summary  string
	Duration time.Duration
}

type SanitizerReport struct {
	Project   string
	Sanitizer string
	StartedAt time.Time
	Results   []TargetResult
}

func (r *SanitizerReport) Passed() bool {
	for _, t := range r.Results {
		if !t.Passed {
			return false
		}
	}
	return true
}

func (r *SanitizerReport) FailureCount() int {
	n := 0
	for _, t := range r.Results {
		if !t.Passed {
			n++
		}
	}
	return n
}

type SmokeRunner interface {
	Run(ctx context.Context, project, sanitizer, runnerImage, outDir string) (*SanitizerReport, error)
}

type smokeRunner struct {
	dockerClient docker.DockerServiceClient
	runnerImage  string
	runs         int
	logger       logging.Logger
}

func NewSmokeRunner(dc docker.DockerServiceClient, runnerImage string, runs int, l logging.Logger) SmokeRunner {
	if runs <= 0 {
		runs = DefaultSmokeRuns
	}
	return &smokeRunner{
		dockerClient: dc,
		runnerImage:  runnerImage,
		runs:         runs,
		logger:       l,
	}
}

// Run executes every fuzz target in outDir for a fixed iteration count and
// reports pass/fail per target. A crashing target does not abort the run; the
// remaining targets are still exercised.
func (s *smokeRunner) Run(ctx context.Context, project, sanitizer, runnerImage, outDir string) (*SanitizerReport, error) {
	if runnerImage == "" {
		runnerImage = s.runnerImage
	}
	targets, err := ListTargets(outDir)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no fuzz targets found: project=%s, sanitizer=%s, dir=%s", project, sanitizer, outDir)
	}
	report := &SanitizerReport{
		Project:   project,
		Sanitizer: sanitizer,
		StartedAt: time.Now().UTC(),
	}
	runsArg := fmt.Sprintf("-runs=%d", s.runs)
	for _, target := range targets {
		start := time.Now()
		output, err := s.dockerClient.RunFuzzer(ctx, runnerImage, outDir, target, runsArg)
		result := TargetResult{
			Name:     target,
			Passed:   err == nil,
			Duration: time.Since(start),
		}
		if err != nil {
			result.Detail = classifyRunError(err)
			result.Summary = string(ExtractCrashSummary(output))
			s.logger.Warnf(ctx, "Fuzzer smoke run failed: target=%s, sanitizer=%s, detail=%s", target, sanitizer, result.Detail)
		} else {
			s.logger.Infof(ctx, "Fuzzer smoke run passed: target=%s, sanitizer=%s", target, sanitizer)
		}
		report.Results = append(report.Results, result)
	}
	return report, nil
}

func classifyRunError(err error) string {
	var exitErr exec.ExitError
	if !errors.As(err, &exitErr) {
		return err.Error()
	}
	switch exitErr.ExitStatus() {
	case exitSanitizerError:
		return "sanitizer error"
	case exitTimeout:
		return "libFuzzer timeout"
	case exitOOM:
		return "libFuzzer out-of-memory"
	case exitCrash:
		return "libFuzzer crash"
	default:
		return fmt.Sprintf("exit status %d", exitErr.ExitStatus())
	}
}

// ExtractCrashSummary cuts the sanitizer report out of a fuzzer's output,
// from the first tool marker to the end of the first end marker after it.
// Returns the full output when no markers are present.
func ExtractCrashSummary(output []byte) []byte {
	begin := -1
	for _, m := range stacktraceToolMarkers {
		if i := bytes.Index(output, m); i >= 0 && (begin < 0 || i < begin) {
			begin = i
		}
	}
	if begin < 0 {
		return output
	}
	end := len(output)
	for _, m := range stacktraceEndMarkers {
		if i := bytes.Index(output[begin:], m); i >= 0 && begin+i+len(m) < end {
			end = begin + i + len(m)
		}
	}
	return output[begin:end]
}
