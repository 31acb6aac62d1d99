package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ca-risken/common/pkg/logging"
	"github.com/fuzzops/builder/pkg/config"
	"github.com/fuzzops/builder/pkg/fuzz"
	"github.com/fuzzops/builder/pkg/storage"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-github/v44/github"
	fakeexec "k8s.io/utils/exec/testing"
)

type fakeGithubClient struct {
	cloned    []string
	revisions map[string]string
	repos     map[string]*github.Repository
}

func (f *fakeGithubClient) GetRepository(ctx context.Context, fullName string) (*github.Repository, error) {
	repo, ok := f.repos[fullName]
	if !ok {
		return nil, fmt.Errorf("repository not found: %s", fullName)
	}
	return repo, nil
}

func (f *fakeGithubClient) Clone(ctx context.Context, token, cloneURL, dstDir string) error {
	f.cloned = append(f.cloned, cloneURL)
	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return err
	}
	// Remember which URL produced this directory so HeadRevision can answer.
	return os.WriteFile(filepath.Join(dstDir, ".origin"), []byte(cloneURL), 0644)
}

func (f *fakeGithubClient) HeadRevision(dstDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dstDir, ".origin"))
	if err != nil {
		return "", err
	}
	rev, ok := f.revisions[string(data)]
	if !ok {
		return "", fmt.Errorf("unknown repository: %s", string(data))
	}
	return rev, nil
}

type fakeDockerClient struct {
	buildImageErr  error
	buildFuzzerErr error
	runErrs        map[string]error
	runOutputs     map[string][]byte
	builtImages    []string
	builtFuzzers   []string
	pushed         []string
	targets        []string
}

func (f *fakeDockerClient) BuildImage(ctx context.Context, imageRef, dockerfile, contextDir string) error {
	if f.buildImageErr != nil {
		return f.buildImageErr
	}
	f.builtImages = append(f.builtImages, imageRef)
	return nil
}

func (f *fakeDockerClient) BuildFuzzers(ctx context.Context, imageRef, srcDir, outDir, sanitizer string) error {
	if f.buildFuzzerErr != nil {
		return f.buildFuzzerErr
	}
	f.builtFuzzers = append(f.builtFuzzers, sanitizer)
	for _, target := range f.targets {
		if err := os.WriteFile(filepath.Join(outDir, target), []byte("bin"), 0755); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeDockerClient) RunFuzzer(ctx context.Context, runnerImage, outDir, target string, args ...string) ([]byte, error) {
	return f.runOutputs[target], f.runErrs[target]
}

func (f *fakeDockerClient) CoverageRun(ctx context.Context, runnerImage, outDir, covDir, target string, maxTotalTime time.Duration, args ...string) error {
	return nil
}

func (f *fakeDockerClient) CoverageReport(ctx context.Context, coverageImage, outDir, covDir, target string) error {
	return nil
}

func (f *fakeDockerClient) PushImage(ctx context.Context, imageRef string) error {
	f.pushed = append(f.pushed, imageRef)
	return nil
}

func (f *fakeDockerClient) Shell(ctx context.Context, imageRef, outDir string, stdin io.Reader, stdout, stderr io.Writer) error {
	return nil
}

type fakeStore struct {
	keys []string
	err  error
}

func (f *fakeStore) Upload(ctx context.Context, key string, body io.Reader) error {
	return f.err
}

func (f *fakeStore) UploadFile(ctx context.Context, key, filePath string) error {
	if f.err != nil {
		return f.err
	}
	if _, err := os.Stat(filePath); err != nil {
		return err
	}
	f.keys = append(f.keys, key)
	return nil
}

func testProjectConfig() *config.ProjectConfig {
	conf := &config.ProjectConfig{
		Name:           "zlib",
		GitURL:         "https://github.com/madler/zlib.git",
		DefinitionsURL: "https://github.com/fuzzops/projects.git",
		Sanitizers:     []string{"address", "undefined"},
		PushImage:      true,
	}
	conf.SetDefault()
	return conf
}

func newTestPipeline(gc *fakeGithubClient, dc *fakeDockerClient, store *fakeStore) *Pipeline {
	logger := logging.NewLogger()
	runner := fuzz.NewSmokeRunner(dc, "fuzzops/libfuzzer-runner", 0, logger)
	// Avoid wrapping a nil *fakeStore in a non-nil interface value.
	var s storage.ArtifactStore
	if store != nil {
		s = store
	}
	return NewPipeline(gc, dc, runner, s, logger)
}

func newFakeGithubClient() *fakeGithubClient {
	return &fakeGithubClient{
		revisions: map[string]string{
			"https://github.com/madler/zlib.git":      "1111111111111111111111111111111111111111",
			"https://github.com/fuzzops/projects.git": "2222222222222222222222222222222222222222",
		},
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	gc := newFakeGithubClient()
	dc := &fakeDockerClient{targets: []string{"compress_fuzzer", "inflate_fuzzer"}}
	store := &fakeStore{}
	p := newTestPipeline(gc, dc, store)

	result, err := p.Run(ctx, testProjectConfig())
	if err != nil {
		t.Fatalf("Unexpected error occured, err=%+v", err)
	}
	if !result.Passed() {
		t.Fatal("Unexpected smoke failure")
	}
	wantRevisions := map[string]string{
		"https://github.com/madler/zlib.git":      "1111111111111111111111111111111111111111",
		"https://github.com/fuzzops/projects.git": "2222222222222222222222222222222222222222",
	}
	if diff := cmp.Diff(wantRevisions, map[string]string(result.Revisions)); diff != "" {
		t.Errorf("Unexpected revisions, diff=%s", diff)
	}
	if diff := cmp.Diff([]string{"address", "undefined"}, dc.builtFuzzers); diff != "" {
		t.Errorf("Unexpected fuzzer builds, diff=%s", diff)
	}
	if len(result.Artifacts) != 2 {
		t.Fatalf("Unexpected artifact count: want=2, got=%d", len(result.Artifacts))
	}
	for _, key := range result.Artifacts {
		if filepath.Dir(key) != "zlib" {
			t.Errorf("Artifact key not under project prefix: %s", key)
		}
	}
	if !result.Published {
		t.Fatal("Unexpected not published")
	}
	if diff := cmp.Diff([]string{"fuzzops/zlib"}, dc.pushed); diff != "" {
		t.Errorf("Unexpected pushed images, diff=%s", diff)
	}
	if len(result.Reports) != 2 {
		t.Fatalf("Unexpected report count: want=2, got=%d", len(result.Reports))
	}
}

func TestRunResolvesRepoShorthand(t *testing.T) {
	ctx := context.Background()
	cloneURL := "https://github.com/madler/zlib.git"
	gc := newFakeGithubClient()
	gc.repos = map[string]*github.Repository{
		"madler/zlib": {CloneURL: &cloneURL},
	}
	dc := &fakeDockerClient{targets: []string{"compress_fuzzer"}}
	p := newTestPipeline(gc, dc, &fakeStore{})

	conf := testProjectConfig()
	conf.GitURL = "madler/zlib"
	conf.CheckoutDir = "zlib"
	result, err := p.Run(ctx, conf)
	if err != nil {
		t.Fatalf("Unexpected error occured, err=%+v", err)
	}
	if diff := cmp.Diff([]string{"https://github.com/fuzzops/projects.git", cloneURL}, gc.cloned); diff != "" {
		t.Errorf("Unexpected clones, diff=%s", diff)
	}
	if result.Revisions["madler/zlib"] != "1111111111111111111111111111111111111111" {
		t.Errorf("Unexpected revisions: %+v", result.Revisions)
	}
}

func TestRunSmokeFailureSkipsPublish(t *testing.T) {
	ctx := context.Background()
	gc := newFakeGithubClient()
	dc := &fakeDockerClient{
		targets: []string{"compress_fuzzer"},
		runErrs: map[string]error{
			"compress_fuzzer": fmt.Errorf("failed to run fuzzer: %w", fakeexec.FakeExitError{Status: 77}),
		},
		runOutputs: map[string][]byte{
			"compress_fuzzer": []byte("ERROR: AddressSanitizer: heap-buffer-overflow\nSUMMARY: AddressSanitizer"),
		},
	}
	store := &fakeStore{}
	p := newTestPipeline(gc, dc, store)

	result, err := p.Run(ctx, testProjectConfig())
	if err != nil {
		t.Fatalf("Unexpected error occured, err=%+v", err)
	}
	if result.Passed() {
		t.Fatal("Unexpected smoke pass")
	}
	if result.Published {
		t.Fatal("Unexpected publish of failed build")
	}
	if len(dc.pushed) != 0 {
		t.Fatalf("Unexpected pushed images: %+v", dc.pushed)
	}
	// Crashing builds are still archived for traceability.
	if len(result.Artifacts) != 2 {
		t.Fatalf("Unexpected artifact count: want=2, got=%d", len(result.Artifacts))
	}
}

func TestRunBuildImageError(t *testing.T) {
	ctx := context.Background()
	gc := newFakeGithubClient()
	dc := &fakeDockerClient{buildImageErr: errors.New("something occurs")}
	p := newTestPipeline(gc, dc, &fakeStore{})

	if _, err := p.Run(ctx, testProjectConfig()); err == nil {
		t.Fatal("Unexpected no error")
	}
	if len(dc.builtFuzzers) != 0 {
		t.Fatalf("Fuzzer build should not start after image build failure: %+v", dc.builtFuzzers)
	}
}

func TestRunWithoutStore(t *testing.T) {
	ctx := context.Background()
	t.Chdir(t.TempDir())
	gc := newFakeGithubClient()
	dc := &fakeDockerClient{targets: []string{"compress_fuzzer"}}
	p := newTestPipeline(gc, dc, nil)

	conf := testProjectConfig()
	conf.PushImage = false
	result, err := p.Run(ctx, conf)
	if err != nil {
		t.Fatalf("Unexpected error occured, err=%+v", err)
	}
	if len(result.Artifacts) != 2 {
		t.Fatalf("Unexpected artifact count: want=2, got=%d", len(result.Artifacts))
	}
	// Local archives must survive the work dir cleanup.
	for _, a := range result.Artifacts {
		if filepath.Dir(a) != "." {
			t.Errorf("Archive not in the current directory: %s", a)
		}
		if !strings.HasPrefix(a, "zlib-") || !strings.HasSuffix(a, ".tar.gz") {
			t.Errorf("Unexpected archive name: %s", a)
		}
		if _, err := os.Stat(a); err != nil {
			t.Errorf("Archive does not exist after run: %+v", err)
		}
	}
	if result.Published {
		t.Fatal("Unexpected published")
	}
}

func Test_resolvePath(t *testing.T) {
	cases := []struct {
		name    string
		baseDir string
		path    string
		want    string
	}{
		{
			name:    "OK joined",
			baseDir: "/work/definitions",
			path:    "projects/zlib/Dockerfile",
			want:    "/work/definitions/projects/zlib/Dockerfile",
		},
		{
			name: "OK no base",
			path: "projects/zlib/Dockerfile",
			want: "projects/zlib/Dockerfile",
		},
		{
			name:    "OK absolute path kept",
			baseDir: "/work/definitions",
			path:    "/abs/Dockerfile",
			want:    "/abs/Dockerfile",
		},
		{
			name:    "OK empty path",
			baseDir: "/work/definitions",
			path:    "",
			want:    "",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := resolvePath(c.baseDir, c.path)
			if got != c.want {
				t.Fatalf("Unexpected data match: want=%s, got=%s", c.want, got)
			}
		})
	}
}
