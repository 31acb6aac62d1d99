package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ca-risken/common/pkg/logging"
	"github.com/fuzzops/builder/pkg/archive"
	"github.com/fuzzops/builder/pkg/common"
	"github.com/fuzzops/builder/pkg/config"
	"github.com/fuzzops/builder/pkg/docker"
	"github.com/fuzzops/builder/pkg/fuzz"
	"github.com/fuzzops/builder/pkg/github"
	"github.com/fuzzops/builder/pkg/storage"
)

const definitionsDirName = "definitions"

// Result is the outcome of one pipeline run.
type Result struct {
	Project   string
	ImageRef  string
	Revisions archive.RevisionRecord
	Reports   []*fuzz.SanitizerReport
	Artifacts []string
	Published bool
	StartedAt time.Time
	Duration  time.Duration
}

// Passed reports whether every fuzz target of every sanitizer survived the
// smoke run.
func (r *Result) Passed() bool {
	for _, rep := range r.Reports {
		if !rep.Passed() {
			return false
		}
	}
	return true
}

type Pipeline struct {
	githubClient github.GithubServiceClient
	dockerClient docker.DockerServiceClient
	smokeRunner  fuzz.SmokeRunner
	store        storage.ArtifactStore
	logger       logging.Logger
}

// NewPipeline wires the pipeline stages. store may be nil for local runs, in
// which case archives are written into the current directory and nothing is
// uploaded.
func NewPipeline(
	gc github.GithubServiceClient,
	dc docker.DockerServiceClient,
	sr fuzz.SmokeRunner,
	store storage.ArtifactStore,
	l logging.Logger,
) *Pipeline {
	return &Pipeline{
		githubClient: gc,
		dockerClient: dc,
		smokeRunner:  sr,
		store:        store,
		logger:       l,
	}
}

// Run drives all stages for one project. Control flows strictly forward: a
// stage failure aborts the run, there is no retry or rollback across stages.
func (p *Pipeline) Run(ctx context.Context, conf *config.ProjectConfig) (*Result, error) {
	start := time.Now()
	result := &Result{
		Project:   conf.Name,
		ImageRef:  conf.ImageRef(),
		StartedAt: start.UTC(),
	}

	workDir, err := common.CreateWorkDir(conf.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: project=%s, err=%w", conf.Name, err)
	}
	defer os.RemoveAll(workDir)

	srcDir, baseDir, revisions, err := p.checkout(ctx, conf, workDir)
	if err != nil {
		return nil, err
	}
	result.Revisions = revisions

	dockerfile := resolvePath(baseDir, conf.Dockerfile)
	contextDir := resolvePath(baseDir, conf.ContextDir)
	if err := p.dockerClient.BuildImage(ctx, conf.ImageRef(), dockerfile, contextDir); err != nil {
		return nil, err
	}

	for _, sanitizer := range conf.Sanitizers {
		outDir := filepath.Join(workDir, "out", sanitizer)
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create out directory: dir=%s, err=%w", outDir, err)
		}
		if err := p.dockerClient.BuildFuzzers(ctx, conf.ImageRef(), srcDir, outDir, sanitizer); err != nil {
			return nil, err
		}

		report, err := p.smokeRunner.Run(ctx, conf.Name, sanitizer, conf.RunnerImage, outDir)
		if err != nil {
			return nil, err
		}
		if _, err := fuzz.WriteReportFile(outDir, report); err != nil {
			return nil, err
		}
		result.Reports = append(result.Reports, report)

		key, err := p.archiveAndUpload(ctx, conf, sanitizer, outDir, workDir, revisions, start)
		if err != nil {
			return nil, err
		}
		if key != "" {
			result.Artifacts = append(result.Artifacts, key)
		}
	}

	if conf.PushImage {
		if !result.Passed() {
			p.logger.Warnf(ctx, "Skip image publish, smoke run failed: project=%s", conf.Name)
		} else {
			if err := p.dockerClient.PushImage(ctx, conf.ImageRef()); err != nil {
				return nil, err
			}
			result.Published = true
		}
	}

	result.Duration = time.Since(start)
	p.logger.Infof(ctx, "Pipeline finished: project=%s, passed=%t, artifacts=%d, duration=%s",
		conf.Name, result.Passed(), len(result.Artifacts), result.Duration)
	return result, nil
}

// checkout clones the build definitions repository (when configured) and the
// project source repository, and records the resolved revision of each.
func (p *Pipeline) checkout(ctx context.Context, conf *config.ProjectConfig, workDir string) (srcDir, baseDir string, revisions archive.RevisionRecord, err error) {
	revisions = archive.RevisionRecord{}

	if conf.DefinitionsURL != "" {
		baseDir = filepath.Join(workDir, definitionsDirName)
		if err := p.githubClient.Clone(ctx, "", conf.DefinitionsURL, baseDir); err != nil {
			return "", "", nil, err
		}
		rev, err := p.githubClient.HeadRevision(baseDir)
		if err != nil {
			return "", "", nil, err
		}
		revisions[conf.DefinitionsURL] = rev
		p.logger.Infof(ctx, "Checked out definitions: url=%s, revision=%s", conf.DefinitionsURL, rev)
	}

	cloneURL, err := p.resolveCloneURL(ctx, conf.GitURL)
	if err != nil {
		return "", "", nil, err
	}
	srcDir = filepath.Join(workDir, conf.CheckoutDir)
	if err := p.githubClient.Clone(ctx, "", cloneURL, srcDir); err != nil {
		return "", "", nil, err
	}
	rev, err := p.githubClient.HeadRevision(srcDir)
	if err != nil {
		return "", "", nil, err
	}
	revisions[conf.GitURL] = rev
	p.logger.Infof(ctx, "Checked out project source: url=%s, revision=%s", conf.GitURL, rev)
	return srcDir, baseDir, revisions, nil
}

// resolveCloneURL accepts either a full clone URL or an "owner/repo" shorthand
// resolved through the GitHub API.
func (p *Pipeline) resolveCloneURL(ctx context.Context, gitURL string) (string, error) {
	if strings.Contains(gitURL, "://") || strings.HasPrefix(gitURL, "git@") {
		return gitURL, nil
	}
	repo, err := p.githubClient.GetRepository(ctx, gitURL)
	if err != nil {
		return "", err
	}
	p.logger.Infof(ctx, "Resolved repository: name=%s, clone_url=%s", gitURL, repo.GetCloneURL())
	return repo.GetCloneURL(), nil
}

func (p *Pipeline) archiveAndUpload(ctx context.Context, conf *config.ProjectConfig, sanitizer, outDir, workDir string, revisions archive.RevisionRecord, ts time.Time) (string, error) {
	if _, err := archive.WriteManifest(outDir, revisions); err != nil {
		return "", err
	}
	name := archive.Name(conf.Name, sanitizer, ts)
	archivePath := filepath.Join(workDir, name)
	if p.store == nil {
		// The work dir is removed when the run ends, keep local archives
		// outside of it.
		archivePath = name
	}
	if err := archive.Create(outDir, archivePath); err != nil {
		return "", err
	}
	if p.store == nil {
		p.logger.Infof(ctx, "Skip artifact upload, no store configured: archive=%s", archivePath)
		return archivePath, nil
	}
	key := storage.ArtifactKey(conf.Name, name)
	if err := p.store.UploadFile(ctx, key, archivePath); err != nil {
		return "", err
	}
	return key, nil
}

func resolvePath(baseDir, p string) string {
	if baseDir == "" || p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}
