package main

import (
	"fmt"

	"github.com/fuzzops/builder/pkg/fuzz"
	"github.com/fuzzops/builder/pkg/pipeline"
	"github.com/fuzzops/builder/pkg/storage"
	"github.com/spf13/cobra"
)

var (
	pipelineBucket   string
	pipelineRegion   string
	pipelineEndpoint string
	pipelineRuns     int
	pipelinePush     bool
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run the full pipeline: checkout, build, smoke run, archive, publish",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conf, err := loadProjectConfig()
		if err != nil {
			return err
		}
		if pipelinePush {
			conf.PushImage = true
		}

		var store storage.ArtifactStore
		if pipelineBucket != "" {
			store, err = storage.NewS3Store(ctx, pipelineRegion, pipelineEndpoint, pipelineBucket, appLogger)
			if err != nil {
				return err
			}
		}
		dockerClient := newDockerClient()
		runner := fuzz.NewSmokeRunner(dockerClient, conf.RunnerImage, pipelineRuns, appLogger)
		p := pipeline.NewPipeline(newGithubClient(), dockerClient, runner, store, appLogger)

		result, err := p.Run(ctx, conf)
		if err != nil {
			return err
		}
		fmt.Printf("Project:   %s\n", result.Project)
		fmt.Printf("Image:     %s\n", result.ImageRef)
		for url, rev := range result.Revisions {
			fmt.Printf("Revision:  %s %s\n", url, rev)
		}
		for _, key := range result.Artifacts {
			fmt.Printf("Artifact:  %s\n", key)
		}
		fmt.Printf("Published: %t\n", result.Published)
		fmt.Printf("Duration:  %s\n", result.Duration)
		if !result.Passed() {
			return fmt.Errorf("smoke run failed: project=%s", result.Project)
		}
		return nil
	},
}

func init() {
	pipelineCmd.Flags().StringVar(&pipelineBucket, "bucket", "", "S3 bucket for archives (empty keeps archives local)")
	pipelineCmd.Flags().StringVar(&pipelineRegion, "region", "ap-northeast-1", "S3 region")
	pipelineCmd.Flags().StringVar(&pipelineEndpoint, "endpoint", "", "S3 endpoint override, for localstack and friends")
	pipelineCmd.Flags().IntVar(&pipelineRuns, "runs", fuzz.DefaultSmokeRuns, "libFuzzer iteration count per target")
	pipelineCmd.Flags().BoolVar(&pipelinePush, "push", false, "push the project image after a passing smoke run")
}
