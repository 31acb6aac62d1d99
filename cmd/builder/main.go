package main

import (
	"context"
	"fmt"

	"github.com/ca-risken/common/pkg/logging"
	"github.com/ca-risken/common/pkg/profiler"
	mimosasqs "github.com/ca-risken/common/pkg/sqs"
	"github.com/ca-risken/common/pkg/tracer"
	"github.com/fuzzops/builder/pkg/builder"
	"github.com/fuzzops/builder/pkg/docker"
	"github.com/fuzzops/builder/pkg/fuzz"
	"github.com/fuzzops/builder/pkg/github"
	"github.com/fuzzops/builder/pkg/pipeline"
	"github.com/fuzzops/builder/pkg/sqs"
	"github.com/fuzzops/builder/pkg/storage"
	"github.com/gassara-kys/envconfig"
	"k8s.io/utils/exec"
)

const (
	nameSpace   = "fuzz"
	serviceName = "builder"
)

var appLogger = logging.NewLogger()

func getFullServiceName() string {
	return fmt.Sprintf("%s.%s", nameSpace, serviceName)
}

func main() {
	ctx := context.Background()
	var conf builder.AppConfig
	err := envconfig.Process("", &conf)
	if err != nil {
		appLogger.Fatal(ctx, err.Error())
	}

	pTypes, err := profiler.ConvertProfileTypeFrom(conf.ProfileTypes)
	if err != nil {
		appLogger.Fatal(ctx, err.Error())
	}
	pExporter, err := profiler.ConvertExporterTypeFrom(conf.ProfileExporter)
	if err != nil {
		appLogger.Fatal(ctx, err.Error())
	}
	pc := profiler.Config{
		ServiceName:  getFullServiceName(),
		EnvName:      conf.EnvName,
		ProfileTypes: pTypes,
		ExporterType: pExporter,
	}
	err = pc.Start()
	if err != nil {
		appLogger.Fatal(ctx, err.Error())
	}
	defer pc.Stop()

	tc := &tracer.Config{
		ServiceName: getFullServiceName(),
		Environment: conf.EnvName,
		Debug:       conf.TraceDebug,
	}
	tracer.Start(tc)
	defer tracer.Stop()

	githubClient := github.NewGithubClient(conf.GithubDefaultToken, conf.GithubBaseURL, appLogger)
	dockerClient := docker.NewDockerClient(conf.DockerPath, exec.New(), appLogger)
	smokeRunner := fuzz.NewSmokeRunner(dockerClient, conf.FuzzerRunnerImage, conf.SmokeRuns, appLogger)
	store, err := storage.NewS3Store(ctx, conf.ArtifactRegion, conf.ArtifactEndpoint, conf.ArtifactBucket, appLogger)
	if err != nil {
		appLogger.Fatalf(ctx, "Failed to create artifact store, err=%+v", err)
	}
	p := pipeline.NewPipeline(githubClient, dockerClient, smokeRunner, store, appLogger)
	handler := builder.NewHandler(p, appLogger)

	sqsConf := &sqs.SQSConfig{
		Debug:              conf.Debug,
		AWSRegion:          conf.AWSRegion,
		SQSEndpoint:        conf.SQSEndpoint,
		QueueName:          conf.FuzzerBuildQueueName,
		QueueURL:           conf.FuzzerBuildQueueURL,
		MaxNumberOfMessage: conf.MaxNumberOfMessage,
		WaitTimeSecond:     conf.WaitTimeSecond,
	}
	consumer, err := sqs.NewSQSConsumer(ctx, sqsConf, appLogger)
	if err != nil {
		appLogger.Fatalf(ctx, "Failed to create SQS consumer, err=%+v", err)
	}
	appLogger.Info(ctx, "Start the fuzzer-build SQS consumer server...")
	consumer.Start(ctx,
		mimosasqs.InitializeHandler(
			mimosasqs.RetryableErrorHandler(
				mimosasqs.TracingHandler(getFullServiceName(),
					mimosasqs.StatusLoggingHandler(appLogger, handler)))))
}
