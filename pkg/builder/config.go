package builder

type AppConfig struct {
	EnvName         string   `default:"local" split_words:"true"`
	TraceExporter   string   `split_words:"true" default:"nop"`
	ProfileExporter string   `split_words:"true" default:"nop"`
	ProfileTypes    []string `split_words:"true"`
	TraceDebug      bool     `split_words:"true" default:"false"`

	// sqs
	Debug string `default:"false"`

	AWSRegion   string `envconfig:"aws_region"    default:"ap-northeast-1"`
	SQSEndpoint string `envconfig:"sqs_endpoint"  default:"http://queue.middleware.svc.cluster.local:9324"`

	FuzzerBuildQueueName string `split_words:"true" default:"fuzzer-build"`
	FuzzerBuildQueueURL  string `split_words:"true" default:"http://queue.middleware.svc.cluster.local:9324/queue/fuzzer-build"`
	MaxNumberOfMessage   int32  `split_words:"true" default:"1"`
	WaitTimeSecond       int32  `split_words:"true" default:"20"`

	// github
	GithubDefaultToken string `split_words:"true"`
	GithubBaseURL      string `split_words:"true"`

	// docker
	DockerPath string `split_words:"true" default:"docker"`

	// artifact store
	ArtifactBucket   string `required:"true" split_words:"true" default:"fuzzer-artifacts"`
	ArtifactRegion   string `split_words:"true" default:"ap-northeast-1"`
	ArtifactEndpoint string `split_words:"true"`

	// smoke run
	FuzzerRunnerImage string `split_words:"true" default:"fuzzops/libfuzzer-runner"`
	SmokeRuns         int    `split_words:"true" default:"100"`
}
