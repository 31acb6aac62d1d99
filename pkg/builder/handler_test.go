package builder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/ca-risken/common/pkg/logging"
	"github.com/fuzzops/builder/pkg/config"
	"github.com/fuzzops/builder/pkg/fuzz"
	"github.com/fuzzops/builder/pkg/pipeline"
)

type fakePipeline struct {
	gotConf *config.ProjectConfig
	result  *pipeline.Result
	err     error
}

func (f *fakePipeline) Run(ctx context.Context, conf *config.ProjectConfig) (*pipeline.Result, error) {
	f.gotConf = conf
	return f.result, f.err
}

func passedResult() *pipeline.Result {
	return &pipeline.Result{
		Project:   "zlib",
		Artifacts: []string{"zlib/zlib-address-20200401-1230.tar.gz"},
		Reports: []*fuzz.SanitizerReport{
			{
				Project:   "zlib",
				Sanitizer: "address",
				StartedAt: time.Now().UTC(),
				Results:   []fuzz.TargetResult{{Name: "compress_fuzzer", Passed: true}},
			},
		},
	}
}

func failedResult() *pipeline.Result {
	r := passedResult()
	r.Reports[0].Results[0].Passed = false
	r.Reports[0].Results[0].Detail = "libFuzzer crash"
	return r
}

func TestHandleMessage(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		result  *pipeline.Result
		runErr  error
		wantErr bool
		wantRun bool
	}{
		{
			name:    "OK",
			body:    `{"project_name":"zlib","git_url":"https://github.com/madler/zlib.git"}`,
			result:  passedResult(),
			wantRun: true,
		},
		{
			name:    "NG invalid message",
			body:    `invalid`,
			wantErr: true,
		},
		{
			name:    "NG missing git_url",
			body:    `{"project_name":"zlib"}`,
			wantErr: true,
		},
		{
			name:    "NG pipeline error",
			body:    `{"project_name":"zlib","git_url":"https://github.com/madler/zlib.git"}`,
			runErr:  errors.New("something error"),
			wantErr: true,
			wantRun: true,
		},
		{
			name:    "NG smoke failure",
			body:    `{"project_name":"zlib","git_url":"https://github.com/madler/zlib.git"}`,
			result:  failedResult(),
			wantErr: true,
			wantRun: true,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ctx := context.Background()
			p := &fakePipeline{result: c.result, err: c.runErr}
			handler := NewHandler(p, logging.NewLogger())
			err := handler.HandleMessage(ctx, &types.Message{Body: aws.String(c.body)})
			if c.wantErr && err == nil {
				t.Fatal("Unexpected no error")
			}
			if !c.wantErr && err != nil {
				t.Fatalf("Unexpected error occured, err=%+v", err)
			}
			if c.wantRun && p.gotConf == nil {
				t.Fatal("Pipeline was not invoked")
			}
			if !c.wantRun && p.gotConf != nil {
				t.Fatal("Pipeline was invoked for invalid message")
			}
			if c.wantRun && p.gotConf != nil && p.gotConf.Name != "zlib" {
				t.Fatalf("Unexpected project: got=%s", p.gotConf.Name)
			}
		})
	}
}
