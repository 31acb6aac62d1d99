package builder

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/ca-risken/common/pkg/logging"
	mimosasqs "github.com/ca-risken/common/pkg/sqs"
	"github.com/fuzzops/builder/pkg/config"
	"github.com/fuzzops/builder/pkg/message"
	"github.com/fuzzops/builder/pkg/pipeline"
)

type pipelineRunner interface {
	Run(ctx context.Context, conf *config.ProjectConfig) (*pipeline.Result, error)
}

type sqsHandler struct {
	pipeline pipelineRunner
	logger   logging.Logger
}

func NewHandler(p pipelineRunner, l logging.Logger) *sqsHandler {
	return &sqsHandler{
		pipeline: p,
		logger:   l,
	}
}

func (s *sqsHandler) HandleMessage(ctx context.Context, sqsMsg *types.Message) error {
	msgBody := aws.ToString(sqsMsg.Body)
	s.logger.Infof(ctx, "got message: %s", msgBody)
	msg, err := message.ParseMessage(msgBody)
	if err != nil {
		s.logger.Errorf(ctx, "Invalid message: msg=%s, err=%+v", msgBody, err)
		return mimosasqs.WrapNonRetryable(err)
	}
	requestID, err := s.logger.GenerateRequestID(msg.ProjectName)
	if err != nil {
		s.logger.Warnf(ctx, "Failed to generate requestID: err=%+v", err)
		requestID = msg.ProjectName
	}
	s.logger.Infof(ctx, "start build, RequestID=%s", requestID)

	conf := msg.ProjectConfig()
	result, err := s.pipeline.Run(ctx, conf)
	if err != nil {
		// Infra-level failures (registry, storage, docker daemon) may be
		// transient, leave the message retryable.
		s.logger.Errorf(ctx, "Failed to run pipeline: project=%s, err=%+v", msg.ProjectName, err)
		return err
	}
	if !result.Passed() {
		// A crashing fuzzer is deterministic, retrying the same revision
		// cannot succeed.
		err := fmt.Errorf("fuzzer smoke run failed: project=%s, revisions=%+v", msg.ProjectName, result.Revisions)
		s.logger.Notifyf(ctx, logging.ErrorLevel, "%+v", err)
		return mimosasqs.WrapNonRetryable(err)
	}
	s.logger.Infof(ctx, "end build, RequestID=%s, artifacts=%d, published=%t", requestID, len(result.Artifacts), result.Published)
	return nil
}
