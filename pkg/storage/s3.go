package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ca-risken/common/pkg/logging"
)

// ArtifactStore uploads build artifacts keyed by project name.
type ArtifactStore interface {
	Upload(ctx context.Context, key string, body io.Reader) error
	UploadFile(ctx context.Context, key, filePath string) error
}

type s3UploadAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type s3Store struct {
	uploader s3UploadAPI
	bucket   string
	logger   logging.Logger
}

func NewS3Store(ctx context.Context, region, endpoint, bucket string, l logging.Logger) (ArtifactStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &s3Store{
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		logger:   l,
	}, nil
}

// ArtifactKey builds the storage key for one archive: artifacts are grouped
// under a project-name prefix.
func ArtifactKey(project, archiveName string) string {
	return path.Join(project, archiveName)
}

func (s *s3Store) Upload(ctx context.Context, key string, body io.Reader) error {
	out, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("failed to upload artifact: bucket=%s, key=%s, err=%w", s.bucket, key, err)
	}
	s.logger.Infof(ctx, "Success to upload artifact, bucket=%s, key=%s, location=%s", s.bucket, key, out.Location)
	return nil
}

func (s *s3Store) UploadFile(ctx context.Context, key, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open artifact: path=%s, err=%w", filePath, err)
	}
	defer f.Close()
	return s.Upload(ctx, key, f)
}
