package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/go-kit/log/level"
	"github.com/sigilo/go-sigilo-server/global"
	"github.com/sigilo/go-sigilo-server/types"
)

// ArtifactStore is the blob storage boundary for source files and rendered
// artifacts
type ArtifactStore interface {
	Upload(ctx context.Context, key string, content []byte, contentType string) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// S3ArtifactService stores artifacts in the configured S3 bucket
type S3ArtifactService struct {
	env *types.Environment
}

func NewS3ArtifactService(env *types.Environment) *S3ArtifactService {
	return &S3ArtifactService{env: env}
}

// Upload stores content under key and returns the object URL
func (as *S3ArtifactService) Upload(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	uploadOutput, err := as.env.S3Uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(global.Conf.Storage.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		level.Error(global.Logger).Log("msg", "failed to upload artifact", "key", key, "err", err)
		return "", err
	}
	return uploadOutput.Location, nil
}

// Download retrieves the object content for key. A missing object maps to
// ErrNotFound.
func (as *S3ArtifactService) Download(ctx context.Context, key string) ([]byte, error) {
	buf := manager.NewWriteAtBuffer([]byte{})
	_, err := as.env.S3Downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(global.Conf.Storage.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound") {
			return nil, types.ErrNotFound
		}
		level.Error(global.Logger).Log("msg", "failed to download artifact", "key", key, "err", err)
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

// Delete removes the object under key
func (as *S3ArtifactService) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()
	_, err := as.env.S3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(global.Conf.Storage.Bucket),
		Key:    aws.String(key),
	})
	return err
}
