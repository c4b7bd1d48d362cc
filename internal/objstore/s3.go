// Package objstore fetches import files from S3-compatible object storage.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/logging"
	sc "github.com/dmitrijs2005/staffkeeper/internal/server/config"
)

// MaxObjectSize bounds how much of an import file is read into memory.
const MaxObjectSize = 32 << 20

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	getObject = func(c *s3.Client, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		return c.GetObject(ctx, in, optFns...)
	}
)

// Store reads objects from the configured bucket.
type Store struct {
	client *s3.Client
	bucket string
	logger logging.Logger
}

// New builds an S3 client with static credentials and the configured endpoint.
func New(ctx context.Context, cfg *sc.Config, l logging.Logger) (*Store, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &Store{client: client, bucket: cfg.S3Bucket, logger: l.With("module", "objstore")}, nil
}

// Fetch reads the object stored under key. Objects larger than MaxObjectSize
// are rejected.
func (s *Store) Fetch(ctx context.Context, key string) ([]byte, error) {
	out, err := getObject(s.client, ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, common.NewNotFoundError("object", key)
		}
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(io.LimitReader(out.Body, MaxObjectSize+1))
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	if len(b) > MaxObjectSize {
		return nil, common.NewValidationError(0, "file", fmt.Sprintf("object %s exceeds %d bytes", key, MaxObjectSize))
	}

	s.logger.Debug(ctx, "object fetched", "bucket", s.bucket, "key", key, "size", len(b))
	return b, nil
}
