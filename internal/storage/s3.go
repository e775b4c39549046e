package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/genmedia/server/internal/shared/config"
	apperrors "github.com/genmedia/server/internal/shared/errors"
)

// S3API is the slice of the S3 client surface the backend uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Presigner generates presigned GET URLs.
type S3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Backend stores media in an S3-compatible service. Works against AWS S3
// and Cloudflare R2 (path-style with a custom endpoint).
type S3Backend struct {
	client    S3API
	presigner S3Presigner
}

// NewS3Backend creates an S3 backend from storage configuration.
func NewS3Backend(cfg *config.StorageConfig) (*S3Backend, error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, apperrors.MissingConfig("storage.access_key_id")
	}

	creds := credentials.NewStaticCredentialsProvider(
		cfg.AccessKeyID,
		cfg.SecretAccessKey,
		"",
	)

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(creds),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Backend{
		client:    client,
		presigner: s3.NewPresignClient(client),
	}, nil
}

// NewS3BackendWithClient creates a backend over an existing client, for tests.
func NewS3BackendWithClient(client S3API, presigner S3Presigner) *S3Backend {
	return &S3Backend{client: client, presigner: presigner}
}

// Upload writes data to the bucket.
func (b *S3Backend) Upload(ctx context.Context, loc Location, data []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(loc.Bucket),
		Key:           aws.String(loc.Key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := b.client.PutObject(ctx, input); err != nil {
		return apperrors.StorageFailed(loc.String(), apperrors.OpUpload, "put object failed", err)
	}
	return nil
}

// Download reads the full object.
func (b *S3Backend) Download(ctx context.Context, loc Location) ([]byte, error) {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, apperrors.ObjectNotFound(loc.String(), apperrors.OpDownload)
		}
		return nil, apperrors.StorageFailed(loc.String(), apperrors.OpDownload, "get object failed", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, apperrors.StorageFailed(loc.String(), apperrors.OpDownload, "failed to read object body", err)
	}
	return data, nil
}

// Exists checks object metadata with a head request.
func (b *S3Backend) Exists(ctx context.Context, loc Location) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		var nf *types.NotFound
		if errors.As(err, &nsk) || errors.As(err, &nf) {
			return false, nil
		}
		return false, apperrors.StorageFailed(loc.String(), apperrors.OpExists, "head object failed", err)
	}
	return true, nil
}

// URL returns a presigned GET URL valid for the TTL.
func (b *S3Backend) URL(ctx context.Context, loc Location, ttl time.Duration) (string, error) {
	req, err := b.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", apperrors.StorageFailed(loc.String(), apperrors.OpURL, "presign get failed", err)
	}
	return req.URL, nil
}

// Delete removes the object.
func (b *S3Backend) Delete(ctx context.Context, loc Location) error {
	if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	}); err != nil {
		return apperrors.StorageFailed(loc.String(), apperrors.OpDelete, "delete object failed", err)
	}
	return nil
}
