package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the subset of *s3.Client the area uses.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Area stores one object per key in an S3 bucket.
//
// Example usage:
//
//	client := s3.New(s3.Options{Region: "eu-west-1", Credentials: creds})
//	area := storage.NewS3Area(client, "my-bucket", storage.WithS3Prefix("prefs/"))
type S3Area struct {
	client S3API
	bucket string
	prefix string
	closed atomic.Bool
}

// S3AreaOption configures S3Area behavior.
type S3AreaOption func(*S3Area)

// WithS3Prefix sets the object key prefix.
// Default: "storesync/".
func WithS3Prefix(prefix string) S3AreaOption {
	return func(s *S3Area) {
		s.prefix = prefix
	}
}

// NewS3Area creates a new S3-backed storage area.
func NewS3Area(client S3API, bucket string, opts ...S3AreaOption) *S3Area {
	s := &S3Area{
		client: client,
		bucket: bucket,
		prefix: "storesync/",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *S3Area) objectKey(key string) string {
	return s.prefix + key
}

// GetItem implements Area.
func (s *S3Area) GetItem(ctx context.Context, key string) (string, bool, error) {
	if s.closed.Load() {
		return "", false, ErrAreaClosed{}
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("s3 get %q: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", false, fmt.Errorf("s3 read %q: %w", key, err)
	}
	return string(data), true, nil
}

// SetItem implements Area.
func (s *S3Area) SetItem(ctx context.Context, key, value string) error {
	if s.closed.Load() {
		return ErrAreaClosed{}
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        strings.NewReader(value),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %q: %w", key, err)
	}
	return nil
}

// RemoveItem implements Area.
func (s *S3Area) RemoveItem(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ErrAreaClosed{}
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("s3 delete %q: %w", key, err)
	}
	return nil
}

// Keys implements Lister.
func (s *S3Area) Keys(ctx context.Context) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrAreaClosed{}
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, strings.TrimPrefix(aws.ToString(obj.Key), s.prefix))
		}
	}
	return keys, nil
}

// Close marks the area closed. The client is not closed.
func (s *S3Area) Close() error {
	s.closed.Store(true)
	return nil
}

func isS3NotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
