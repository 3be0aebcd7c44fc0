package mirrorstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client the store uses. *s3.Client
// satisfies it.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

const expiresMetadata = "burp-expires-at"

// S3Store keeps snapshots as objects under a key prefix. The expiry is
// stored in object metadata; bucket lifecycle rules should delete old
// objects.
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	store := mirrorstore.NewS3Store(s3.NewFromConfig(cfg), "my-bucket", "burp/")
type S3Store struct {
	client S3API
	bucket string
	prefix string
	closed atomic.Bool
}

// NewS3Store creates a store writing to bucket under prefix.
func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) key(name string) string {
	return s.prefix + name + ".json"
}

// Save uploads the snapshot object.
func (s *S3Store) Save(ctx context.Context, name string, data []byte, expiresAt time.Time) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			expiresMetadata: strconv.FormatInt(expiresAt.UnixMilli(), 10),
		},
	})
	if err != nil {
		return fmt.Errorf("mirrorstore: s3 put %q: %w", name, err)
	}
	return nil
}

// Load downloads the snapshot object if it exists and has not expired.
func (s *S3Store) Load(ctx context.Context, name string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, nil
		}
		return nil, fmt.Errorf("mirrorstore: s3 get %q: %w", name, err)
	}
	defer out.Body.Close()

	if raw, ok := out.Metadata[expiresMetadata]; ok {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err == nil && time.Now().After(time.UnixMilli(ms)) {
			return nil, nil
		}
	}
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("mirrorstore: s3 read %q: %w", name, err)
	}
	return data, nil
}

// Delete removes the snapshot object.
func (s *S3Store) Delete(ctx context.Context, name string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return fmt.Errorf("mirrorstore: s3 delete %q: %w", name, err)
	}
	return nil
}

// Close marks the store closed. The client is owned by the caller.
func (s *S3Store) Close() error {
	s.closed.Store(true)
	return nil
}
