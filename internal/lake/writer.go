package lake

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"whisk/pkg/errors"
	"whisk/pkg/models"
)

// s3API is the subset of the S3 client the writer uses
type s3API interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, input *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Writer lands raw API payloads in the object-storage bucket as
// date-partitioned, gzipped NDJSON. Keys follow the medallion layout:
// <prefix>/raw/<entity>/dt=YYYY-MM-DD/<uuid>.ndjson.gz
type Writer struct {
	api    s3API
	bucket string
	prefix string
	now    func() time.Time
}

// NewWriter builds a Writer from the lake configuration.
func NewWriter(ctx context.Context, cfg models.Lake, secretKey string) (*Writer, error) {
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrCodeRequiredField, "lake bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, secretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageAccess, "failed to load AWS configuration")
	}

	return &Writer{
		api:    s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		now:    time.Now,
	}, nil
}

// newWriterWithAPI wires a preconstructed client. Used in tests.
func newWriterWithAPI(api s3API, bucket, prefix string, now func() time.Time) *Writer {
	return &Writer{api: api, bucket: bucket, prefix: prefix, now: now}
}

// Land writes one page of raw records for an entity and returns the
// object key.
func (w *Writer) Land(ctx context.Context, entity string, records []json.RawMessage) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	for _, record := range records {
		if _, err := gz.Write(record); err != nil {
			return "", errors.Wrap(err, errors.ErrCodeStorageUpload, "failed to compress records")
		}
		if _, err := gz.Write([]byte("\n")); err != nil {
			return "", errors.Wrap(err, errors.ErrCodeStorageUpload, "failed to compress records")
		}
	}
	if err := gz.Close(); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorageUpload, "failed to finalize compressed page")
	}

	key := w.objectKey(entity)
	_, err := w.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(w.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     aws.String("application/x-ndjson"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return "", errors.StorageError("failed to upload page", w.bucket, key, err).AsRecoverable()
	}

	return key, nil
}

// Ping verifies the bucket is reachable and writable credentials exist.
func (w *Writer) Ping(ctx context.Context) error {
	_, err := w.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(w.bucket)})
	if err != nil {
		return errors.StorageError("bucket is not accessible", w.bucket, "", err)
	}
	return nil
}

func (w *Writer) objectKey(entity string) string {
	ts := w.now().UTC()
	return path.Join(
		w.prefix,
		"raw",
		entity,
		fmt.Sprintf("dt=%s", ts.Format("2006-01-02")),
		fmt.Sprintf("%s.ndjson.gz", uuid.NewString()),
	)
}
