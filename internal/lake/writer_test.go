package lake

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	puts       []*s3.PutObjectInput
	putErr     error
	headErr    error
}

func (f *fakeS3) PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.puts = append(f.puts, input)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, input *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func fixedClock() time.Time {
	return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
}

func TestLandWritesGzippedNDJSON(t *testing.T) {
	fake := &fakeS3{}
	writer := newWriterWithAPI(fake, "bmd-analytics-data", "bakery", fixedClock)

	records := []json.RawMessage{
		json.RawMessage(`{"id":1,"name":"#1001"}`),
		json.RawMessage(`{"id":2,"name":"#1002"}`),
	}

	key, err := writer.Land(context.Background(), "orders", records)
	require.NoError(t, err)

	assert.Regexp(t, `^bakery/raw/orders/dt=2026-08-30/[0-9a-f-]+\.ndjson\.gz$`, key)
	require.Len(t, fake.puts, 1)

	put := fake.puts[0]
	assert.Equal(t, "bmd-analytics-data", *put.Bucket)
	assert.Equal(t, key, *put.Key)
	assert.Equal(t, "application/x-ndjson", *put.ContentType)

	// Body decompresses to one record per line
	compressed, err := io.ReadAll(put.Body)
	require.NoError(t, err)
	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	require.NoError(t, err)
	lines, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "{\"id\":1,\"name\":\"#1001\"}\n{\"id\":2,\"name\":\"#1002\"}\n", string(lines))
}

func TestLandEmptyPageIsNoop(t *testing.T) {
	fake := &fakeS3{}
	writer := newWriterWithAPI(fake, "bucket", "", fixedClock)

	key, err := writer.Land(context.Background(), "orders", nil)
	require.NoError(t, err)
	assert.Empty(t, key)
	assert.Empty(t, fake.puts)
}

func TestLandUploadFailure(t *testing.T) {
	fake := &fakeS3{putErr: fmt.Errorf("access denied")}
	writer := newWriterWithAPI(fake, "bucket", "", fixedClock)

	_, err := writer.Land(context.Background(), "orders", []json.RawMessage{json.RawMessage(`{}`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upload page")
}

func TestPing(t *testing.T) {
	writer := newWriterWithAPI(&fakeS3{}, "bucket", "", fixedClock)
	assert.NoError(t, writer.Ping(context.Background()))

	writer = newWriterWithAPI(&fakeS3{headErr: fmt.Errorf("no such bucket")}, "bucket", "", fixedClock)
	assert.Error(t, writer.Ping(context.Background()))
}
