// Package archive exports processed datasets as CSV, to local disk or to an
// S3-compatible object store.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/csvio"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/etl"
)

// LatestKey always holds the most recent run.
const LatestKey = "processed/latest.csv"

// FileSink writes the processed dataset to Path, replacing any previous file.
type FileSink struct {
	Path string
}

func (s FileSink) Name() string { return "processed-csv" }

func (s FileSink) Publish(_ context.Context, res etl.Result) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	tmp := s.Path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := csvio.WriteAnnotated(f, res.Rows); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", s.Path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, s.Path)
}

// ObjectConfig holds the S3 endpoint settings.
type ObjectConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Secure    bool
}

// ObjectSink uploads each run as processed/<run_id>.csv and refreshes LatestKey.
type ObjectSink struct {
	client *minio.Client
	bucket string
}

// NewObjectSink connects to the object store and creates the bucket if needed.
func NewObjectSink(ctx context.Context, cfg ObjectConfig) (*ObjectSink, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &ObjectSink{client: client, bucket: cfg.Bucket}, nil
}

// RunKey is the object key of a single run's export.
func RunKey(runID string) string {
	return "processed/" + runID + ".csv"
}

func (s *ObjectSink) Name() string { return "s3" }

func (s *ObjectSink) Publish(ctx context.Context, res etl.Result) error {
	var buf bytes.Buffer
	if err := csvio.WriteAnnotated(&buf, res.Rows); err != nil {
		return err
	}
	body := buf.Bytes()

	for _, key := range []string{RunKey(res.RunID), LatestKey} {
		_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)),
			minio.PutObjectOptions{
				ContentType:  "text/csv",
				UserMetadata: map[string]string{"run-id": res.RunID},
			})
		if err != nil {
			return fmt.Errorf("s3 put object %s: %w", key, err)
		}
	}
	return nil
}
