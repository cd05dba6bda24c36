// Package blobstore optionally mirrors a finished job's output_dir into an
// S3-compatible object store, the "object storage mirroring" supplemented
// feature SPEC_FULL.md §13 adds from the original's copy_static_files
// hint, generalized to MinIO per the pack's minio-go usage. STORAGE_DIR
// remains the source of truth; mirroring is best-effort and never fails
// a task.
package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Mirror uploads files to a configured bucket.
type Mirror struct {
	client *minio.Client
	bucket string
}

// NewMirror connects to endpoint with static credentials. Returns nil,nil
// if endpoint is empty (mirroring disabled).
func NewMirror(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Mirror, error) {
	if endpoint == "" {
		return nil, nil
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	return &Mirror{client: client, bucket: bucket}, nil
}

// EnsureBucket creates the bucket if it doesn't already exist.
func (m *Mirror) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", m.bucket, err)
		}
	}
	return nil
}

// MirrorDir uploads every regular file under dir to
// <bucket>/<taskID>/<relative path>. Errors are returned to the caller
// (the dispatcher logs and ignores them — mirroring never fails a task).
func (m *Mirror) MirrorDir(ctx context.Context, taskID, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		objectName := filepath.ToSlash(filepath.Join(taskID, rel))
		_, err = m.client.FPutObject(ctx, m.bucket, objectName, path, minio.PutObjectOptions{})
		if err != nil {
			return fmt.Errorf("upload %s: %w", objectName, err)
		}
		return nil
	})
}
