package gcsuploader

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/artifact-engine/internal/logger"
)

// BucketStore is an ObjectStore backed by one Google Cloud Storage bucket.
// It assumes Application Default Credentials are configured (gcloud auth application-default login).
type BucketStore struct {
	client *storage.Client
	bucket string
}

// NewBucketStore creates a storage client for bucket.
func NewBucketStore(ctx context.Context, bucket string) (*BucketStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewBucketStore: create storage client: %w", err)
	}
	return &BucketStore{client: client, bucket: bucket}, nil
}

// Close releases the storage client.
func (s *BucketStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Put streams r into object.
func (s *BucketStore) Put(ctx context.Context, object string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy to gs://%s/%s: %w", s.bucket, object, err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize gs://%s/%s: %w", s.bucket, object, err)
	}
	return nil
}

// Uploader mirrors local files into an ObjectStore.
type Uploader struct {
	store ObjectStore
}

// NewUploader returns an Uploader writing to store.
func NewUploader(store ObjectStore) *Uploader {
	return &Uploader{store: store}
}

// UploadFile uploads a local file under the given object name.
func (u *Uploader) UploadFile(ctx context.Context, object, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("UploadFile: open file %q: %w", filePath, err)
	}
	defer f.Close()

	if err := u.store.Put(ctx, object, f); err != nil {
		return fmt.Errorf("UploadFile: %w", err)
	}
	return nil
}

// UploadDir uploads every regular file under dir, keyed by prefix plus the
// slash-separated path relative to dir. Hidden files and directories are
// skipped. It returns the number of objects written.
func (u *Uploader) UploadDir(ctx context.Context, dir, prefix string) (int, error) {
	log := logger.FromContext(ctx)
	info, err := os.Stat(dir)
	if err != nil {
		return 0, fmt.Errorf("UploadDir: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("UploadDir: %s is not a directory", dir)
	}

	count := 0
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		object := ObjectName(prefix, rel)
		if err := u.UploadFile(ctx, object, p); err != nil {
			return err
		}
		log.Debug().Str("file", p).Str("object", object).Msg("Uploaded file")
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("UploadDir: %w", err)
	}
	log.Info().Str("dir", dir).Str("prefix", prefix).Int("objects", count).Msg("Uploaded output tree")
	return count, nil
}

// ObjectName joins prefix and a local relative path with forward slashes.
func ObjectName(prefix, rel string) string {
	return strings.TrimPrefix(path.Join(prefix, filepath.ToSlash(rel)), "/")
}

// ParseGCSURI splits gs://bucket/path into bucket and object path. The
// object path may be empty when the URI names only a bucket.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	trimmed := strings.TrimPrefix(uri, "gs://")
	bucket, object, _ = strings.Cut(trimmed, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no bucket): %s", uri)
	}
	return bucket, strings.TrimSuffix(object, "/"), nil
}
