package gcsuploader

import (
	"context"
	"fmt"
	"io"
)

// Get reads a whole object.
func (s *BucketStore) Get(ctx context.Context, object string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open gs://%s/%s: %w", s.bucket, object, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", s.bucket, object, err)
	}
	return data, nil
}

// FetchFromGCS downloads the object named by a gs:// URI.
func FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	bucket, object, err := ParseGCSURI(gcsURI)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: %w", err)
	}
	if object == "" {
		return nil, fmt.Errorf("FetchFromGCS: invalid GCS URI (no object path): %s", gcsURI)
	}

	store, err := NewBucketStore(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: %w", err)
	}
	defer store.Close()

	data, err := store.Get(ctx, object)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: %w", err)
	}
	return data, nil
}
