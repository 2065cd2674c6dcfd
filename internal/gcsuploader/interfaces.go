package gcsuploader

import (
	"context"
	"io"
)

// ObjectStore is the subset of bucket operations the uploader needs.
type ObjectStore interface {
	Put(ctx context.Context, object string, r io.Reader) error
	Get(ctx context.Context, object string) ([]byte, error)
}
