package resultstore

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Store persists one record per grid cell.
type Store interface {
	// Put writes rec under k, replacing any earlier record, and returns its location.
	Put(ctx context.Context, k Key, rec Record) (string, error)
	// Get reads the record stored under k.
	Get(ctx context.Context, k Key) (Record, error)
	// List returns the keys of all stored records, ordered by length then angle.
	List(ctx context.Context) ([]Key, error)
}

// Options configures Open.
type Options struct {
	// Ext selects encoding and compression, e.g. ".msgp" or ".json.gz".
	Ext string
	// Region is the AWS region for s3:// destinations; discovered from the bucket if empty.
	Region string
	Logger *zap.Logger
}

// Open returns a Store rooted at dir, which is either a local directory or an
// s3://bucket/prefix URI.
func Open(ctx context.Context, dir string, opts Options) (Store, error) {
	if opts.Ext == "" {
		opts.Ext = DefaultExt
	}
	if err := ValidateExt(opts.Ext); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if IsS3URI(dir) {
		return NewS3Store(ctx, dir, opts)
	}
	return NewLocalStore(dir, opts), nil
}

// IsS3URI returns true if the path is an s3 uri.
func IsS3URI(path string) bool {
	return strings.HasPrefix(path, "s3://")
}
