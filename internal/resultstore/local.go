package resultstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	humanize "github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/kiteco/backdoor-sweep/internal/errors"
)

// LocalStore writes records into a directory on the local filesystem.
type LocalStore struct {
	dir    string
	ext    string
	logger *zap.Logger
}

// NewLocalStore returns a store for dir; the directory is created on first write.
func NewLocalStore(dir string, opts Options) *LocalStore {
	if opts.Ext == "" {
		opts.Ext = DefaultExt
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &LocalStore{dir: dir, ext: opts.Ext, logger: opts.Logger}
}

// Path is where the record for k lives.
func (s *LocalStore) Path(k Key) string {
	return filepath.Join(s.dir, k.Name()+s.ext)
}

// Put writes to a temporary file in the same directory and renames it into place, so
// readers never observe a partial record.
func (s *LocalStore) Put(ctx context.Context, k Key, rec Record) (string, error) {
	path := s.Path(k)
	if err := ctx.Err(); err != nil {
		return "", errors.Persistence(path, err)
	}
	if err := os.MkdirAll(s.dir, os.ModePerm); err != nil {
		return "", errors.Persistence(path, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+k.Name()+".tmp*")
	if err != nil {
		return "", errors.Persistence(path, err)
	}
	defer os.Remove(tmp.Name())

	err = Encode(tmp, s.ext, &rec)
	err = errors.Combine(err, tmp.Close())
	if err != nil {
		return "", errors.Persistence(path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", errors.Persistence(path, err)
	}

	var size uint64
	if fi, err := os.Stat(path); err == nil {
		size = uint64(fi.Size())
	}
	s.logger.Info("wrote result",
		zap.String("path", path),
		zap.Int("rows", len(rec.Err)),
		zap.String("size", humanize.Bytes(size)))
	return path, nil
}

// Get reads the record for k.
func (s *LocalStore) Get(ctx context.Context, k Key) (Record, error) {
	path := s.Path(k)
	f, err := os.Open(path)
	if err != nil {
		return Record{}, errors.Persistence(path, err)
	}
	defer f.Close()

	rec, err := Decode(f, s.ext)
	if err != nil {
		return Record{}, errors.Persistence(path, err)
	}
	return rec, nil
}

// List returns the keys of records with this store's extension.
func (s *LocalStore) List(ctx context.Context) ([]Key, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Persistence(s.dir, err)
	}

	var keys []Key
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, s.ext) {
			continue
		}
		if k, ok := ParseKey(strings.TrimSuffix(name, s.ext)); ok && k.Name()+s.ext == name {
			keys = append(keys, k)
		}
	}
	SortKeys(keys)
	return keys, nil
}
