// Package archive builds and caches folder archives for download.
// Archives are a reproducible cache, never authoritative storage: the
// scratch directory is created at process start and erased at stop.
package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"bunsho/internal/workpool"
)

// Format selects the archive encoding.
type Format string

const (
	FormatZip   Format = "zip"
	FormatTarGz Format = "tar.gz"
)

const partialSuffix = ".partial"

// ErrBadFormat reports an unsupported archive format request.
var ErrBadFormat = errors.New("invalid archive type was requested")

// ParseFormat validates the client-requested extension.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatZip, FormatTarGz:
		return Format(s), nil
	default:
		return "", ErrBadFormat
	}
}

// Cache synthesizes archives on demand and reuses them across repeated
// requests for the same folder and format.
type Cache struct {
	fs     afero.Fs
	dir    string
	pool   *workpool.Pool
	group  singleflight.Group
	builds atomic.Int64
}

// New creates a cache writing into the scratch directory dir on fs.
func New(fs afero.Fs, dir string, pool *workpool.Pool) *Cache {
	return &Cache{fs: fs, dir: dir, pool: pool}
}

// Get returns the path of an archive of src in the requested format,
// building it first if no finished archive exists. Concurrent requests
// for the same key share a single build.
func (c *Cache) Get(ctx context.Context, src string, format Format) (string, error) {
	out := c.keyPath(src, format)
	v, err, _ := c.group.Do(out, func() (any, error) {
		if _, err := c.fs.Stat(out); err == nil {
			// Finished archive already cached. Partial files never
			// reach this name: builds write to a temporary name and
			// rename on success.
			return out, nil
		}
		if err := c.build(ctx, src, out, format); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// keyPath derives the deterministic cache file name: the confined
// source path with separators flattened, plus the format extension.
func (c *Cache) keyPath(src string, format Format) string {
	flat := strings.ReplaceAll(filepath.Clean(src), string(filepath.Separator), "_")
	return filepath.Join(c.dir, flat+"."+string(format))
}

// build synthesizes the archive on the worker pool, writing to a
// temporary name and renaming atomically so a crashed or cancelled
// build is never mistaken for a finished archive.
func (c *Cache) build(ctx context.Context, src, out string, format Format) error {
	c.builds.Add(1)
	return c.pool.Do(ctx, func() error {
		tmp := out + partialSuffix
		f, err := c.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
		if err != nil {
			return err
		}

		switch format {
		case FormatZip:
			err = writeZip(c.fs, f, src)
		case FormatTarGz:
			err = writeTarGz(c.fs, f, src)
		default:
			err = ErrBadFormat
		}
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = c.fs.Remove(tmp)
			return err
		}
		return c.fs.Rename(tmp, out)
	})
}
