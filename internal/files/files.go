// Package files implements directory listing, move/rename, and delete
// over an afero filesystem. All paths given to this package must
// already be confined to a location root by fsutil.
package files

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"

	"bunsho/internal/workpool"
)

var (
	// ErrNotExist reports a missing source file or folder.
	ErrNotExist = errors.New("file or folder was not found")
	// ErrNotDirectory reports a listing target that is not a directory.
	ErrNotDirectory = errors.New("not a directory")
	// ErrCollision reports a name collision at a move/rename destination.
	ErrCollision = errors.New("a file or folder with the same name already exists at the destination")
)

// Entry is one row of a directory listing. Directories report neither a
// MIME type nor a size.
type Entry struct {
	Name        string  `json:"name"`
	MIMEType    *string `json:"mimetype"`
	Size        *string `json:"size"`
	Created     int64   `json:"created"`
	IsDirectory bool    `json:"is_directory"`
}

// Service performs filesystem operations. FS is the OS filesystem in
// production and a memory filesystem in tests.
type Service struct {
	FS   afero.Fs
	Pool *workpool.Pool
}

// New constructs a Service over fs.
func New(fs afero.Fs, pool *workpool.Pool) *Service {
	return &Service{FS: fs, Pool: pool}
}

// List enumerates the immediate children of dir. MIME types are sniffed
// from file content on the worker pool.
func (s *Service) List(ctx context.Context, dir string) ([]Entry, error) {
	st, err := s.FS.Stat(dir)
	if err != nil {
		return nil, ErrNotExist
	}
	if !st.IsDir() {
		return nil, ErrNotDirectory
	}
	infos, err := afero.ReadDir(s.FS, dir)
	if err != nil {
		return nil, ErrNotDirectory
	}

	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		e := Entry{
			Name:        info.Name(),
			Created:     info.ModTime().Unix(),
			IsDirectory: info.IsDir(),
		}
		if !info.IsDir() {
			size := humanize.Bytes(uint64(info.Size()))
			e.Size = &size
			if mt, err := s.DetectMIME(ctx, filepath.Join(dir, info.Name())); err == nil {
				e.MIMEType = &mt
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// DetectMIME sniffs a file's MIME type from its leading bytes. The read
// and sniff run on the worker pool.
func (s *Service) DetectMIME(ctx context.Context, path string) (string, error) {
	var mt string
	err := s.Pool.Do(ctx, func() error {
		f, err := s.FS.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		detected, err := mimetype.DetectReader(f)
		if err != nil {
			return err
		}
		mt = detected.String()
		return nil
	})
	return mt, err
}

// Move relocates src into the directory destDir, keeping its base name.
// The destination directory must already exist and the final name must
// be free.
func (s *Service) Move(ctx context.Context, src, destDir string) error {
	if _, err := s.FS.Stat(src); err != nil {
		return ErrNotExist
	}
	st, err := s.FS.Stat(destDir)
	if err != nil {
		return ErrNotExist
	}
	if !st.IsDir() {
		return ErrNotDirectory
	}
	target := filepath.Join(destDir, filepath.Base(src))
	if _, err := s.FS.Stat(target); err == nil {
		return ErrCollision
	}
	return s.FS.Rename(src, target)
}

// Rename gives src the new path dst, which must not already exist.
func (s *Service) Rename(ctx context.Context, src, dst string) error {
	if _, err := s.FS.Stat(src); err != nil {
		return ErrNotExist
	}
	if _, err := s.FS.Stat(dst); err == nil {
		return ErrCollision
	}
	return s.FS.Rename(src, dst)
}

// Remove deletes a file, or a directory tree recursively.
func (s *Service) Remove(ctx context.Context, path string) error {
	st, err := s.FS.Stat(path)
	if err != nil {
		return ErrNotExist
	}
	if st.IsDir() {
		return s.FS.RemoveAll(path)
	}
	return s.FS.Remove(path)
}
