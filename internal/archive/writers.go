package archive

import (
	"archive/tar"
	"archive/zip"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
)

// writeZip archives the directory src into w. Entry names are relative
// to src with forward slashes.
func writeZip(fs afero.Fs, w io.Writer, src string) error {
	zw := zip.NewWriter(w)
	err := walkRel(fs, src, func(rel string, info os.FileInfo, path string) error {
		if info.IsDir() {
			_, err := zw.Create(rel + "/")
			return err
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = rel
		hdr.Method = zip.Deflate
		out, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		return copyFile(fs, out, path)
	})
	if err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

// writeTarGz archives the directory src into w as gzip-compressed tar.
func writeTarGz(fs afero.Fs, w io.Writer, src string) error {
	gw := gzip.NewWriter(w)
	tw := tar.NewWriter(gw)
	err := walkRel(fs, src, func(rel string, info os.FileInfo, path string) error {
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = rel
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		return copyFile(fs, tw, path)
	})
	if err != nil {
		_ = tw.Close()
		_ = gw.Close()
		return err
	}
	if err := tw.Close(); err != nil {
		_ = gw.Close()
		return err
	}
	return gw.Close()
}

// walkRel visits every entry under src except src itself, passing the
// slash-separated relative name.
func walkRel(fs afero.Fs, src string, fn func(rel string, info os.FileInfo, path string) error) error {
	return afero.Walk(fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		return fn(filepath.ToSlash(rel), info, path)
	})
}

func copyFile(fs afero.Fs, w io.Writer, path string) error {
	f, err := fs.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
