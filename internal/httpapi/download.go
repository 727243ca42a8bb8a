package httpapi

import (
	"net/http"
	"path/filepath"
	"strings"

	"bunsho/internal/archive"
	"bunsho/internal/fsutil"
)

// handleDownloadSingle streams one file with a content-sniffed MIME
// type and an attachment disposition.
func (s *Server) handleDownloadSingle(w http.ResponseWriter, r *http.Request) {
	loc := locationFrom(r.Context())
	target, err := fsutil.Confine(loc.Dir, r.PathValue("filepath"))
	if err != nil {
		writeError(w, http.StatusBadRequest, msgTraversal)
		return
	}

	st, err := s.FS.Stat(target)
	if err != nil {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	if st.IsDir() {
		writeError(w, http.StatusBadRequest, "Folders cannot be downloaded by this endpoint.")
		return
	}

	if mt, err := s.Files.DetectMIME(r.Context(), target); err == nil {
		w.Header().Set("content-type", mt)
	}
	s.serveFile(w, r, target, filepath.Base(target))
}

// handleDownloadFolder streams a folder as a zip or tar.gz archive,
// reusing a cached archive when one exists for the same folder and
// format.
func (s *Server) handleDownloadFolder(w http.ResponseWriter, r *http.Request) {
	loc := locationFrom(r.Context())
	src, err := fsutil.Confine(loc.Dir, r.PathValue("folder"))
	if err != nil {
		writeError(w, http.StatusBadRequest, msgTraversal)
		return
	}

	st, err := s.FS.Stat(src)
	if err != nil {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	if !st.IsDir() {
		writeError(w, http.StatusBadRequest, "Files cannot be downloaded by this endpoint.")
		return
	}

	format, err := archive.ParseFormat(r.URL.Query().Get("ext"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	archivePath, err := s.Archives.Get(r.Context(), src, format)
	if err != nil {
		s.Logger.Error("archive build failed", "src", src, "err", err)
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}

	switch format {
	case archive.FormatZip:
		w.Header().Set("content-type", "application/zip")
	case archive.FormatTarGz:
		w.Header().Set("content-type", "application/gzip")
	}
	s.serveFile(w, r, archivePath, filepath.Base(src)+"."+string(format))
}

// serveFile streams path from the server filesystem with an attachment
// disposition named downloadName.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, path, downloadName string) {
	f, err := s.FS.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}

	name := strings.ReplaceAll(downloadName, `"`, "")
	w.Header().Set("content-disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, downloadName, st.ModTime(), f)
}
