package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"bunsho/internal/fsutil"
)

// handleUploadMetadata is phase 1 of the two-phase upload: it validates
// the destination (permission, location scope, confinement, collision)
// before any bytes are accepted, and returns a single-use UUID for the
// stream phase. Requires the write permission.
func (s *Server) handleUploadMetadata(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if !permissions(claims).Write {
		forbid(w, "write files")
		return
	}

	var req struct {
		Location string `json:"location"`
		Folder   string `json:"folder"`
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Location == "" || req.Filename == "" {
		writeError(w, http.StatusBadRequest, msgBadArguments)
		return
	}

	loc, ok := s.Cfg.LocationByName(req.Location)
	if !ok {
		writeError(w, http.StatusNotFound, "The provided location was not found.")
		return
	}
	if claims.AuthorizedLocations == nil || !claims.AuthorizedLocations.Contains(loc.Name) {
		writeError(w, http.StatusForbidden, msgLocationForbidden)
		return
	}

	dest, err := fsutil.Confine(loc.Dir, joinUserPath(req.Folder, req.Filename))
	if err != nil {
		writeError(w, http.StatusBadRequest, msgTraversal)
		return
	}
	// The destination folder must already exist; uploads never create
	// directories.
	if st, err := s.FS.Stat(filepath.Dir(dest)); err != nil || !st.IsDir() {
		writeError(w, http.StatusBadRequest, msgTraversal)
		return
	}
	if _, err := s.FS.Stat(dest); err == nil {
		writeError(w, http.StatusBadRequest, msgCollision)
		return
	}

	id := s.Sessions.CreateReservation(claims.Username, dest)
	writeJSON(w, http.StatusOK, map[string]string{"uuid": id})
}

// handleUploadStream is phase 2: the request body is streamed to the
// reserved destination. The reservation is consumed only after the
// stream completes, so a failed attempt can be retried; a concurrent
// second stream for the same UUID observes not-found.
func (s *Server) handleUploadStream(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if !permissions(claims).Write {
		forbid(w, "write files")
		return
	}

	id := r.URL.Query().Get("uuid")
	res, err := s.Sessions.AcquireReservation(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "The specified UUID was not found.")
		return
	}

	f, err := s.FS.OpenFile(res.Path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		s.Sessions.ReleaseReservation(id)
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}

	_, err = io.Copy(f, r.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// Keep the reservation alive so the client can retry phase 2.
		// The partial file stays behind but a later attempt truncates it.
		s.Sessions.ReleaseReservation(id)
		writeError(w, http.StatusInternalServerError, "Upload failed.")
		return
	}

	s.Sessions.CompleteReservation(id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}
