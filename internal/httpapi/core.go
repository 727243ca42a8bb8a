package httpapi

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"

	"bunsho/internal/files"
	"bunsho/internal/fsutil"
)

// handleList enumerates the immediate children of a folder inside the
// resolved location.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	loc := locationFrom(r.Context())
	dir, err := fsutil.Confine(loc.Dir, r.PathValue("folder"))
	if err != nil {
		writeError(w, http.StatusBadRequest, msgTraversal)
		return
	}

	listing, err := s.Files.List(r.Context(), dir)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgBadArguments)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listing": listing})
}

// handleMove moves or renames a file or folder, chosen by the explicit
// rename flag: rename targets a sibling path, move targets a directory
// destination. Requires the move permission.
func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if !permissions(claims).Move {
		forbid(w, "move files")
		return
	}

	var req struct {
		NewPath string `json:"new_path"`
		Rename  *bool  `json:"rename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Rename == nil || req.NewPath == "" {
		writeError(w, http.StatusBadRequest, msgBadArguments)
		return
	}

	loc := locationFrom(r.Context())
	src, err := fsutil.Confine(loc.Dir, r.PathValue("filepath"))
	if err != nil {
		writeError(w, http.StatusBadRequest, msgTraversal)
		return
	}
	dst, err := fsutil.Confine(loc.Dir, req.NewPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgTraversal)
		return
	}

	if *req.Rename {
		err = s.Files.Rename(r.Context(), src, dst)
	} else {
		err = s.Files.Move(r.Context(), src, dst)
	}
	switch err {
	case nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
	case files.ErrNotExist, files.ErrNotDirectory:
		writeError(w, http.StatusNotFound, msgNotFound)
	case files.ErrCollision:
		writeError(w, http.StatusBadRequest, msgCollision)
	default:
		writeError(w, http.StatusInternalServerError, msgServerError)
	}
}

// handleRemove deletes a file or a directory tree. Requires the delete
// permission.
func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if !permissions(claims).Delete {
		forbid(w, "delete files")
		return
	}

	loc := locationFrom(r.Context())
	target, err := fsutil.Confine(loc.Dir, r.PathValue("filepath"))
	if err != nil {
		writeError(w, http.StatusBadRequest, msgTraversal)
		return
	}

	switch err := s.Files.Remove(r.Context(), target); err {
	case nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
	case files.ErrNotExist:
		writeError(w, http.StatusNotFound, msgNotFound)
	default:
		writeError(w, http.StatusInternalServerError, msgServerError)
	}
}

// handleUpdateConfig re-reads the configuration file. Admin only.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	if !permissions(claimsFrom(r.Context())).Admin {
		writeError(w, http.StatusForbidden, msgNeedAdmin)
		return
	}
	if err := s.Cfg.Reload(); err != nil {
		s.Logger.Error("config reload failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Could not reload the configuration.")
		return
	}
	s.Logger.Info("configuration reloaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// joinUserPath joins client-supplied folder and filename parts into a
// single slash-form path. Only the base of filename is used; the folder
// part is kept verbatim so confinement sees any traversal in it.
func joinUserPath(folder, filename string) string {
	return strings.TrimRight(folder, "/") + "/" + filepath.Base(filename)
}
