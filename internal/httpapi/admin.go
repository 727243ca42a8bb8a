package httpapi

import (
	"encoding/json"
	"net/http"
	"regexp"

	"bunsho/internal/auth"
	"bunsho/internal/store"
)

// usernameRe enforces a conservative username pattern.
var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,63}$`)

// handleListUsers returns every user record. Admin only.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if !permissions(claimsFrom(r.Context())).Admin {
		writeError(w, http.StatusForbidden, msgNeedAdmin)
		return
	}
	users, err := s.Store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}
	out := make([]map[string]any, 0, len(users))
	for _, u := range users {
		out = append(out, userBody(u.Username, u.AuthorizedLocations, u.Permissions))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

// handleCreateUser creates an account. Admin only.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !permissions(claimsFrom(r.Context())).Admin {
		writeError(w, http.StatusForbidden, msgNeedAdmin)
		return
	}

	var req struct {
		Username            string           `json:"uname"`
		Password            string           `json:"passwd"`
		AuthorizedLocations auth.LocationSet `json:"authorized_locations"`
		Permissions         auth.Permissions `json:"permissions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadArguments)
		return
	}
	if !usernameRe.MatchString(req.Username) {
		writeError(w, http.StatusBadRequest, "Invalid username.")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "Password is required.")
		return
	}

	var hash string
	if err := s.Pool.Do(r.Context(), func() error {
		var herr error
		hash, herr = auth.HashPassword(req.Password, auth.DefaultArgon2Params())
		return herr
	}); err != nil {
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}

	err := s.Store.CreateUser(r.Context(), store.User{
		Username:            req.Username,
		PasswordHash:        hash,
		AuthorizedLocations: req.AuthorizedLocations,
		Permissions:         req.Permissions,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not create the user.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// handleUpdateUser applies exactly one field-group update, named
// explicitly by the request instead of inferred from which values are
// non-empty. Admin only.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	if !permissions(claimsFrom(r.Context())).Admin {
		writeError(w, http.StatusForbidden, msgNeedAdmin)
		return
	}
	uname := r.PathValue("username")

	var req struct {
		Field               string            `json:"field"`
		Username            string            `json:"uname,omitempty"`
		Password            string            `json:"passwd,omitempty"`
		AuthorizedLocations *auth.LocationSet `json:"authorized_locations,omitempty"`
		Permissions         *auth.Permissions `json:"permissions,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadArguments)
		return
	}

	ctx := r.Context()
	var err error
	switch req.Field {
	case "username":
		if !usernameRe.MatchString(req.Username) {
			writeError(w, http.StatusBadRequest, "Invalid username.")
			return
		}
		err = s.Store.UpdateUsername(ctx, uname, req.Username)
	case "password":
		if req.Password == "" {
			writeError(w, http.StatusBadRequest, "Password is required.")
			return
		}
		var hash string
		if perr := s.Pool.Do(ctx, func() error {
			var herr error
			hash, herr = auth.HashPassword(req.Password, auth.DefaultArgon2Params())
			return herr
		}); perr != nil {
			writeError(w, http.StatusInternalServerError, msgServerError)
			return
		}
		err = s.Store.UpdatePassword(ctx, uname, hash)
	case "locations":
		if req.AuthorizedLocations == nil {
			writeError(w, http.StatusBadRequest, msgBadArguments)
			return
		}
		err = s.Store.UpdateLocations(ctx, uname, *req.AuthorizedLocations)
	case "permissions":
		if req.Permissions == nil {
			writeError(w, http.StatusBadRequest, msgBadArguments)
			return
		}
		err = s.Store.UpdatePermissions(ctx, uname, *req.Permissions)
	default:
		writeError(w, http.StatusBadRequest, "Unknown update field.")
		return
	}

	switch {
	case err == store.ErrNotFound:
		writeError(w, http.StatusNotFound, "Requested user was not found.")
	case err != nil:
		writeError(w, http.StatusInternalServerError, msgServerError)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
	}
}

// handleDeleteUser removes an account; its refresh tokens cascade.
// Admin only.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if !permissions(claimsFrom(r.Context())).Admin {
		writeError(w, http.StatusForbidden, msgNeedAdmin)
		return
	}
	err := s.Store.DeleteUser(r.Context(), r.PathValue("username"))
	switch {
	case err == store.ErrNotFound:
		writeError(w, http.StatusNotFound, "Requested user was not found.")
	case err != nil:
		writeError(w, http.StatusInternalServerError, msgServerError)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
	}
}
