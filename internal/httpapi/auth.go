package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"bunsho/internal/auth"
)

// refreshCookieName is the refresh-token cookie, scoped to the refresh
// endpoint so it is never sent with ordinary API calls.
const (
	refreshCookieName = "rt"
	refreshCookiePath = "/api/auth/refresh"
)

// tokenResponse carries a freshly minted access token.
type tokenResponse struct {
	AccessToken string `json:"access-token"`
}

// handleLogin verifies credentials and establishes a session: it reuses
// the user's stored non-expired refresh token (or mints one), sets it
// as a path-scoped HttpOnly cookie, and returns a fresh access token.
// Unknown usernames and wrong passwords produce the same 401.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"uname"`
		Password string `json:"passwd"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Credentials were not provided.")
		return
	}

	ctx := r.Context()
	user, ok, err := s.Store.GetUser(ctx, req.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, msgBadCredentials)
		return
	}

	var matched, needsRehash bool
	if perr := s.Pool.Do(ctx, func() error {
		var verr error
		matched, needsRehash, verr = auth.VerifyPassword(req.Password, user.PasswordHash)
		return verr
	}); perr != nil || !matched {
		writeError(w, http.StatusUnauthorized, msgBadCredentials)
		return
	}

	if needsRehash {
		// Best effort: a failed rehash never blocks a successful login.
		if err := s.rehashPassword(r, user.Username, req.Password); err != nil {
			s.Logger.Warn("password rehash failed", "user", user.Username, "err", err)
		}
	}

	refreshToken, refreshExpiry, err := s.loadOrMintRefreshToken(r, user.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}

	accessToken, err := s.Tokens.IssueAccess(user.Username, user.AuthorizedLocations, user.Permissions)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    refreshToken,
		Path:     refreshCookiePath,
		Expires:  refreshExpiry,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: accessToken})
}

// loadOrMintRefreshToken returns the user's stored refresh token when
// it has not expired, deleting and replacing it otherwise. Steady state
// is one refresh-token row per user.
func (s *Server) loadOrMintRefreshToken(r *http.Request, username string) (string, time.Time, error) {
	ctx := r.Context()
	row, ok, err := s.Store.GetRefreshTokenByUsername(ctx, username)
	if err != nil {
		return "", time.Time{}, err
	}
	if ok && row.Expiry > time.Now().Unix() {
		return row.Token, time.Unix(row.Expiry, 0), nil
	}
	if ok {
		if err := s.Store.DeleteRefreshToken(ctx, username); err != nil {
			return "", time.Time{}, err
		}
	}
	token, expiry, err := s.Tokens.IssueRefresh(username)
	if err != nil {
		return "", time.Time{}, err
	}
	if err := s.Store.InsertRefreshToken(ctx, token, expiry.Unix(), username); err != nil {
		return "", time.Time{}, err
	}
	return token, expiry, nil
}

func (s *Server) rehashPassword(r *http.Request, username, password string) error {
	var hash string
	if err := s.Pool.Do(r.Context(), func() error {
		var herr error
		hash, herr = auth.HashPassword(password, auth.DefaultArgon2Params())
		return herr
	}); err != nil {
		return err
	}
	return s.Store.UpdatePassword(r.Context(), username, hash)
}

// handleRefresh mints a new access token from the refresh cookie. The
// presented token must exist in the durable store and textually match
// the stored row, then pass full decode checks. Authorization claims
// are re-read from the credential store, not copied from the old token,
// so permission changes propagate here.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "Refresh token was not provided.")
		return
	}

	ctx := r.Context()
	row, ok, err := s.Store.GetRefreshTokenByToken(ctx, cookie.Value)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}
	if !ok || row.Token != cookie.Value {
		writeError(w, http.StatusUnauthorized, "Could not find the provided refresh token in the database.")
		return
	}

	if _, err := s.Tokens.DecodeRefresh(cookie.Value); err != nil {
		writeTokenError(w, err)
		return
	}

	user, ok, err := s.Store.GetUser(ctx, row.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, msgBadCredentials)
		return
	}

	accessToken, err := s.Tokens.IssueAccess(user.Username, user.AuthorizedLocations, user.Permissions)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: accessToken})
}

// handleLogoutAll raises the blacklist cutoff for the caller: every
// token issued at or before now — access and refresh alike — becomes
// invalid immediately, regardless of its own expiry.
func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	s.Sessions.RevokeUser(claims.Username, time.Now().Unix())
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// handleGetUser returns a user record. Inspecting another user's record
// requires the admin permission.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	uname := r.URL.Query().Get("uname")
	if uname == "" {
		writeError(w, http.StatusBadRequest, "Username was not specified.")
		return
	}
	claims := claimsFrom(r.Context())
	if claims.Username != uname && !permissions(claims).Admin {
		writeError(w, http.StatusForbidden, msgNeedAdmin)
		return
	}

	user, ok, err := s.Store.GetUser(r.Context(), uname)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Requested user was not found.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"body": userBody(user.Username, user.AuthorizedLocations, user.Permissions)})
}

func userBody(uname string, locs auth.LocationSet, perms auth.Permissions) map[string]any {
	return map[string]any{
		"uname":                uname,
		"authorized_locations": locs,
		"permissions":          perms,
	}
}
