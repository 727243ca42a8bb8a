// Package httpapi exposes the Bunsho REST API: authentication, user
// administration, directory operations, two-phase upload, and single
// file or archived folder download.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/afero"

	"bunsho/internal/archive"
	"bunsho/internal/config"
	"bunsho/internal/files"
	"bunsho/internal/session"
	"bunsho/internal/store"
	"bunsho/internal/workpool"

	"bunsho/internal/auth"
)

// Server owns every collaborator a request handler needs. It is
// constructed once at startup and passed by reference; there is no
// global state.
type Server struct {
	Cfg      *config.Manager
	Store    *store.DB
	Sessions *session.Store
	Tokens   *auth.Engine
	Files    *files.Service
	Archives *archive.Cache
	Pool     *workpool.Pool
	FS       afero.Fs
	Logger   *slog.Logger

	loginLimiter *fixedWindowLimiter
}

// Handler builds the routing table and wraps it with the common
// middleware stack.
func (s *Server) Handler() http.Handler {
	if s.loginLimiter == nil {
		s.loginLimiter = newFixedWindowLimiter(10, time.Minute)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", s.withLoginLimit(s.handleLogin))
	mux.HandleFunc("POST /api/auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/auth/logout-all", s.withAuth(s.handleLogoutAll))
	mux.HandleFunc("GET /api/auth/user", s.withAuth(s.handleGetUser))

	mux.HandleFunc("GET /api/admin/users", s.withAuth(s.handleListUsers))
	mux.HandleFunc("POST /api/admin/users", s.withAuth(s.handleCreateUser))
	mux.HandleFunc("PATCH /api/admin/users/{username}", s.withAuth(s.handleUpdateUser))
	mux.HandleFunc("DELETE /api/admin/users/{username}", s.withAuth(s.handleDeleteUser))

	mux.HandleFunc("GET /api/core/ls/{index}/{folder...}", s.withAuth(s.withLocation(s.handleList)))
	mux.HandleFunc("PATCH /api/core/mv/{index}/{filepath...}", s.withAuth(s.withLocation(s.handleMove)))
	mux.HandleFunc("DELETE /api/core/rm/{index}/{filepath...}", s.withAuth(s.withLocation(s.handleRemove)))
	mux.HandleFunc("POST /api/core/update-cfg", s.withAuth(s.handleUpdateConfig))

	mux.HandleFunc("POST /api/upload/file-metadata", s.withAuth(s.handleUploadMetadata))
	mux.HandleFunc("PUT /api/upload/file", s.withAuth(s.handleUploadStream))

	mux.HandleFunc("GET /api/download/single/{index}/{filepath...}", s.withAuth(s.withLocation(s.handleDownloadSingle)))
	mux.HandleFunc("GET /api/download/folder/{index}/{folder...}", s.withAuth(s.withLocation(s.handleDownloadFolder)))

	return withSecurityHeaders(s.withRequestLog(s.withRecover(mux)))
}
