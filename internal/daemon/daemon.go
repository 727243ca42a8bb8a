// Package daemon wires the application together and owns its
// lifecycle: store, session state, archive scratch directory, cleanup
// task, and the HTTP server.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/afero"

	"bunsho/internal/archive"
	"bunsho/internal/auth"
	"bunsho/internal/config"
	"bunsho/internal/files"
	"bunsho/internal/httpapi"
	"bunsho/internal/session"
	"bunsho/internal/store"
	"bunsho/internal/workpool"
)

// Options configures a daemon run.
type Options struct {
	ConfigPath string
	Logger     *slog.Logger
}

// Run starts the gateway and blocks until ctx is cancelled or the
// server fails. Shutdown drains in-flight requests, joins the cleanup
// task, and erases the archive scratch directory.
func Run(ctx context.Context, opt Options) error {
	if opt.ConfigPath == "" {
		return errors.New("config path is required")
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfgMgr, err := config.NewManager(opt.ConfigPath)
	if err != nil {
		return err
	}
	cfg := cfgMgr.Current()

	db, err := store.Open(ctx, cfg.DB.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to database", "path", cfg.DB.Path)

	// Archives are a cache: the scratch directory starts empty and is
	// erased on shutdown.
	scratch, err := os.MkdirTemp("", "bunsho-archives-*")
	if err != nil {
		return err
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logger.Warn("failed to erase archive scratch directory", "dir", scratch, "err", err)
		}
	}()
	logger.Info("created archive scratch directory", "dir", scratch)

	fs := afero.NewOsFs()
	pool := workpool.New(0)
	sessions := session.NewStore()
	tokens := auth.NewEngine(
		cfg.Auth.AccessTokenSecret,
		cfg.Auth.RefreshTokenSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
		sessions,
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		db.CleanupLoop(runCtx, store.CleanupInterval, logger)
	}()

	api := &httpapi.Server{
		Cfg:      cfgMgr,
		Store:    db,
		Sessions: sessions,
		Tokens:   tokens,
		Files:    files.New(fs, pool),
		Archives: archive.New(fs, scratch, pool),
		Pool:     pool,
		FS:       fs,
		Logger:   logger,
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.HTTP.Host, strconv.Itoa(cfg.HTTP.Port)),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("http server listening", "addr", srv.Addr)

	select {
	case <-runCtx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		err = srv.Shutdown(shutdownCtx)
	case err = <-errCh:
	}

	cancel()
	wg.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return err
}
