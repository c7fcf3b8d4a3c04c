package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daniacca/mattercore/internal/matter"
)

func main() {
	cfg, err := loadServerConfig(os.Args[1:])
	if err != nil {
		NewLogger("info").Fatalf("config: %v", err)
	}
	logger := NewLogger(cfg.LogLevel)

	src, closeSource, err := loadCatalogSource(cfg)
	if err != nil {
		logger.Fatalf("catalog: %v", err)
	}
	defer func() {
		if err := closeSource(); err != nil {
			logger.Errorf("close catalog: %v", err)
		}
	}()

	srv := NewServer(logger, cfg.Options())
	if src != nil {
		if _, err := srv.LoadWorld(matter.WorldID(cfg.DefaultWorldID), src); err != nil {
			logger.Fatalf("world %s: %v", cfg.DefaultWorldID, err)
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("matterd listening on %s", cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("server failed: %v", err)
		}
	case <-ctx.Done():
		logger.Infof("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("shutdown: %v", err)
		}
	}

	if err := srv.Close(); err != nil {
		logger.Errorf("close notifiers: %v", err)
	}
}
