package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"thoughtbox/internal/blob"
	"thoughtbox/internal/config"
	"thoughtbox/internal/domain"
	"thoughtbox/internal/events"
	"thoughtbox/internal/httpserver"
	"thoughtbox/internal/postgres"
	"thoughtbox/internal/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// repositories is the storage backend seen by the service; both the Postgres
// and SQLite repositories satisfy it.
type repositories interface {
	domain.UserRepository
	domain.PostRepository
	domain.CommentRepository
	domain.SessionRepository
	domain.RateWindowRepository
	Close() error
}

func run() error {
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var repo repositories
	if cfg.DatabaseURL != "" {
		repo, err = postgres.NewRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		logger.Info("connected to postgres")
	} else {
		repo, err = sqlite.NewRepository(ctx, cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite database: %w", err)
		}
		logger.Info("using sqlite database", "path", cfg.SQLitePath)
	}
	defer repo.Close()

	var blobs domain.BlobStore
	opts := httpserver.Options{}
	if cfg.BlobServiceURL != "" {
		blobs = blob.NewRemoteStore(cfg.BlobServiceURL, cfg.BlobServiceToken)
		logger.Info("using remote blob store", "endpoint", cfg.BlobServiceURL)
	} else {
		fs, err := blob.NewFileStore(cfg.UploadDir, cfg.PublicBaseURL+"/uploads")
		if err != nil {
			return fmt.Errorf("create blob store: %w", err)
		}
		blobs = fs
		opts.UploadDir = fs.Dir()
	}

	hub := events.NewHub(logger)
	defer hub.Close()

	svc := domain.NewService(repo, repo, repo, repo, repo, blobs, hub, logger)

	server := httpserver.NewServer(cfg.Port, svc, hub, logger, opts)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started", "port", cfg.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}
