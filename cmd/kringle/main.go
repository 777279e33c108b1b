package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/kringle/internal/backup"
	"github.com/dukerupert/kringle/internal/config"
	"github.com/dukerupert/kringle/internal/database"
	"github.com/dukerupert/kringle/internal/email"
	"github.com/dukerupert/kringle/internal/logging"
	"github.com/dukerupert/kringle/internal/metrics"
	"github.com/dukerupert/kringle/internal/server"
)

const cleanupInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	opts := server.Options{
		JWTSecret:     cfg.JWTSecret,
		TokenTTL:      cfg.TokenTTL,
		AuthRateLimit: cfg.AuthRateLimit,
	}
	if cfg.PostmarkToken != "" {
		opts.Mailer = email.NewClient(cfg.PostmarkToken, cfg.EmailFrom)
	}

	m := metrics.New()
	srv := server.New(db, opts, m, logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.Cleanup(ctx)
			}
		}
	}()

	if cfg.Backup.Enabled() {
		client := backup.NewS3Client(backup.S3Config{
			Endpoint:  cfg.Backup.Endpoint,
			Bucket:    cfg.Backup.Bucket,
			Region:    cfg.Backup.Region,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		})
		mgr := backup.NewManager(db, client, backup.Config{
			Bucket:     cfg.Backup.Bucket,
			Prefix:     cfg.Backup.Prefix,
			Passphrase: cfg.Backup.Passphrase,
			Retention:  cfg.Backup.Retention,
		}, m, logger.With("component", "backup"))
		go mgr.Start(ctx, cfg.Backup.Interval)
		logger.Info("backups enabled", "bucket", cfg.Backup.Bucket, "interval", cfg.Backup.Interval)
	}

	go func() {
		logger.Info("kringle listening", "addr", httpServer.Addr, "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
