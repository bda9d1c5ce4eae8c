// Command smtpagent runs the delivery loop and admin dashboard as a
// single process: load config, build dependencies, run the loop in the
// background, serve admin HTTP alongside it, shut down on signal.
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

	"github.com/krultra/smtp-agent/internal/admin"
	"github.com/krultra/smtp-agent/internal/config"
	"github.com/krultra/smtp-agent/internal/engine"
	"github.com/krultra/smtp-agent/internal/mailer"
	"github.com/krultra/smtp-agent/internal/store"
	"github.com/krultra/smtp-agent/internal/version"
	"github.com/krultra/smtp-agent/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	if err := logger.SetOutputFile(cfg.LogFile); err != nil {
		log.Fatalf("failed to open log file: %v", err)
	}
	logger.Current().Info("starting smtp-agent",
		"version", version.Version, "commit", version.Commit, "build_date", version.BuildDate)

	if fd, err := config.LoadFileDefaults(cfg.DefaultsFilePath); err != nil {
		log.Fatalf("failed to load defaults file: %v", err)
	} else {
		fd.ApplyTo(&cfg)
	}

	if cfg.SentryDSN != "" {
		if err := logger.InitSentry(cfg.SentryDSN, cfg.Environment, version.Version); err != nil {
			logger.Current().Warn("sentry init failed", "error", err.Error())
		}
		defer logger.FlushSentry(2 * time.Second)
	}

	if cfg.FirebaseServiceAccountPath != "" {
		if _, err := os.Stat(cfg.FirebaseServiceAccountPath); err != nil {
			log.Fatalf("service account file not found: %s", cfg.FirebaseServiceAccountPath)
		}
	}

	adapter, err := store.NewFirestoreAdapter(ctx, cfg.FirebaseProjectID, cfg.FirebaseServiceAccountPath)
	if err != nil {
		log.Fatalf("failed to initialize store: %v", err)
	}
	defer adapter.Close()

	var sender mailer.Sender = mailer.NewSMTPSender(mailer.Config{
		Host:      cfg.SMTPHost,
		Port:      cfg.SMTPPort,
		Username:  cfg.SMTPUsername,
		Password:  cfg.SMTPPassword,
		UseTLS:    cfg.SMTPUseTLS,
		FromEmail: cfg.SMTPFrom,
		FromName:  cfg.SMTPFromName,
	})
	sender = mailer.NewRateLimitedSender(sender, cfg.SMTPMaxPerMinute)

	overlay := config.NewOverlay(cfg, adapter)
	eng := engine.New(adapter, sender, overlay, engine.SystemClock, "")

	adminServer := admin.NewServer(adapter, overlay, admin.Options{
		ListenAddr: cfg.AdminListenAddr,
		Username:   cfg.AdminUser,
		Password:   cfg.AdminPass,
		LogPath:    cfg.LogFile,
		Version:    version.Version,
	})

	go eng.Run(ctx)

	go func() {
		logger.Current().Info("admin server listening", "addr", cfg.AdminListenAddr)
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Current().Error("admin server error", "error", err.Error())
		}
	}()

	<-ctx.Done()
	logger.Current().Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Current().Warn("admin server shutdown error", "error", err.Error())
	}
}
