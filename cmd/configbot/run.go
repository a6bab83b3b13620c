package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"configbot/internal/analytics"
	"configbot/internal/audit"
	"configbot/internal/bot"
	"configbot/internal/config"
	"configbot/internal/storage"
	"configbot/internal/store"

	"emperror.dev/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:          "run",
	Short:        "Connect to Discord and serve commands",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := config.BuildLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	db, err := storage.New(cfg.DatabasePath)
	if err != nil {
		return errors.WithMessage(err, "storage init failed")
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return errors.WithMessage(err, "migrations failed")
	}
	if cfg.JournalRetentionDays > 0 {
		removed, err := db.CleanupActionLogs(ctx, cfg.JournalRetentionDays)
		if err != nil {
			logger.Warn("journal cleanup failed", zap.Error(err))
		} else if removed > 0 {
			logger.Info("journal cleaned", zap.Int64("removed", removed))
		}
	}

	st, err := store.Open(cfg.ConfigDir, store.WithCommandTTL(time.Duration(cfg.CommandCacheSeconds)*time.Second))
	if err != nil {
		return errors.WithMessage(err, "configuration load failed")
	}

	botSvc, err := bot.New(cfg, logger, bot.Services{
		Store:     st,
		Storage:   db,
		Audit:     audit.NewLogger(db, logger),
		Analytics: analytics.New(db),
	})
	if err != nil {
		return errors.WithMessage(err, "bot init failed")
	}

	if err := botSvc.Start(); err != nil {
		return errors.WithMessage(err, "bot start failed")
	}
	logger.Info("bot started", zap.String("config_dir", cfg.ConfigDir))

	var server *http.Server
	if cfg.Health.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			if err := db.Ping(r.Context()); err != nil {
				http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		server = &http.Server{Addr: cfg.Health.Addr, Handler: mux}
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(shutdownCtx)
	}
	botSvc.Close()
	return nil
}

// configDir mirrors the CONFIG_DIR default of the run command.
func configDir() string {
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return dir
	}
	return config.DefaultConfig().ConfigDir
}
