package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tube-courier/internal/api"
	"tube-courier/internal/coordinator"
	"tube-courier/internal/housekeeper"
	"tube-courier/internal/media"
	"tube-courier/internal/platform/config"
	"tube-courier/internal/platform/logger"
	"tube-courier/internal/platform/metrics"
	"tube-courier/internal/session"
	"tube-courier/internal/telegram"
)

const (
	shutdownTimeout  = 10 * time.Second
	progressInterval = 3 * time.Second
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and its HTTP endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return serve(cmd.Context(), envFile)
		},
	}
	cmd.Flags().String("env-file", ".env", "Optional dotenv file loaded before reading the environment.")
	return cmd
}

func serve(parent context.Context, envFile string) error {
	_ = config.Load(envFile)
	cfg := config.FromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.YTDLPAutoInstall {
		if err := media.Install(ctx); err != nil {
			log.Warn("yt-dlp install failed, relying on PATH", "error", err)
		}
	}
	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Error("telegram login failed", "error", err)
		return err
	}
	log.Info("authorized on telegram", "username", bot.Self.UserName)

	mode := media.Mode(cfg.Mode)
	met := metrics.New()
	repo := session.NewInMemoryRepository()
	source := media.NewYTDLP(media.YTDLPConfig{
		Mode:            mode,
		MaxHeight:       cfg.MaxHeight,
		LookupTimeout:   cfg.LookupTimeout,
		DownloadTimeout: cfg.DownloadTimeout,
	}, log)
	gw := telegram.NewGateway(bot, log)
	coord := coordinator.New(coordinator.Config{
		Mode:             mode,
		MaxUploadBytes:   cfg.MaxUploadBytes,
		SessionTTL:       cfg.SessionTTL,
		TerminalGrace:    cfg.TerminalGrace,
		DownloadDir:      cfg.DownloadDir,
		ProgressInterval: progressInterval,
	}, repo, source, gw, log, met)
	router := telegram.NewRouter(telegram.RouterConfig{
		Mode:           mode,
		MaxUploadBytes: cfg.MaxUploadBytes,
		UserRatePerMin: cfg.UserRatePerMin,
	}, coord, gw, log)
	hk := housekeeper.New(housekeeper.Config{
		Interval:      cfg.SweepInterval,
		FileRetention: cfg.FileRetention,
		DownloadDir:   cfg.DownloadDir,
	}, coord, coord.Active(), log, met)

	g, gctx := errgroup.WithContext(ctx)
	dispatcher := telegram.NewDispatcher(gctx, router, telegram.DefaultConcurrency, log)

	var sink api.UpdateSink
	if cfg.WebhookURL != "" {
		if err := registerWebhook(bot, cfg.WebhookURL+"/telegram/"+cfg.BotToken); err != nil {
			log.Error("webhook registration failed", "error", err)
			return err
		}
		sink = dispatcher
	} else if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		log.Warn("delete webhook failed", "error", err)
	}

	h := api.NewHandler(api.Config{WebhookToken: cfg.BotToken, DownloadDir: cfg.DownloadDir},
		coord, repo, coord.Active(), sink, log, met)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(h, log, met),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if sink != nil {
			<-gctx.Done()
			return dispatcher.Wait()
		}
		return dispatcher.Poll(gctx, bot)
	})
	g.Go(func() error {
		hk.Run(gctx)
		return nil
	})

	log.Info("server starting",
		slog.String("port", cfg.Port),
		slog.String("mode", cfg.Mode),
		slog.Bool("webhook", sink != nil),
		slog.String("download_dir", cfg.DownloadDir),
		slog.Int64("max_upload_bytes", cfg.MaxUploadBytes),
		slog.String("log_level", cfg.LogLevel))

	runErr := g.Wait()
	log.Info("shutdown signal received, draining downloads")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := coord.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	if runErr != nil {
		log.Error("server error", "error", runErr)
		return runErr
	}

	log.Info("server stopped")
	return nil
}

func registerWebhook(bot *tgbotapi.BotAPI, url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return err
	}
	wh.AllowedUpdates = []string{"message", "callback_query"}
	_, err = bot.Request(wh)
	return err
}
