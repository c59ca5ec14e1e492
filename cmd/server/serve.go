package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mediabot/backend"
	"mediabot/internal/api"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server and the dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(parent context.Context, configPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := loadConfig(configPath, true)
	if err != nil {
		return err
	}
	log := backend.Logger
	log.Info("mediabot starting", slog.String("port", cfg.Server.Port), slog.String("work_dir", cfg.Fetch.WorkDir))

	media, err := backend.NewMediaService(cfg, log)
	if err != nil {
		return err
	}
	defer media.Close()
	media.Temp.Sweep(cfg.Fetch.StaleArenaMaxAge.Duration)

	// No client timeout: uploads are bounded by the job context.
	botClient, err := backend.NewHTTPClient(0, cfg.Fetch.ProxyURL)
	if err != nil {
		return err
	}
	sender, err := backend.NewTelegramSender(cfg.Telegram.BotToken, "", botClient, log)
	if err != nil {
		return err
	}
	if cfg.Telegram.WebhookURL != "" {
		if err := sender.SetWebhook(cfg.Telegram.WebhookURL); err != nil {
			return err
		}
	} else {
		log.Warn("WEBHOOK_URL not set, assuming the webhook is registered elsewhere")
	}

	svc := backend.NewServiceContext(cfg, log)
	server := api.NewServer(svc)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline := backend.NewPipeline(sender, media, sender.Username(), log)
	dispatcher := backend.NewDispatcher(pipeline, sender, cfg.Fetch.JobTimeout.Duration, log)
	dispatcherDone := svc.StartDispatcher(ctx, dispatcher)

	listenErr := make(chan error, 1)
	go func() {
		log.Info("server listening", slog.String("addr", ":"+cfg.Server.Port))
		listenErr <- server.Listen(":" + cfg.Server.Port)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-listenErr:
		stop()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Warn("server shutdown", slog.Any("error", err))
	}
	if err := <-dispatcherDone; err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("dispatcher stopped", slog.Any("error", err))
	}
	dispatcher.Wait()
	log.Info("bye")
	return nil
}
