package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"telegpt/internal/app"
	"telegpt/internal/bot"
	"telegpt/internal/config"
	"telegpt/internal/webhook"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env", slog.Any("error", err))
	}

	conf, err := config.Read()
	if err != nil {
		slog.Error("Failed to read config", slog.Any("error", err))
		os.Exit(1)
	}

	webhookMode := conf.Telegram.WebhookListenAddr != ""
	if webhookMode {
		if err := conf.ValidateWebhook(); err != nil {
			slog.Error("Invalid webhook config", slog.Any("error", err))
			os.Exit(1)
		}
	}

	a, err := app.New(ctx, conf, slog.Default())
	if err != nil {
		slog.Error("Failed to start", slog.Any("error", err))
		os.Exit(1)
	}
	defer a.Close()

	var transport bot.Transport
	if webhookMode {
		transport = bot.NewWebhookServer(conf.Telegram.WebhookListenAddr,
			webhook.NewHandler(conf.Telegram.SecretToken, a.Bot, slog.Default()), slog.Default())
	} else {
		if err := a.Bot.RegisterCommands(); err != nil {
			slog.Warn("Failed to register commands", slog.Any("error", err))
		}
		transport = bot.NewPolling(a.Bot.API, a.Bot, conf.Telegram.PollTimeout, slog.Default())
	}

	slog.Info("Telegpt successfully started", slog.Any("config", conf))

	if err := transport.Run(ctx); err != nil {
		slog.Error("Transport stopped", slog.Any("error", err))
		return
	}

	slog.Info("Telegpt gracefully shutdown")
}
