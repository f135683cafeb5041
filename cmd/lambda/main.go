package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"telegpt/internal/app"
	"telegpt/internal/config"
	"telegpt/internal/webhook"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	conf, err := config.Read()
	if err == nil {
		err = conf.ValidateWebhook()
	}
	if err != nil {
		logger.Error("Failed to read config", slog.Any("error", err))
		os.Exit(1)
	}

	a, err := app.New(context.Background(), conf, logger)
	if err != nil {
		logger.Error("Failed to start", slog.Any("error", err))
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Bot.RegisterCommands(); err != nil {
		logger.Warn("Failed to register commands", slog.Any("error", err))
	}

	logger.Info("Telegpt lambda ready", slog.Any("config", conf))
	lambda.Start(webhook.NewHandler(conf.Telegram.SecretToken, a.Bot, logger).HandleLambda)
}
