// Package app builds the bot's dependencies from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegpt/internal/assistant"
	"telegpt/internal/bot"
	"telegpt/internal/config"
	"telegpt/internal/llm"
	"telegpt/internal/store/dynamo"
	"telegpt/internal/store/memory"
	"telegpt/internal/store/postgres"
	assistantpkg "telegpt/pkg/assistant"
)

type App struct {
	Bot   *bot.Bot
	close func()
}

func (a *App) Close() {
	if a.close != nil {
		a.close()
	}
}

func New(ctx context.Context, conf config.Config, logger *slog.Logger) (*App, error) {
	store, closeStore, err := NewStore(ctx, conf.Storage)
	if err != nil {
		return nil, err
	}

	completer, err := NewCompleter(conf)
	if err != nil {
		closeStore()
		return nil, err
	}

	svc := assistant.NewService(store, completer, assistant.Defaults{
		Model:       conf.LLM.Model,
		Temperature: conf.LLM.Temperature,
		TopP:        conf.LLM.TopP,
		Timeout:     conf.LLM.RequestTimeout,
	})

	b, err := bot.NewBot(bot.Settings{
		Token:          conf.Telegram.Token,
		RequestTimeout: conf.Telegram.RequestTimeout,
	}, svc, logger)
	if err != nil {
		closeStore()
		return nil, err
	}

	logger.Info("Dependencies ready",
		slog.String("store", string(conf.Storage.Kind())),
		slog.String("provider", conf.LLM.Provider))

	return &App{Bot: b, close: closeStore}, nil
}

func NewStore(ctx context.Context, conf config.Storage) (assistantpkg.SessionStore, func(), error) {
	switch conf.Kind() {
	case config.StoreDynamoDB:
		awsConf, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		return dynamo.NewStore(dynamodb.NewFromConfig(awsConf), conf.DynamoDBTable), func() {}, nil
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, conf.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		store := postgres.NewStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	default:
		return memory.NewStore(), func() {}, nil
	}
}

func NewCompleter(conf config.Config) (assistantpkg.Completer, error) {
	httpClient := &http.Client{Timeout: conf.LLM.RequestTimeout}

	switch conf.LLM.Provider {
	case config.ProviderOllama:
		return llm.NewOllama(conf.Ollama.Host, httpClient)
	case config.ProviderOpenAI:
		return llm.NewOpenAI(llm.OpenAIConfig{
			BaseURL:    conf.OpenAI.BaseURL,
			HTTPClient: httpClient,
		}), nil
	default:
		return nil, config.ErrUnknownProvider
	}
}
