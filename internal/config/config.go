package config

import (
	"errors"
	"log/slog"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type StoreKind string

const (
	StoreMemory   StoreKind = "memory"
	StoreDynamoDB StoreKind = "dynamodb"
	StorePostgres StoreKind = "postgres"
)

type Config struct {
	Telegram Telegram
	LLM      LLM
	OpenAI   OpenAI
	Ollama   Ollama
	Storage  Storage
}

func (conf Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Group("telegram",
			slog.String("token", "<hidden>"),
			slog.Bool("secret_token_set", conf.Telegram.SecretToken != ""),
			slog.Duration("poll_timeout", conf.Telegram.PollTimeout),
			slog.String("webhook_listen_addr", conf.Telegram.WebhookListenAddr),
		),
		slog.Group("llm",
			slog.String("provider", conf.LLM.Provider),
			slog.String("model", conf.LLM.Model),
			slog.Float64("temperature", conf.LLM.Temperature),
			slog.Float64("top_p", conf.LLM.TopP),
		),
		slog.Group("storage",
			slog.String("kind", string(conf.Storage.Kind())),
			slog.String("dynamodb_table", conf.Storage.DynamoDBTable),
			slog.Bool("database_url_set", conf.Storage.DatabaseURL != ""),
		),
	)
}

type Telegram struct {
	Token             string        `env:"TELEGRAM_API_TOKEN" env-required:"true"`
	SecretToken       string        `env:"TELEGRAM_BOT_API_SECRET_TOKEN"`
	PollTimeout       time.Duration `env:"TELEGRAM_POLL_TIMEOUT" env-default:"10s"`
	RequestTimeout    time.Duration `env:"TELEGRAM_REQUEST_TIMEOUT" env-default:"30s"`
	WebhookListenAddr string        `env:"WEBHOOK_LISTEN_ADDR"`
}

type LLM struct {
	Provider       string        `env:"LLM_PROVIDER" env-default:"openai"`
	Model          string        `env:"LLM_MODEL" env-default:"gpt-3.5-turbo"`
	Temperature    float64       `env:"LLM_TEMPERATURE" env-default:"0.7"`
	TopP           float64       `env:"LLM_TOP_P" env-default:"1.0"`
	RequestTimeout time.Duration `env:"LLM_REQUEST_TIMEOUT" env-default:"60s"`
}

type OpenAI struct {
	BaseURL string `env:"OPENAI_BASE_URL"`
}

type Ollama struct {
	Host string `env:"OLLAMA_HOST"`
}

type Storage struct {
	DynamoDBTable string `env:"DYNAMODB_TABLE"`
	DatabaseURL   string `env:"DATABASE_URL"`
}

func (s Storage) Kind() StoreKind {
	switch {
	case s.DynamoDBTable != "":
		return StoreDynamoDB
	case s.DatabaseURL != "":
		return StorePostgres
	default:
		return StoreMemory
	}
}

var (
	ErrUnknownProvider = errors.New("LLM_PROVIDER must be openai or ollama")
	ErrNoOllamaHost    = errors.New("OLLAMA_HOST is required for the ollama provider")
	ErrNoSecretToken   = errors.New("TELEGRAM_BOT_API_SECRET_TOKEN is required in webhook mode")
	ErrPollTimeout     = errors.New("TELEGRAM_REQUEST_TIMEOUT must exceed TELEGRAM_POLL_TIMEOUT")
)

func (conf Config) Validate() error {
	switch conf.LLM.Provider {
	case ProviderOpenAI:
	case ProviderOllama:
		if conf.Ollama.Host == "" {
			return ErrNoOllamaHost
		}
	default:
		return ErrUnknownProvider
	}
	if conf.Telegram.RequestTimeout <= conf.Telegram.PollTimeout {
		return ErrPollTimeout
	}
	return nil
}

// ValidateWebhook checks the extra requirements of webhook mode.
func (conf Config) ValidateWebhook() error {
	if err := conf.Validate(); err != nil {
		return err
	}
	if conf.Telegram.SecretToken == "" {
		return ErrNoSecretToken
	}
	return nil
}

func Read() (Config, error) {
	var conf Config
	err := cleanenv.ReadEnv(&conf)
	if err != nil {
		return Config{}, err
	}
	if err := conf.Validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}
