package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"gopkg.in/telebot.v4"
	"gopkg.in/telebot.v4/middleware"

	"telegpt/internal/command"
	assistantpkg "telegpt/pkg/assistant"
)

// Keys under which HandleUpdate passes values through telebot.Context.
const (
	contextKey = "ctx"
	errorKey   = "error"
)

type Settings struct {
	Token          string
	URL            string
	RequestTimeout time.Duration
	// Offline skips the getMe call on construction.
	Offline bool
}

type Bot struct {
	API        *telebot.Bot
	Dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewBot(settings Settings, assistant assistantpkg.Service, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}

	api, err := telebot.NewBot(telebot.Settings{
		URL:         settings.URL,
		Token:       settings.Token,
		Client:      &http.Client{Timeout: settings.RequestTimeout},
		Offline:     settings.Offline,
		Synchronous: true,
		OnError: func(err error, _ telebot.Context) {
			logger.Error("Telegram error", slog.Any("error", err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	bot := &Bot{
		API:        api,
		Dispatcher: NewDispatcher(assistant, api, logger),
		logger:     logger,
	}
	bot.Dispatcher.botName = api.Me.Username

	api.Use(middleware.AutoRespond())
	api.Handle(telebot.OnText, bot.onText)

	return bot, nil
}

// HandleUpdate routes one update through the telebot handlers and returns the
// error of the text handler. Updates without text, such as edits, callbacks
// or commands addressed to another bot, are ignored.
func (bot *Bot) HandleUpdate(ctx context.Context, update telebot.Update) error {
	c := bot.API.NewContext(update)
	c.Set(contextKey, ctx)
	bot.API.ProcessContext(c)

	err, _ := c.Get(errorKey).(error)
	return err
}

func (bot *Bot) onText(c telebot.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	ctx, ok := c.Get(contextKey).(context.Context)
	if !ok {
		ctx = context.Background()
	}

	// The transport logs the error returned by HandleUpdate.
	if err := bot.Dispatcher.Dispatch(ctx, Incoming{ChatID: chat.ID, Text: c.Text()}); err != nil {
		c.Set(errorKey, err)
	}
	return nil
}

// RegisterCommands publishes the command menu to Telegram.
func (bot *Bot) RegisterCommands() error {
	commands := make([]telebot.Command, len(command.Descriptions))
	for i, c := range command.Descriptions {
		commands[i] = telebot.Command{Text: c.Name, Description: c.Description}
	}
	if err := bot.API.SetCommands(commands); err != nil {
		return fmt.Errorf("set commands: %w", err)
	}
	return nil
}
