package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/telebot.v4"

	"telegpt/internal/command"
	assistantpkg "telegpt/pkg/assistant"
)

const (
	textStart        = "Hi! How can I help you today?"
	textNoAPIKey     = "Please set the OpenAI API key using the `/token OPENAI_API_KEY` command."
	textTokenUsage   = "Usage: `/token OPENAI_API_KEY`"
	textTokenSaved   = "API key saved."
	textCleared      = "🗑️ Chat cleared."
	textNothingRerun = "Nothing to rerun."
	textEmptyReply   = "The model returned an empty response."
	textFailure      = "Sorry, something went wrong. Please try again later."
)

var paramUsage = map[assistantpkg.Param]string{
	assistantpkg.ParamModel:       "Usage: `/model MODEL_NAME`",
	assistantpkg.ParamTemperature: "Usage: `/temp NUMBER` with a number between 0 and 2",
	assistantpkg.ParamTopP:        "Usage: `/top_p NUMBER` with a number between 0 and 1",
}

var paramByKind = map[command.Kind]assistantpkg.Param{
	command.KindModel:       assistantpkg.ParamModel,
	command.KindTemperature: assistantpkg.ParamTemperature,
	command.KindTopP:        assistantpkg.ParamTopP,
}

// Incoming is one inbound chat message, independent of how it was received.
type Incoming struct {
	ChatID int64
	Text   string
}

// Dispatcher routes a classified message to the assistant and answers through
// the messenger. It never sends raw errors to the chat.
type Dispatcher struct {
	assistant assistantpkg.Service
	messenger Messenger
	logger    *slog.Logger
	editEvery time.Duration
	// botName is the bot's username; commands addressed to other bots are
	// ignored.
	botName string
}

func NewDispatcher(assistant assistantpkg.Service, messenger Messenger, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		assistant: assistant,
		messenger: messenger,
		logger:    logger,
		editEvery: time.Second,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, in Incoming) error {
	cmd := command.Parse(in.Text)
	if cmd.Kind == command.KindNone {
		return nil
	}
	if !cmd.AddressedTo(d.botName) {
		d.logger.Debug("Ignoring command for another bot", slog.Int64("chat_id", in.ChatID), slog.String("bot", cmd.Bot))
		return nil
	}

	logger := d.logger.With(slog.Int64("chat_id", in.ChatID), slog.String("kind", cmd.Kind.String()))
	logger.Info("Handling message", slog.Int("length", len(in.Text)))

	switch cmd.Kind {
	case command.KindChat:
		return d.converse(ctx, logger, in.ChatID, func(fn assistantpkg.ChatResponseFunc) (string, error) {
			return d.assistant.Chat(ctx, in.ChatID, cmd.Text, fn)
		})
	case command.KindRerun:
		return d.converse(ctx, logger, in.ChatID, func(fn assistantpkg.ChatResponseFunc) (string, error) {
			return d.assistant.Rerun(ctx, in.ChatID, fn)
		})
	case command.KindSetToken:
		return d.setToken(ctx, logger, in.ChatID, cmd.Arg())
	case command.KindStart:
		return d.reply(in.ChatID, textStart)
	case command.KindClear:
		if err := d.assistant.Clear(ctx, in.ChatID); err != nil {
			return d.fail(logger, in.ChatID, err)
		}
		return d.reply(in.ChatID, textCleared)
	case command.KindModel, command.KindTemperature, command.KindTopP:
		return d.setParam(ctx, logger, in.ChatID, paramByKind[cmd.Kind], cmd.Arg())
	case command.KindParams:
		params, err := d.assistant.Params(ctx, in.ChatID)
		if err != nil {
			return d.fail(logger, in.ChatID, err)
		}
		return d.reply(in.ChatID, "Current params: "+params.String())
	default:
		return d.reply(in.ChatID, help())
	}
}

func (d *Dispatcher) converse(ctx context.Context, logger *slog.Logger, chatID int64, run func(assistantpkg.ChatResponseFunc) (string, error)) error {
	manager := NewMessageManager(d.messenger, telebot.ChatID(chatID), d.editEvery)

	reply, err := run(func(response assistantpkg.ChatResponse) error {
		if response.Content == "" {
			return nil
		}
		return manager.Append(response.Content)
	})
	switch {
	case errors.Is(err, assistantpkg.ErrNoAPIKey):
		return d.reply(chatID, textNoAPIKey, telebot.ModeMarkdown)
	case errors.Is(err, assistantpkg.ErrNothingToRerun):
		return d.reply(chatID, textNothingRerun)
	case err != nil && reply == "":
		logger.Error("Turn failed", slog.Any("error", err))
		if sendErr := manager.Fail(textFailure); sendErr != nil {
			return errors.Join(err, sendErr)
		}
		return err
	case err != nil:
		// The model answered but the history could not be saved.
		logger.Warn("Reply delivered without saving history", slog.Any("error", err))
	}

	if strings.TrimSpace(reply) == "" {
		reply = textEmptyReply
	}
	if flushErr := manager.Flush(reply); flushErr != nil {
		return errors.Join(err, flushErr)
	}
	logger.Info("Turn completed", slog.Int("reply_length", len(reply)))
	return err
}

func (d *Dispatcher) setToken(ctx context.Context, logger *slog.Logger, chatID int64, key string) error {
	if key == "" {
		return d.reply(chatID, textTokenUsage, telebot.ModeMarkdown)
	}
	if err := d.assistant.SetAPIKey(ctx, chatID, key); err != nil {
		return d.fail(logger, chatID, err)
	}
	return d.reply(chatID, textTokenSaved)
}

func (d *Dispatcher) setParam(ctx context.Context, logger *slog.Logger, chatID int64, param assistantpkg.Param, value string) error {
	params, err := d.assistant.SetParam(ctx, chatID, param, value)
	if errors.Is(err, assistantpkg.ErrInvalidParam) {
		return d.reply(chatID, paramUsage[param], telebot.ModeMarkdown)
	}
	if err != nil {
		return d.fail(logger, chatID, err)
	}
	return d.reply(chatID, fmt.Sprintf("Set %s to %s. Current params: %s", param, value, params))
}

func (d *Dispatcher) fail(logger *slog.Logger, chatID int64, err error) error {
	logger.Error("Command failed", slog.Any("error", err))
	if sendErr := d.reply(chatID, textFailure); sendErr != nil {
		return errors.Join(err, sendErr)
	}
	return err
}

func (d *Dispatcher) reply(chatID int64, text string, opts ...interface{}) error {
	_, err := d.messenger.Send(telebot.ChatID(chatID), text, opts...)
	return err
}

func help() string {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, c := range command.Descriptions {
		fmt.Fprintf(&b, "/%s - %s\n", c.Name, c.Description)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
