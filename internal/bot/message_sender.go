package bot

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/telebot.v4"
)

const (
	// Telegram rejects longer messages.
	maxMessageLen = 4096
	// Text accumulated before the shown message is updated.
	minEditChunk = 30
)

// Messenger is the reply sink. *telebot.Bot implements it.
type Messenger interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
	Edit(msg telebot.Editable, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// MessageManager shows a streamed reply as one message that is edited while
// the text grows.
type MessageManager struct {
	bot     Messenger
	to      telebot.Recipient
	origin  *telebot.Message
	limiter *rate.Limiter
	text    strings.Builder
	shown   string
}

func NewMessageManager(bot Messenger, to telebot.Recipient, editEvery time.Duration) *MessageManager {
	return &MessageManager{
		bot:     bot,
		to:      to,
		limiter: rate.NewLimiter(rate.Every(editEvery), 1),
	}
}

// Append adds a streamed delta and refreshes the message when enough new text
// arrived and the edit rate allows it.
func (manager *MessageManager) Append(delta string) error {
	manager.text.WriteString(delta)
	current := manager.text.String()
	if len(current)-len(manager.shown) < minEditChunk {
		return nil
	}
	if !manager.limiter.Allow() {
		return nil
	}
	return manager.show(firstChunk(current))
}

// Flush shows the final text, splitting it over several messages when it is
// too long for one.
func (manager *MessageManager) Flush(content string) error {
	chunks := split(strings.TrimSpace(content))
	if len(chunks) == 0 {
		return nil
	}
	if err := manager.show(chunks[0]); err != nil {
		return err
	}
	for _, chunk := range chunks[1:] {
		if _, err := manager.bot.Send(manager.to, chunk); err != nil {
			return err
		}
	}
	return nil
}

// Fail replaces whatever was shown with notice.
func (manager *MessageManager) Fail(notice string) error {
	return manager.show(notice)
}

func (manager *MessageManager) show(content string) error {
	content = strings.TrimSpace(content)
	if content == "" || content == manager.shown {
		return nil
	}

	if manager.origin == nil {
		msg, err := manager.bot.Send(manager.to, content)
		if err != nil {
			return err
		}
		manager.origin = msg
		manager.shown = content
		return nil
	}

	msg, err := manager.bot.Edit(manager.origin, content)
	if err != nil && !errors.Is(err, telebot.ErrMessageNotModified) {
		return err
	}
	if msg != nil {
		manager.origin = msg
	}
	manager.shown = content
	return nil
}

func firstChunk(text string) string {
	chunks := split(text)
	if len(chunks) == 0 {
		return ""
	}
	return chunks[0]
}

// split cuts text into pieces of at most maxMessageLen runes.
func split(text string) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	var chunks []string
	for len(runes) > maxMessageLen {
		chunks = append(chunks, string(runes[:maxMessageLen]))
		runes = runes[maxMessageLen:]
	}
	return append(chunks, string(runes))
}
