package bot

import (
	"context"
	"strconv"
	"sync"

	"gopkg.in/telebot.v4"

	assistantpkg "telegpt/pkg/assistant"
)

type fakeMessenger struct {
	mu       sync.Mutex
	sent     []*telebot.Message
	edits    []string
	sendErr  error
	lastOpts []interface{}
}

func (f *fakeMessenger) Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return nil, f.sendErr
	}
	chatID, _ := strconv.ParseInt(to.Recipient(), 10, 64)
	msg := &telebot.Message{
		ID:   len(f.sent) + 1,
		Chat: &telebot.Chat{ID: chatID},
		Text: what.(string),
	}
	f.sent = append(f.sent, msg)
	f.lastOpts = opts
	return msg, nil
}

func (f *fakeMessenger) Edit(msg telebot.Editable, what interface{}, _ ...interface{}) (*telebot.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	origin := msg.(*telebot.Message)
	text := what.(string)
	f.edits = append(f.edits, text)
	edited := *origin
	edited.Text = text
	f.sent[origin.ID-1] = &edited
	return &edited, nil
}

// texts returns the current text of every message sent, after edits.
func (f *fakeMessenger) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]string, len(f.sent))
	for i, m := range f.sent {
		result[i] = m.Text
	}
	return result
}

type completerFunc func(ctx context.Context, req assistantpkg.CompletionRequest, fn assistantpkg.ChatResponseFunc) (string, error)

func (f completerFunc) Complete(ctx context.Context, req assistantpkg.CompletionRequest, fn assistantpkg.ChatResponseFunc) (string, error) {
	return f(ctx, req, fn)
}

// fixedReply streams reply in the given deltas.
func fixedReply(calls *[]assistantpkg.CompletionRequest, deltas ...string) completerFunc {
	return func(_ context.Context, req assistantpkg.CompletionRequest, fn assistantpkg.ChatResponseFunc) (string, error) {
		*calls = append(*calls, req)
		var reply string
		for _, d := range deltas {
			reply += d
			if err := fn(assistantpkg.ChatResponse{Content: d}); err != nil {
				return "", err
			}
		}
		return reply, fn(assistantpkg.ChatResponse{Done: true})
	}
}
