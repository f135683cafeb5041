package bot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v4"

	"telegpt/internal/assistant"
	"telegpt/internal/store/memory"
	assistantpkg "telegpt/pkg/assistant"
)

// fakeTelegram answers Bot API calls and records sent messages.
type fakeTelegram struct {
	mu       sync.Mutex
	updates  []string
	polls    int
	sent     []map[string]any
	commands int
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	raw, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "getUpdates":
		f.polls++
		if f.polls == 1 && len(f.updates) > 0 {
			_, _ = io.WriteString(w, `{"ok":true,"result":[`+strings.Join(f.updates, ",")+`]}`)
			return
		}
		time.Sleep(10 * time.Millisecond)
		_, _ = io.WriteString(w, `{"ok":true,"result":[]}`)
	case "sendMessage":
		var params map[string]any
		_ = json.Unmarshal(raw, &params)
		f.sent = append(f.sent, params)
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"text":"ok"}}`)
	case "setMyCommands":
		f.commands++
		_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
	}
}

func (f *fakeTelegram) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var texts []string
	for _, params := range f.sent {
		text, _ := params["text"].(string)
		texts = append(texts, text)
	}
	return texts
}

func newTestBot(t *testing.T, tg *fakeTelegram, completer assistantpkg.Completer) (*Bot, *memory.Store) {
	t.Helper()

	srv := httptest.NewServer(tg)
	t.Cleanup(srv.Close)

	store := memory.NewStore()
	svc := assistant.NewService(store, completer, assistant.Defaults{Model: "gpt-3.5-turbo"})
	b, err := NewBot(Settings{
		Token:          "123:abc",
		URL:            srv.URL,
		RequestTimeout: 5 * time.Second,
		Offline:        true,
	}, svc, nil)
	require.NoError(t, err)
	return b, store
}

func textUpdate(id int, text string) telebot.Update {
	return telebot.Update{
		ID: id,
		Message: &telebot.Message{
			ID:   id,
			Chat: &telebot.Chat{ID: 42, Type: telebot.ChatPrivate},
			Text: text,
		},
	}
}

func TestBot_HandleUpdateEndToEnd(t *testing.T) {
	tg := &fakeTelegram{}
	var calls []assistantpkg.CompletionRequest
	b, store := newTestBot(t, tg, fixedReply(&calls, "hi there"))

	ctx := context.Background()
	require.NoError(t, b.HandleUpdate(ctx, textUpdate(1, "/token sk-abc")))
	require.NoError(t, b.HandleUpdate(ctx, textUpdate(2, "hello")))

	assert.Equal(t, []string{textTokenSaved, "hi there"}, tg.sentTexts())
	require.Len(t, calls, 1)
	assert.Equal(t, "sk-abc", calls[0].APIKey)

	s, err := store.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "sk-abc", s.APIKey)
	assert.Equal(t, []assistantpkg.Message{
		{Role: assistantpkg.RoleUser, Content: "hello"},
		{Role: assistantpkg.RoleAssistant, Content: "hi there"},
	}, s.Messages)
}

func TestBot_HandleUpdateWithoutMessage(t *testing.T) {
	tg := &fakeTelegram{}
	var calls []assistantpkg.CompletionRequest
	b, _ := newTestBot(t, tg, fixedReply(&calls, "x"))

	require.NoError(t, b.HandleUpdate(context.Background(), telebot.Update{ID: 1}))
	assert.Empty(t, tg.sentTexts())
}

func TestBot_IgnoresCommandsForOtherBots(t *testing.T) {
	tg := &fakeTelegram{}
	var calls []assistantpkg.CompletionRequest
	b, store := newTestBot(t, tg, fixedReply(&calls, "hi there"))
	b.API.Me.Username = "gpt_bot"
	b.Dispatcher.botName = "gpt_bot"

	ctx := context.Background()
	require.NoError(t, b.HandleUpdate(ctx, textUpdate(1, "/token@GPT_bot sk-abc")))
	require.NoError(t, b.HandleUpdate(ctx, textUpdate(2, "hello")))
	require.NoError(t, b.HandleUpdate(ctx, textUpdate(3, "/clear@some_other_bot")))
	require.NoError(t, b.HandleUpdate(ctx, textUpdate(4, "/token@some_other_bot sk-other")))

	assert.Equal(t, []string{textTokenSaved, "hi there"}, tg.sentTexts())
	s, err := store.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "sk-abc", s.APIKey)
	assert.Len(t, s.Messages, 2)
}

func TestBot_HandleUpdateReturnsDispatchError(t *testing.T) {
	tg := &fakeTelegram{}
	var calls []assistantpkg.CompletionRequest
	b, _ := newTestBot(t, tg, fixedReply(&calls, "x"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.HandleUpdate(ctx, textUpdate(1, "/token sk-abc"))
	assert.ErrorIs(t, err, assistantpkg.ErrStoreUnavailable)
	assert.Equal(t, []string{textFailure}, tg.sentTexts())
}

func TestBot_RegisterCommands(t *testing.T) {
	tg := &fakeTelegram{}
	var calls []assistantpkg.CompletionRequest
	b, _ := newTestBot(t, tg, fixedReply(&calls, "x"))

	require.NoError(t, b.RegisterCommands())
	assert.Equal(t, 1, tg.commands)
}

type handlerFunc func(ctx context.Context, update telebot.Update) error

func (f handlerFunc) HandleUpdate(ctx context.Context, update telebot.Update) error {
	return f(ctx, update)
}

func TestPolling_RunHandlesUpdatesInOrder(t *testing.T) {
	tg := &fakeTelegram{updates: []string{
		`{"update_id":1,"message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"text":"first"}}`,
		`{"update_id":2,"message":{"message_id":2,"date":0,"chat":{"id":42,"type":"private"},"text":"second"}}`,
	}}
	var calls []assistantpkg.CompletionRequest
	b, _ := newTestBot(t, tg, fixedReply(&calls, "x"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []string
	handler := handlerFunc(func(_ context.Context, update telebot.Update) error {
		got = append(got, update.Message.Text)
		if len(got) == 2 {
			cancel()
		}
		return errors.New("handler errors do not stop polling")
	})

	errc := make(chan error, 1)
	go func() {
		errc <- NewPolling(b.API, handler, 0, nil).Run(ctx)
	}()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestPolling_ShutdownFinishesCurrentTurn(t *testing.T) {
	tg := &fakeTelegram{updates: []string{
		`{"update_id":1,"message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"text":"hello"}}`,
	}}
	started := make(chan struct{})
	release := make(chan struct{})
	b, store := newTestBot(t, tg, completerFunc(func(ctx context.Context, _ assistantpkg.CompletionRequest, _ assistantpkg.ChatResponseFunc) (string, error) {
		close(started)
		select {
		case <-release:
			return "hi there", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}))
	require.NoError(t, store.Put(context.Background(), assistantpkg.Session{ChatID: 42, APIKey: "sk-abc"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- NewPolling(b.API, b, 0, nil).Run(ctx)
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("turn did not start")
	}
	cancel()
	time.Sleep(20 * time.Millisecond)
	close(release)

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}

	assert.Equal(t, []string{"hi there"}, tg.sentTexts())
	s, err := store.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, []assistantpkg.Message{
		{Role: assistantpkg.RoleUser, Content: "hello"},
		{Role: assistantpkg.RoleAssistant, Content: "hi there"},
	}, s.Messages)
}

func TestWebhookServer_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewWebhookServer("127.0.0.1:0", http.NotFoundHandler(), nil)

	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("webhook server did not stop")
	}
}
