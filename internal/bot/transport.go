package bot

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"gopkg.in/telebot.v4"
)

// Transport feeds updates to an UpdateHandler until ctx is cancelled.
type Transport interface {
	Run(ctx context.Context) error
}

type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update telebot.Update) error
}

// Polling long-polls getUpdates and handles each update to completion before
// reading the next. The poller confirms the last update of a batch with its
// next request while that update is still being handled, so shutdown waits for
// the update in progress instead of cancelling it. Updates of a batch not yet
// read when shutdown starts are never confirmed and are redelivered.
type Polling struct {
	api     *telebot.Bot
	poller  *telebot.LongPoller
	handler UpdateHandler
	logger  *slog.Logger
}

func NewPolling(api *telebot.Bot, handler UpdateHandler, timeout time.Duration, logger *slog.Logger) *Polling {
	if logger == nil {
		logger = slog.Default()
	}
	return &Polling{
		api:     api,
		poller:  &telebot.LongPoller{Timeout: timeout},
		handler: handler,
		logger:  logger,
	}
}

func (p *Polling) Run(ctx context.Context) error {
	updates := make(chan telebot.Update)
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		p.poller.Poll(p.api, updates, stop)
	}()

	p.logger.Info("Polling for updates", slog.Duration("timeout", p.poller.Timeout))
	for {
		select {
		case <-ctx.Done():
			return p.shutdown(stop, updates, done)
		case update := <-updates:
			if ctx.Err() != nil {
				return p.shutdown(stop, updates, done)
			}
			// The turn runs to completion even if shutdown starts meanwhile.
			if err := p.handler.HandleUpdate(context.WithoutCancel(ctx), update); err != nil {
				p.logger.Error("Failed to handle update", slog.Int("update_id", update.ID), slog.Any("error", err))
			}
		}
	}
}

func (p *Polling) shutdown(stop chan struct{}, updates <-chan telebot.Update, done <-chan struct{}) error {
	p.logger.Info("Stopping polling")
	close(stop)
	for {
		select {
		case <-done:
			return nil
		case <-updates:
		}
	}
}

// WebhookServer serves webhook requests over plain HTTP, for deployments that
// terminate TLS in front of the bot.
type WebhookServer struct {
	server *http.Server
	logger *slog.Logger
}

func NewWebhookServer(addr string, handler http.Handler, logger *slog.Logger) *WebhookServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func (s *WebhookServer) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("Serving webhook", slog.String("addr", s.server.Addr))
		errc <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}
