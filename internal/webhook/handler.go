// Package webhook accepts Telegram webhook deliveries, one update per request.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"gopkg.in/telebot.v4"
)

// SecretHeader carries the secret_token given to setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxBodySize = 1 << 20

type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update telebot.Update) error
}

type Handler struct {
	secret  string
	updates UpdateHandler
	logger  *slog.Logger
}

func NewHandler(secret string, updates UpdateHandler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		secret:  secret,
		updates: updates,
		logger:  logger,
	}
}

// Handle validates and processes one delivery and returns the status code to
// answer with. Replies go out through the Bot API, never in the response.
func (h *Handler) Handle(ctx context.Context, header http.Header, body []byte) int {
	if h.secret == "" {
		h.logger.Error("Webhook secret token is not configured")
		return http.StatusInternalServerError
	}
	got := header.Get(SecretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		h.logger.Error("Invalid webhook secret token")
		return http.StatusUnauthorized
	}

	var update telebot.Update
	if err := json.Unmarshal(body, &update); err != nil {
		h.logger.Error("Failed to decode update", slog.Any("error", err))
		return http.StatusBadRequest
	}

	// Telegram retries non-2xx answers, which would repeat the reply, so
	// handling errors are only logged.
	if err := h.updates.HandleUpdate(ctx, update); err != nil {
		h.logger.Error("Failed to handle update", slog.Int("update_id", update.ID), slog.Any("error", err))
	}
	return http.StatusOK
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(h.Handle(r.Context(), r.Header, body))
}

// HandleLambda adapts Handle to API Gateway HTTP APIs and Lambda function URLs.
func (h *Handler) HandleLambda(ctx context.Context, event events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	header := make(http.Header, len(event.Headers))
	for k, v := range event.Headers {
		header.Set(k, v)
	}

	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			h.logger.Error("Failed to decode base64 body", slog.Any("error", err))
			return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest}, nil
		}
		body = decoded
	}

	return events.APIGatewayV2HTTPResponse{StatusCode: h.Handle(ctx, header, body)}, nil
}
