package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	ollamaapi "github.com/ollama/ollama/api"

	assistantpkg "telegpt/pkg/assistant"
	"telegpt/pkg/optional"
)

// Ollama streams chat completions from an Ollama server. The chat's API key is
// sent as a bearer token, for servers behind an authenticating proxy.
type Ollama struct {
	base       *url.URL
	httpClient *http.Client
}

func NewOllama(host string, httpClient *http.Client) (*Ollama, error) {
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Ollama{base: base, httpClient: httpClient}, nil
}

func (o *Ollama) client(apiKey string) *ollamaapi.Client {
	httpClient := *o.httpClient
	transport := httpClient.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	httpClient.Transport = bearerTransport{token: apiKey, next: transport}
	return ollamaapi.NewClient(o.base, &httpClient)
}

func (o *Ollama) Complete(ctx context.Context, req assistantpkg.CompletionRequest, fn assistantpkg.ChatResponseFunc) (string, error) {
	builder := &strings.Builder{}
	builder.Grow(1024)

	err := o.client(req.APIKey).Chat(ctx, &ollamaapi.ChatRequest{
		Model:    req.Model,
		Messages: messagesToOllamaMessages(req.Messages),
		Stream:   optional.Pointer(true),
		Options: map[string]interface{}{
			"temperature": req.Temperature,
			"top_p":       req.TopP,
		},
	}, func(response ollamaapi.ChatResponse) error {
		builder.WriteString(response.Message.Content)
		if fn == nil {
			return nil
		}
		return fn(assistantpkg.ChatResponse{
			Content: response.Message.Content,
			Done:    response.Done,
		})
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}

	return builder.String(), nil
}

func messagesToOllamaMessages(messages []assistantpkg.Message) []ollamaapi.Message {
	result := make([]ollamaapi.Message, len(messages))
	for i, message := range messages {
		result[i] = ollamaapi.Message{
			Role:    message.Role,
			Content: message.Content,
		}
	}
	return result
}

type bearerTransport struct {
	token string
	next  http.RoundTripper
}

func (t bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token == "" {
		return t.next.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.next.RoundTrip(req)
}
