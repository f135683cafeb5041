package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	assistantpkg "telegpt/pkg/assistant"
)

// OpenAI streams chat completions. The API key comes with every request, so
// one client serves all chats.
type OpenAI struct {
	client *openai.Client
}

type OpenAIConfig struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewOpenAI(conf OpenAIConfig) *OpenAI {
	var opts []option.RequestOption
	if conf.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(conf.BaseURL))
	}
	if conf.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(conf.HTTPClient))
	}
	return &OpenAI{client: openai.NewClient(opts...)}
}

func (o *OpenAI) Complete(ctx context.Context, req assistantpkg.CompletionRequest, fn assistantpkg.ChatResponseFunc) (string, error) {
	stream := o.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Messages:    openai.F(messagesToOpenAIMessages(req.Messages)),
		Model:       openai.F(req.Model),
		Temperature: openai.Float(req.Temperature),
		TopP:        openai.Float(req.TopP),
	}, option.WithAPIKey(req.APIKey))
	defer stream.Close()

	builder := &strings.Builder{}
	builder.Grow(1024)

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}

		content := chunk.Choices[0].Delta.Content
		builder.WriteString(content)
		if fn != nil {
			if err := fn(assistantpkg.ChatResponse{Content: content}); err != nil {
				return "", err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("openai stream: %w", err)
	}

	if fn != nil {
		if err := fn(assistantpkg.ChatResponse{Done: true}); err != nil {
			return "", err
		}
	}
	return builder.String(), nil
}

func messagesToOpenAIMessages(messages []assistantpkg.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, message := range messages {
		switch message.Role {
		case assistantpkg.RoleAssistant:
			result[i] = openai.AssistantMessage(message.Content)
		default:
			result[i] = openai.UserMessage(message.Content)
		}
	}
	return result
}
