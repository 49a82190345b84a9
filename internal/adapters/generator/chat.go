package generator

import (
	"context"
	"encoding/base64"
	"errors"
	"fixfur/internal/core/domain"
	"fmt"
	"strings"

	"github.com/revrost/go-openrouter"
)

const DefaultBaseURL = "https://api.openai.com/v1"

type chatClient interface {
	CreateChatCompletion(ctx context.Context,
		ccr openrouter.ChatCompletionRequest) (openrouter.ChatCompletionResponse, error)
}

// Chat completes requests against an OpenAI-compatible chat completion API.
type Chat struct {
	client chatClient
	model  string
}

func NewChat(apiKey, baseURL, model string) *Chat {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Chat{
		model: model,
		client: openrouter.NewClient(
			apiKey,
			openrouter.WithXTitle("fixfur-bot"),
			func(c *openrouter.ClientConfig) {
				c.BaseURL = strings.TrimSuffix(baseURL, "/")
			},
		),
	}
}

func (c *Chat) Complete(ctx context.Context, request domain.Request) (domain.ModelResponse, error) {
	messages := make([]openrouter.ChatCompletionMessage, 0, 2)
	if request.SystemInstruction != "" {
		messages = append(messages, openrouter.ChatCompletionMessage{
			Role:    openrouter.ChatMessageRoleSystem,
			Content: openrouter.Content{Text: request.SystemInstruction},
		})
	}
	messages = append(messages, createUserMessage(request))

	ccr := openrouter.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: request.Temperature,
		MaxTokens:   request.MaxTokens,
	}

	resp, err := c.client.CreateChatCompletion(ctx, ccr)
	if err != nil {
		return domain.ModelResponse{}, domain.NewTurnError(domain.UpstreamCallFailed,
			fmt.Errorf("chat completion API error: %w", err))
	}

	if len(resp.Choices) == 0 {
		return domain.ModelResponse{}, domain.NewTurnError(domain.UpstreamCallFailed,
			errors.New("chat completion returned no choices"))
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content.Text)
	if text == "" {
		return domain.ModelResponse{}, domain.NewTurnError(domain.UpstreamCallFailed, domain.ErrEmptyReply)
	}

	metadata := domain.ResponseMetadata{Model: resp.Model}
	// some OpenAI-compatible servers omit usage
	if resp.Usage != nil {
		metadata.CompletionTokens = resp.Usage.CompletionTokens
		metadata.TotalTokens = resp.Usage.TotalTokens
	}

	return domain.ModelResponse{Response: text, Metadata: metadata}, nil
}

func createUserMessage(request domain.Request) openrouter.ChatCompletionMessage {
	if request.Image != nil && len(request.Image.Data) > 0 {
		return openrouter.ChatCompletionMessage{
			Role: openrouter.ChatMessageRoleUser,
			Content: openrouter.Content{Multi: []openrouter.ChatMessagePart{
				{
					Type: openrouter.ChatMessagePartTypeText,
					Text: request.Text,
				},
				{
					Type:     openrouter.ChatMessagePartTypeImageURL,
					ImageURL: &openrouter.ChatMessageImageURL{URL: dataURL(request.Image)},
				},
			},
			},
		}
	}

	return openrouter.ChatCompletionMessage{
		Role: openrouter.ChatMessageRoleUser,
		Content: openrouter.Content{
			Text: request.Text,
		},
	}
}

func dataURL(image *domain.InlineImage) string {
	return "data:" + image.MimeType + ";base64," + base64.StdEncoding.EncodeToString(image.Data)
}
