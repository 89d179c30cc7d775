package ai

import (
	"context"
	"encoding/base64"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/sashabaranov/go-openai"
	"log/slog"
	"net/http"
)

const MaxTokens = 4096

// OpenAI generates text and images with the OpenAI API.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates the provider. baseURL overrides the API endpoint when not empty.
func NewOpenAI(apiKey string, baseURL string, model string) *OpenAI {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT3Dot5Turbo1106
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (c *OpenAI) Generate(ctx context.Context, messages []Message) (string, error) {
	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{ //nolint:exhaustruct // this is better for readability
			Role:    string(m.Role),
			Content: m.Content,
		}
	}
	completion, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
			Model:     c.model,
			MaxTokens: MaxTokens,
			Messages:  chatMessages,
		},
	)
	if err != nil {
		return "", classify(errors.Wrap(err, "create chat completion", slog.String("model", c.model)))
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", errors.Wrap(ErrEmptyResponse, "create chat completion", slog.String("model", c.model))
	}
	return completion.Choices[0].Message.Content, nil
}

func (c *OpenAI) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	response, err := c.client.CreateImage(ctx, openai.ImageRequest{ //nolint:exhaustruct // this is better for readability
		Model:          openai.CreateImageModelDallE3,
		Prompt:         prompt,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
		N:              1,
	})
	if err != nil {
		return nil, classify(errors.Wrap(err, "create image"))
	}
	if len(response.Data) == 0 {
		return nil, errors.Wrap(ErrEmptyResponse, "create image")
	}
	img, err := base64.StdEncoding.DecodeString(response.Data[0].B64JSON)
	if err != nil {
		return nil, Permanent(errors.Wrap(err, "decode base64 image"))
	}
	return img, nil
}

// classify marks client errors other than rate limiting as permanent.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.HTTPStatusCode
		if code >= http.StatusBadRequest && code < http.StatusInternalServerError && code != http.StatusTooManyRequests {
			return Permanent(err)
		}
	}
	return err
}
