package ai

import (
	"context"
	"github.com/google/generative-ai-go/genai"
	"github.com/myrjola/sleuth/internal/errors"
	"google.golang.org/api/option"
	"log/slog"
	"strings"
)

const defaultGeminiModel = "gemini-2.5-flash"

// Gemini generates text with the Google Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey string, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrap(err, "new genai client")
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Close() error {
	if err := g.client.Close(); err != nil {
		return errors.Wrap(err, "close genai client")
	}
	return nil
}

func (g *Gemini) Generate(ctx context.Context, messages []Message) (string, error) {
	system, history, last := toGeminiContents(messages)
	if last == nil {
		return "", Permanent(errors.Wrap(ErrEmptyResponse, "no user message to send"))
	}

	// A model per call since the system instruction differs per character.
	model := g.client.GenerativeModel(g.model)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = system
	session := model.StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, last.Parts...)
	if err != nil {
		return "", errors.Wrap(err, "send message", slog.String("model", g.model))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.Wrap(ErrEmptyResponse, "send message", slog.String("model", g.model))
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", errors.Wrap(ErrEmptyResponse, "send message", slog.String("model", g.model))
	}
	return sb.String(), nil
}

// toGeminiContents splits the conversation into the system instruction, the chat history and the message to
// send. System messages are merged since Gemini accepts only one instruction.
func toGeminiContents(messages []Message) (*genai.Content, []*genai.Content, *genai.Content) {
	var (
		systemParts []genai.Part
		contents    []*genai.Content
	)
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			systemParts = append(systemParts, genai.Text(m.Content))
		case RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		case RoleUser:
			contents = append(contents, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	var system *genai.Content
	if len(systemParts) > 0 {
		system = &genai.Content{Role: "", Parts: systemParts}
	}
	if len(contents) == 0 || contents[len(contents)-1].Role != "user" {
		return system, contents, nil
	}
	return system, contents[:len(contents)-1], contents[len(contents)-1]
}
