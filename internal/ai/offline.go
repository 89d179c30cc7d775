package ai

import (
	"context"
	"github.com/myrjola/sleuth/internal/errors"
)

// Offline is the provider used when no API key is configured. Every call fails permanently so that the game
// runs on its fallback content.
type Offline struct{}

func (Offline) Generate(context.Context, []Message) (string, error) {
	return "", Permanent(errors.Wrap(ErrOffline, "generate text"))
}

func (Offline) GenerateImage(context.Context, string) ([]byte, error) {
	return nil, Permanent(errors.Wrap(ErrOffline, "generate image"))
}
