// Package ai talks to the generative models that write the mysteries, voice the characters and paint the
// portraits.
package ai

import (
	"context"
	"github.com/myrjola/sleuth/internal/errors"
)

var (
	// ErrOffline is returned by the [Offline] provider. Callers fall back to default content.
	ErrOffline = errors.NewSentinel("ai provider offline")
	// ErrEmptyResponse is returned when the model answered without content.
	ErrEmptyResponse = errors.NewSentinel("empty response from model")
	// ErrRetriesExhausted is returned when every attempt failed.
	ErrRetriesExhausted = errors.NewSentinel("retries exhausted")
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one message of a conversation with a text model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TextGenerator completes a conversation. Implementations return the raw text of the first choice.
type TextGenerator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// ImageGenerator paints an image from a prompt and returns it PNG encoded.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// permanentError marks errors that retrying cannot fix.
type permanentError struct {
	err error
}

func (e permanentError) Error() string {
	return e.err.Error()
}

func (e permanentError) Unwrap() error {
	return e.err
}

// Permanent marks err as not retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was marked with [Permanent].
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}
