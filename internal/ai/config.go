package ai

import (
	"context"
	"github.com/myrjola/sleuth/internal/errors"
	"log/slog"
	"time"
)

var ErrUnknownProvider = errors.NewSentinel("unknown AI provider")

const (
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
	ProviderOffline = "offline"
)

// Config selects and configures the language model. Populate it with envstruct.
type Config struct {
	// Provider is one of openai, gemini or offline.
	Provider      string        `env:"SLEUTH_AI_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey  string        `env:"OPENAI_API_KEY" envDefault:""`
	OpenAIBaseURL string        `env:"SLEUTH_OPENAI_BASE_URL" envDefault:""`
	OpenAIModel   string        `env:"SLEUTH_OPENAI_MODEL" envDefault:""`
	GeminiAPIKey  string        `env:"GEMINI_API_KEY" envDefault:""`
	GeminiModel   string        `env:"SLEUTH_GEMINI_MODEL" envDefault:""`
	Attempts      int           `env:"SLEUTH_AI_ATTEMPTS" envDefault:"3"`
	RetryDelay    time.Duration `env:"SLEUTH_AI_RETRY_DELAY" envDefault:"1s"`
}

func (c Config) policy() RetryPolicy {
	return RetryPolicy{Attempts: c.Attempts, Delay: c.RetryDelay}
}

// NewTextGenerator returns the configured language model wrapped in retries. The returned close function releases
// the client.
func NewTextGenerator(ctx context.Context, cfg Config, logger *slog.Logger) (TextGenerator, func() error, error) {
	var (
		next    TextGenerator
		closeFn = func() error { return nil }
	)
	switch cfg.Provider {
	case ProviderOpenAI:
		next = NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	case ProviderGemini:
		gemini, err := NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, err
		}
		next, closeFn = gemini, gemini.Close
	case ProviderOffline:
		next = Offline{}
	default:
		return nil, nil, errors.Wrap(ErrUnknownProvider, "new text generator", slog.String("provider", cfg.Provider))
	}
	return NewRetrying(next, cfg.policy(), logger), closeFn, nil
}

// NewImageGenerator returns the image model wrapped in retries. Only OpenAI paints, the offline provider never
// does.
func NewImageGenerator(cfg Config, logger *slog.Logger) ImageGenerator {
	var next ImageGenerator = NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	if cfg.Provider == ProviderOffline {
		next = Offline{}
	}
	return NewRetryingImages(next, cfg.policy(), logger)
}
