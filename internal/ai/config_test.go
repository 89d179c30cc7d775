package ai_test

import (
	"context"
	"github.com/myrjola/sleuth/internal/ai"
	"github.com/myrjola/sleuth/internal/envstruct"
	"github.com/myrjola/sleuth/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestConfig_defaults(t *testing.T) {
	var cfg ai.Config
	require.NoError(t, envstruct.Populate(&cfg, func(string) (string, bool) { return "", false }))
	require.Equal(t, ai.ProviderOpenAI, cfg.Provider)
	require.Equal(t, ai.DefaultAttempts, cfg.Attempts)
	require.Equal(t, ai.DefaultRetryDelay, cfg.RetryDelay)
}

func TestNewTextGenerator(t *testing.T) {
	ctx := context.Background()
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	tests := []struct {
		name     string
		provider string
		wantErr  error
	}{
		{name: "openai", provider: ai.ProviderOpenAI},
		{name: "offline", provider: ai.ProviderOffline},
		{name: "unknown", provider: "clairvoyant", wantErr: ai.ErrUnknownProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ai.Config{ //nolint:exhaustruct // keys are not needed
				Provider:   tt.provider,
				Attempts:   2,
				RetryDelay: time.Millisecond,
			}
			text, closeFn, err := ai.NewTextGenerator(ctx, cfg, logger)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, text)
			require.NoError(t, closeFn())
		})
	}
}

func TestNewTextGenerator_offline(t *testing.T) {
	cfg := ai.Config{Provider: ai.ProviderOffline, Attempts: 3, RetryDelay: time.Hour} //nolint:exhaustruct // offline
	text, _, err := ai.NewTextGenerator(context.Background(), cfg, testhelpers.NewLogger(testhelpers.NewWriter(t)))
	require.NoError(t, err)

	// Offline failures are permanent so the hour-long retry delay is never waited.
	_, err = text.Generate(context.Background(), []ai.Message{{Role: ai.RoleUser, Content: "Who did it?"}})
	require.ErrorIs(t, err, ai.ErrOffline)

	_, err = ai.NewImageGenerator(cfg, testhelpers.NewLogger(testhelpers.NewWriter(t))).
		GenerateImage(context.Background(), "a manor")
	require.ErrorIs(t, err, ai.ErrOffline)
}
