package ai_test

import (
	"context"
	"github.com/myrjola/sleuth/internal/ai"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

// scriptedGenerator fails until the configured number of calls has been made.
type scriptedGenerator struct {
	failures int
	err      error
	calls    int
}

func (g *scriptedGenerator) Generate(context.Context, []ai.Message) (string, error) {
	g.calls++
	if g.calls <= g.failures {
		return "", g.err
	}
	return `{"response":"Good evening, detective."}`, nil
}

func (g *scriptedGenerator) GenerateImage(context.Context, string) ([]byte, error) {
	g.calls++
	if g.calls <= g.failures {
		return nil, g.err
	}
	return []byte("png"), nil
}

var errFlaky = errors.NewSentinel("connection reset") //nolint:gochecknoglobals // test fixture

func TestRetrying(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
		wantErr   error
	}{
		{name: "succeeds first time", failures: 0, err: errFlaky, wantCalls: 1},
		{name: "succeeds on last attempt", failures: 2, err: errFlaky, wantCalls: 3},
		{name: "exhausts attempts", failures: 5, err: errFlaky, wantCalls: 3, wantErr: ai.ErrRetriesExhausted},
		{name: "permanent error stops early", failures: 5, err: ai.Permanent(ai.ErrOffline), wantCalls: 1, wantErr: ai.ErrOffline},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &scriptedGenerator{failures: tt.failures, err: tt.err, calls: 0}
			r := ai.NewRetrying(gen, ai.RetryPolicy{Attempts: 3, Delay: 0}, testhelpers.NewLogger(testhelpers.NewWriter(t)))
			out, err := r.Generate(context.Background(), []ai.Message{{Role: ai.RoleUser, Content: "Hello"}})
			require.Equal(t, tt.wantCalls, gen.calls)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Contains(t, out, "detective")
		})
	}
}

func TestRetrying_lastErrorIsKept(t *testing.T) {
	gen := &scriptedGenerator{failures: 5, err: errFlaky, calls: 0}
	r := ai.NewRetrying(gen, ai.RetryPolicy{Attempts: 2, Delay: 0}, testhelpers.NewLogger(testhelpers.NewWriter(t)))
	_, err := r.Generate(context.Background(), nil)
	require.ErrorIs(t, err, errFlaky)
	require.ErrorIs(t, err, ai.ErrRetriesExhausted)
}

func TestRetrying_contextCancelled(t *testing.T) {
	gen := &scriptedGenerator{failures: 5, err: errFlaky, calls: 0}
	r := ai.NewRetrying(gen, ai.RetryPolicy{Attempts: 3, Delay: time.Hour}, testhelpers.NewLogger(testhelpers.NewWriter(t)))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := r.Generate(ctx, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, gen.calls)
}

func TestRetryingImages(t *testing.T) {
	gen := &scriptedGenerator{failures: 1, err: errFlaky, calls: 0}
	r := ai.NewRetryingImages(gen, ai.RetryPolicy{Attempts: 3, Delay: 0}, testhelpers.NewLogger(testhelpers.NewWriter(t)))
	img, err := r.GenerateImage(context.Background(), "a foggy street")
	require.NoError(t, err)
	require.Equal(t, []byte("png"), img)
	require.Equal(t, 2, gen.calls)
}

func TestOffline(t *testing.T) {
	_, err := ai.Offline{}.Generate(context.Background(), nil)
	require.ErrorIs(t, err, ai.ErrOffline)
	require.True(t, ai.IsPermanent(err))
	_, err = ai.Offline{}.GenerateImage(context.Background(), "prompt")
	require.ErrorIs(t, err, ai.ErrOffline)
}
