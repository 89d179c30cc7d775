package logging_test

import (
	"bytes"
	"context"
	"github.com/myrjola/sleuth/internal/logging"
	"github.com/stretchr/testify/require"
	"log/slog"
	"testing"
)

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(&buf, nil)))

	ctx := logging.WithAttrs(context.Background(), slog.String("player_id", "p1"))
	child := logging.WithAttrs(ctx, slog.String("investigation_id", "i1"))
	sibling := logging.WithAttrs(ctx, slog.String("character_id", "c1"))

	logger.InfoContext(child, "asked question")
	require.Contains(t, buf.String(), "player_id=p1")
	require.Contains(t, buf.String(), "investigation_id=i1")
	require.NotContains(t, buf.String(), "character_id")

	buf.Reset()
	logger.With(slog.String("source", "test")).InfoContext(sibling, "answered")
	require.Contains(t, buf.String(), "character_id=c1")
	require.Contains(t, buf.String(), "source=test")
	require.NotContains(t, buf.String(), "investigation_id")
}
