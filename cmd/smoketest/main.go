package main

import (
	"context"
	"github.com/myrjola/sleuth/internal/e2etest"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/logging"
	"log/slog"
	"net/http"
	"os"
	"time"
)

var errUnexpectedStatus = errors.NewSentinel("unexpected status code")

type created struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// TestInvestigation starts an anonymous session and creates an investigation. Generation is not awaited so that
// the smoke test doesn't spend model tokens.
func TestInvestigation(client *e2etest.Client) error {
	ctx := context.Background()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second) //nolint:mnd // 10 seconds
	defer cancel()

	if err := client.WaitForReady(ctx, "/api/healthy"); err != nil {
		return errors.Wrap(err, "wait for ready")
	}
	if _, err := client.StartSession(ctx); err != nil {
		return errors.Wrap(err, "start session")
	}

	var inv created
	status, err := client.PostJSON(ctx, "/api/investigations",
		map[string]string{"prompt": "A smoke test gone wrong in a chimney sweep's workshop"}, &inv)
	if err != nil {
		return errors.Wrap(err, "create investigation")
	}
	if status != http.StatusAccepted {
		return errors.Wrap(errUnexpectedStatus, "create investigation", slog.Int("status", status))
	}

	var fetched created
	if status, err = client.GetJSON(ctx, "/api/investigations/"+inv.ID, &fetched); err != nil {
		return errors.Wrap(err, "get investigation", slog.String("investigation_id", inv.ID))
	}
	if status != http.StatusOK {
		return errors.Wrap(errUnexpectedStatus, "get investigation", slog.Int("status", status))
	}
	return nil
}

func main() {
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	ctx := context.Background()

	if len(os.Args) != 2 { //nolint:mnd // we expect only hostname to be passed as argument.
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <hostname>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		url      = "https://" + hostname
		client   *e2etest.Client
		err      error
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", url))

	if client, err = e2etest.NewClient(url); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating client", errors.SlogError(err))
		os.Exit(1)
	}
	if err = TestInvestigation(client); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error testing investigation", errors.SlogError(err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌")
	os.Exit(0)
}
