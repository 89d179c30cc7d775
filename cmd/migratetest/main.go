package main

import (
	"context"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/sqlite"
	"github.com/myrjola/sleuth/internal/testhelpers"
	"log/slog"
	"os"
	"time"
)

// main migrates a copy of the production database and checks that the players and their investigations survived.
func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	var (
		err       error
		start     = time.Now()
		ctx       context.Context
		sqliteURL string
		ok        bool
		cancel    context.CancelFunc
	)
	ctx = context.Background()
	ctx, cancel = context.WithTimeout(ctx, 5*time.Second) //nolint:mnd // 5 seconds

	if sqliteURL, ok = os.LookupEnv("SLEUTH_SQLITE_URL"); !ok {
		logger.LogAttrs(ctx, slog.LevelError, "SLEUTH_SQLITE_URL not set")
		os.Exit(1)
	}

	var db *sqlite.Database
	if db, err = sqlite.NewDatabase(ctx, sqliteURL, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating database",
			slog.String("url", sqliteURL), errors.SlogError(err))
		os.Exit(1)
	}

	for _, table := range []string{"players", "investigations"} {
		var count int
		if err = db.ReadOnly.GetContext(ctx, &count, `SELECT COUNT(*) FROM `+table); err != nil {
			logger.LogAttrs(ctx, slog.LevelError, "error counting rows", slog.String("table", table),
				errors.SlogError(err))
			os.Exit(1)
		}
		if count == 0 {
			logger.LogAttrs(ctx, slog.LevelError, "no rows found, something is likely wrong",
				slog.String("table", table))
			os.Exit(1)
		}
		logger.LogAttrs(ctx, slog.LevelInfo, "row count", slog.String("table", table), slog.Int("count", count))
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Migration test successful 🙌", slog.Duration("duration", time.Since(start)))
	cancel()
	os.Exit(0)
}
