package repositories

import (
	"context"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/sqlite"
	"log/slog"
)

// PlayerRepository stores the anonymous players. A player is identified by the ID kept in their session.
type PlayerRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func NewPlayerRepository(db *sqlite.Database, logger *slog.Logger) *PlayerRepository {
	return &PlayerRepository{
		db:     db,
		logger: logger.With("source", "PlayerRepository"),
	}
}

// Ensure creates the player unless it exists.
func (r *PlayerRepository) Ensure(ctx context.Context, id string) error {
	stmt := `INSERT INTO players (id) VALUES (?) ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.ReadWrite.ExecContext(ctx, stmt, id); err != nil {
		return errors.Wrap(err, "ensure player", slog.String("player_id", id))
	}
	return nil
}

// Exists reports whether the player has been created.
func (r *PlayerRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	stmt := `SELECT EXISTS (SELECT 1 FROM players WHERE id = ?)`
	if err := r.db.ReadOnly.GetContext(ctx, &exists, stmt, id); err != nil {
		return false, errors.Wrap(err, "player exists", slog.String("player_id", id))
	}
	return exists, nil
}
