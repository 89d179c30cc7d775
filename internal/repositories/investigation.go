package repositories

import (
	"context"
	"database/sql"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/game"
	"github.com/myrjola/sleuth/internal/models"
	"github.com/myrjola/sleuth/internal/sqlite"
	"log/slog"
	"time"
)

var (
	ErrNotFound = errors.NewSentinel("not found")
	// ErrConflict is returned when another request changed the investigation at the same time.
	ErrConflict = errors.NewSentinel("concurrent update")
)

type InvestigationRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func NewInvestigationRepository(db *sqlite.Database, logger *slog.Logger) *InvestigationRepository {
	return &InvestigationRepository{
		db:     db,
		logger: logger.With("source", "InvestigationRepository"),
	}
}

// Create stores a new investigation together with its characters and clues.
func (r *InvestigationRepository) Create(ctx context.Context, inv models.Investigation) error {
	tx, err := r.db.ReadWrite.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer r.rollback(ctx, tx)

	stmt := `INSERT INTO investigations (id, player_id, title, prompt, setting, status, image_url, created_at, updated_at)
VALUES (:id, :player_id, :title, :prompt, :setting, :status, :image_url, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, stmt, investigationRow{
		ID:        inv.ID,
		PlayerID:  inv.PlayerID,
		Title:     inv.Title,
		Prompt:    inv.Prompt,
		Setting:   inv.Setting,
		Status:    string(inv.Status),
		ImageURL:  inv.ImageURL,
		CreatedAt: formatTime(inv.CreatedAt),
		UpdatedAt: formatTime(inv.UpdatedAt),
	}); err != nil {
		return errors.Wrap(err, "insert investigation", slog.String("investigation_id", inv.ID))
	}
	if err = insertContent(ctx, tx, inv); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// SaveContent replaces the generated content of the investigation: title, setting, status, characters and clues.
func (r *InvestigationRepository) SaveContent(ctx context.Context, inv models.Investigation) error {
	tx, err := r.db.ReadWrite.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer r.rollback(ctx, tx)

	stmt := `UPDATE investigations
SET title = ?, setting = ?, status = ?, image_url = ?, updated_at = ?
WHERE id = ? AND player_id = ?`
	res, err := tx.ExecContext(ctx, stmt, inv.Title, inv.Setting, string(inv.Status), inv.ImageURL,
		formatTime(inv.UpdatedAt), inv.ID, inv.PlayerID)
	if err = requireAffected(res, err); err != nil {
		return errors.Wrap(err, "update investigation", slog.String("investigation_id", inv.ID))
	}
	for _, table := range []string{"dialog_entries", "leads", "accusations", "characters", "clues"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE investigation_id = ?", inv.ID); err != nil {
			return errors.Wrap(err, "delete content", slog.String("table", table))
		}
	}
	if err = insertContent(ctx, tx, inv); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

func insertContent(ctx context.Context, tx *sqlx.Tx, inv models.Investigation) error {
	for i, c := range inv.Characters {
		row, err := newCharacterRow(inv.ID, i, c)
		if err != nil {
			return err
		}
		stmt := `INSERT INTO characters (id, investigation_id, "order", name, role, personality, knowledge,
                        reputation_score, position_x, position_y, image_url, is_culprit)
VALUES (:id, :investigation_id, :order, :name, :role, :personality, :knowledge, :reputation_score, :position_x,
        :position_y, :image_url, :is_culprit)`
		if _, err = tx.NamedExecContext(ctx, stmt, row); err != nil {
			return errors.Wrap(err, "insert character", slog.String("character_id", c.ID))
		}
	}
	for i, c := range inv.Clues {
		stmt := `INSERT INTO clues (id, investigation_id, "order", description, location, position_x, position_y, discovered)
VALUES (:id, :investigation_id, :order, :description, :location, :position_x, :position_y, :discovered)`
		if _, err := tx.NamedExecContext(ctx, stmt, clueRow{
			ID:              c.ID,
			InvestigationID: inv.ID,
			Order:           i,
			Description:     c.Description,
			Location:        c.Location,
			PositionX:       c.Position.X,
			PositionY:       c.Position.Y,
			Discovered:      c.Discovered,
		}); err != nil {
			return errors.Wrap(err, "insert clue", slog.String("clue_id", c.ID))
		}
	}
	return nil
}

// Get reads the whole investigation. Investigations of other players are not found.
func (r *InvestigationRepository) Get(ctx context.Context, id string, playerID string) (models.Investigation, error) {
	var (
		row models.Investigation
		err error
	)
	db := r.db.ReadOnly

	var invRow investigationRow
	stmt := `SELECT id, player_id, title, prompt, setting, status, image_url, created_at, updated_at
FROM investigations WHERE id = ? AND player_id = ?`
	if err = db.GetContext(ctx, &invRow, stmt, id, playerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Investigation{}, errors.Wrap(ErrNotFound, "get investigation", slog.String("investigation_id", id))
		}
		return models.Investigation{}, errors.Wrap(err, "get investigation", slog.String("investigation_id", id))
	}
	if row, err = invRow.model(); err != nil {
		return models.Investigation{}, err
	}

	var characters []characterRow
	stmt = `SELECT id, investigation_id, "order", name, role, personality, knowledge, reputation_score, position_x,
       position_y, image_url, is_culprit
FROM characters WHERE investigation_id = ? ORDER BY "order"`
	if err = db.SelectContext(ctx, &characters, stmt, id); err != nil {
		return models.Investigation{}, errors.Wrap(err, "select characters")
	}
	for _, c := range characters {
		character, err := c.model()
		if err != nil {
			return models.Investigation{}, errors.Wrap(err, "character", slog.String("character_id", c.ID))
		}
		row.Characters = append(row.Characters, character)
	}

	var clues []clueRow
	stmt = `SELECT id, investigation_id, "order", description, location, position_x, position_y, discovered
FROM clues WHERE investigation_id = ? ORDER BY "order"`
	if err = db.SelectContext(ctx, &clues, stmt, id); err != nil {
		return models.Investigation{}, errors.Wrap(err, "select clues")
	}
	for _, c := range clues {
		row.Clues = append(row.Clues, c.model())
	}

	var leads []leadRow
	stmt = `SELECT id, text, confidence, source_character_id, source_clue_id, created_at
FROM leads WHERE investigation_id = ? ORDER BY id`
	if err = db.SelectContext(ctx, &leads, stmt, id); err != nil {
		return models.Investigation{}, errors.Wrap(err, "select leads")
	}
	for _, l := range leads {
		lead, err := l.model()
		if err != nil {
			return models.Investigation{}, err
		}
		row.Leads = append(row.Leads, lead)
	}

	var dialog []dialogRow
	stmt = `SELECT id, character_id, "order", speaker, text, truth_likelihood, reputation_impact, created_at
FROM dialog_entries WHERE investigation_id = ? ORDER BY "order"`
	if err = db.SelectContext(ctx, &dialog, stmt, id); err != nil {
		return models.Investigation{}, errors.Wrap(err, "select dialog entries")
	}
	for _, d := range dialog {
		entry, err := d.model()
		if err != nil {
			return models.Investigation{}, err
		}
		row.Dialog = append(row.Dialog, entry)
	}

	var accusation accusationRow
	stmt = `SELECT character_id, correct, created_at FROM accusations WHERE investigation_id = ?`
	err = db.GetContext(ctx, &accusation, stmt, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return models.Investigation{}, errors.Wrap(err, "get accusation")
	default:
		if row.Accusation, err = accusation.model(); err != nil {
			return models.Investigation{}, err
		}
	}

	return row, nil
}

// List returns the investigations of the player, newest first, without their content.
func (r *InvestigationRepository) List(ctx context.Context, playerID string) ([]models.Investigation, error) {
	var rows []investigationRow
	stmt := `SELECT id, player_id, title, prompt, setting, status, image_url, created_at, updated_at
FROM investigations WHERE player_id = ? ORDER BY created_at DESC`
	if err := r.db.ReadOnly.SelectContext(ctx, &rows, stmt, playerID); err != nil {
		return nil, errors.Wrap(err, "select investigations")
	}
	investigations := make([]models.Investigation, 0, len(rows))
	for _, row := range rows {
		inv, err := row.model()
		if err != nil {
			return nil, err
		}
		investigations = append(investigations, inv)
	}
	return investigations, nil
}

// Save persists the game state of the investigation and returns it with the IDs of new leads and dialogue entries
// filled in.
//
// readAt is the UpdatedAt of the investigation the state was derived from. The save fails with ErrConflict when
// the investigation has been saved since then or when it would reopen a closed investigation. Dialogue entries are
// append-only and an accusation can be stored only once.
func (r *InvestigationRepository) Save(
	ctx context.Context,
	inv models.Investigation,
	readAt time.Time,
) (models.Investigation, error) {
	tx, err := r.db.ReadWrite.BeginTxx(ctx, nil)
	if err != nil {
		return models.Investigation{}, errors.Wrap(err, "begin transaction")
	}
	defer r.rollback(ctx, tx)
	attr := slog.String("investigation_id", inv.ID)

	stmt := `UPDATE investigations SET status = ?, image_url = ?, updated_at = ?
WHERE id = ? AND player_id = ? AND updated_at = ? AND (status = ? OR status = ?)`
	res, err := tx.ExecContext(ctx, stmt, string(inv.Status), inv.ImageURL, formatTime(inv.UpdatedAt), inv.ID,
		inv.PlayerID, formatTime(readAt), string(models.InvestigationStatusActive), string(inv.Status))
	if err = requireAffected(res, err); errors.Is(err, ErrNotFound) {
		err = r.conflictOrNotFound(ctx, tx, inv)
	}
	if err != nil {
		return models.Investigation{}, errors.Wrap(err, "update investigation", attr,
			slog.String("read_at", formatTime(readAt)))
	}

	for _, c := range inv.Characters {
		stmt = `UPDATE characters SET reputation_score = ?, image_url = ? WHERE id = ? AND investigation_id = ?`
		if _, err = tx.ExecContext(ctx, stmt, c.ReputationScore, c.ImageURL, c.ID, inv.ID); err != nil {
			return models.Investigation{}, errors.Wrap(err, "update character", attr, slog.String("character_id", c.ID))
		}
	}
	for _, c := range inv.Clues {
		stmt = `UPDATE clues SET discovered = ? WHERE id = ? AND investigation_id = ?`
		if _, err = tx.ExecContext(ctx, stmt, c.Discovered, c.ID, inv.ID); err != nil {
			return models.Investigation{}, errors.Wrap(err, "update clue", attr, slog.String("clue_id", c.ID))
		}
	}

	inv.Leads = append([]models.Lead(nil), inv.Leads...)
	for i := range inv.Leads {
		lead := &inv.Leads[i]
		if lead.ID != 0 {
			stmt = `UPDATE leads SET text = ?, confidence = ? WHERE id = ? AND investigation_id = ?`
			if _, err = tx.ExecContext(ctx, stmt, lead.Text, lead.Confidence, lead.ID, inv.ID); err != nil {
				return models.Investigation{}, errors.Wrap(err, "update lead", attr, slog.Int64("lead_id", lead.ID))
			}
			continue
		}
		stmt = `INSERT INTO leads (investigation_id, text, confidence, source_character_id, source_clue_id, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
		if res, err = tx.ExecContext(ctx, stmt, inv.ID, lead.Text, lead.Confidence,
			nullable(lead.SourceCharacterID), nullable(lead.SourceClueID), formatTime(lead.CreatedAt)); err != nil {
			return models.Investigation{}, errors.Wrap(err, "insert lead", attr)
		}
		if lead.ID, err = res.LastInsertId(); err != nil {
			return models.Investigation{}, errors.Wrap(err, "lead id", attr)
		}
	}

	inv.Dialog = append([]models.DialogEntry(nil), inv.Dialog...)
	for i := range inv.Dialog {
		entry := &inv.Dialog[i]
		if entry.ID != 0 {
			continue
		}
		stmt = `INSERT INTO dialog_entries (investigation_id, character_id, "order", speaker, text, truth_likelihood,
                            reputation_impact, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
		if res, err = tx.ExecContext(ctx, stmt, inv.ID, entry.CharacterID, entry.Order, string(entry.Speaker),
			entry.Text, entry.TruthLikelihood, entry.ReputationImpact, formatTime(entry.CreatedAt)); err != nil {
			if isUniqueViolation(err) {
				return models.Investigation{}, errors.Wrap(ErrConflict, "insert dialog entry", attr,
					slog.Int64("order", entry.Order))
			}
			return models.Investigation{}, errors.Wrap(err, "insert dialog entry", attr)
		}
		if entry.ID, err = res.LastInsertId(); err != nil {
			return models.Investigation{}, errors.Wrap(err, "dialog entry id", attr)
		}
	}

	if inv.Accusation != nil {
		if err = saveAccusation(ctx, tx, inv.ID, *inv.Accusation); err != nil {
			return models.Investigation{}, errors.Wrap(err, "save accusation", attr)
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Investigation{}, errors.Wrap(err, "commit", attr)
	}
	return inv, nil
}

// saveAccusation stores the accusation unless one exists. Saving the same accusation again is a no-op.
func saveAccusation(ctx context.Context, tx *sqlx.Tx, investigationID string, accusation models.Accusation) error {
	stmt := `INSERT INTO accusations (investigation_id, character_id, correct, created_at) VALUES (?, ?, ?, ?)
ON CONFLICT (investigation_id) DO NOTHING`
	res, err := tx.ExecContext(ctx, stmt, investigationID, accusation.CharacterID, accusation.Correct,
		formatTime(accusation.CreatedAt))
	if err != nil {
		return errors.Wrap(err, "insert accusation")
	}
	if n, err := res.RowsAffected(); err != nil || n == 1 {
		return errors.Wrap(err, "rows affected")
	}
	var existing string
	if err = tx.GetContext(ctx, &existing, `SELECT character_id FROM accusations WHERE investigation_id = ?`,
		investigationID); err != nil {
		return errors.Wrap(err, "get existing accusation")
	}
	if existing != accusation.CharacterID {
		return errors.Wrap(game.ErrAlreadyAccused, "accusation exists", slog.String("character_id", existing))
	}
	return nil
}

// SetStatus changes the status of the investigation regardless of the player.
func (r *InvestigationRepository) SetStatus(
	ctx context.Context,
	id string,
	status models.InvestigationStatus,
	now time.Time,
) error {
	stmt := `UPDATE investigations SET status = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ReadWrite.ExecContext(ctx, stmt, string(status), formatTime(now), id)
	if err = requireAffected(res, err); err != nil {
		return errors.Wrap(err, "set status", slog.String("investigation_id", id))
	}
	return nil
}

// FailInterrupted marks investigations whose generation was interrupted, e.g. by a restart, as failed to generate.
func (r *InvestigationRepository) FailInterrupted(ctx context.Context, now time.Time) (int64, error) {
	stmt := `UPDATE investigations SET status = ?, updated_at = ? WHERE status = ?`
	res, err := r.db.ReadWrite.ExecContext(ctx, stmt, string(models.InvestigationStatusError), formatTime(now),
		string(models.InvestigationStatusGenerating))
	if err != nil {
		return 0, errors.Wrap(err, "fail interrupted investigations")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "rows affected")
	}
	return n, nil
}

func (r *InvestigationRepository) rollback(ctx context.Context, tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		r.logger.LogAttrs(ctx, slog.LevelError, "failed to rollback transaction", errors.SlogError(err))
	}
}

// conflictOrNotFound tells apart a missing investigation from one that was changed concurrently.
func (r *InvestigationRepository) conflictOrNotFound(
	ctx context.Context,
	tx *sqlx.Tx,
	inv models.Investigation,
) error {
	var exists bool
	stmt := `SELECT EXISTS (SELECT 1 FROM investigations WHERE id = ? AND player_id = ?)`
	if err := tx.GetContext(ctx, &exists, stmt, inv.ID, inv.PlayerID); err != nil {
		return errors.Wrap(err, "check investigation")
	}
	if exists {
		return ErrConflict
	}
	return ErrNotFound
}

func requireAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
