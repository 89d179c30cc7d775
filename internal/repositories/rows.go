package repositories

import (
	"encoding/json"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/models"
	"time"
)

// Timestamps are stored as RFC 3339 text because go-sqlite3 only parses time columns declared as DATETIME.

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "parse time")
	}
	return t, nil
}

type investigationRow struct {
	ID        string `db:"id"`
	PlayerID  string `db:"player_id"`
	Title     string `db:"title"`
	Prompt    string `db:"prompt"`
	Setting   string `db:"setting"`
	Status    string `db:"status"`
	ImageURL  string `db:"image_url"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func (row investigationRow) model() (models.Investigation, error) {
	var (
		inv models.Investigation
		err error
	)
	inv.ID = row.ID
	inv.PlayerID = row.PlayerID
	inv.Title = row.Title
	inv.Prompt = row.Prompt
	inv.Setting = row.Setting
	inv.Status = models.InvestigationStatus(row.Status)
	inv.ImageURL = row.ImageURL
	if inv.CreatedAt, err = parseTime(row.CreatedAt); err != nil {
		return models.Investigation{}, err
	}
	if inv.UpdatedAt, err = parseTime(row.UpdatedAt); err != nil {
		return models.Investigation{}, err
	}
	return inv, nil
}

type characterRow struct {
	ID              string  `db:"id"`
	InvestigationID string  `db:"investigation_id"`
	Order           int     `db:"order"`
	Name            string  `db:"name"`
	Role            string  `db:"role"`
	Personality     string  `db:"personality"`
	Knowledge       string  `db:"knowledge"`
	ReputationScore int     `db:"reputation_score"`
	PositionX       float64 `db:"position_x"`
	PositionY       float64 `db:"position_y"`
	ImageURL        string  `db:"image_url"`
	IsCulprit       bool    `db:"is_culprit"`
}

func newCharacterRow(investigationID string, order int, c models.Character) (characterRow, error) {
	personality, err := json.Marshal(c.Personality)
	if err != nil {
		return characterRow{}, errors.Wrap(err, "marshal personality")
	}
	if c.Personality == nil {
		personality = []byte("{}")
	}
	return characterRow{
		ID:              c.ID,
		InvestigationID: investigationID,
		Order:           order,
		Name:            c.Name,
		Role:            string(c.Role),
		Personality:     string(personality),
		Knowledge:       c.Knowledge,
		ReputationScore: c.ReputationScore,
		PositionX:       c.Position.X,
		PositionY:       c.Position.Y,
		ImageURL:        c.ImageURL,
		IsCulprit:       c.IsCulprit,
	}, nil
}

func (row characterRow) model() (models.Character, error) {
	var personality models.Personality
	if err := json.Unmarshal([]byte(row.Personality), &personality); err != nil {
		return models.Character{}, errors.Wrap(err, "unmarshal personality")
	}
	return models.Character{
		ID:              row.ID,
		Name:            row.Name,
		Role:            models.Role(row.Role),
		Personality:     personality,
		Knowledge:       row.Knowledge,
		ReputationScore: row.ReputationScore,
		Position:        models.Position{X: row.PositionX, Y: row.PositionY},
		ImageURL:        row.ImageURL,
		IsCulprit:       row.IsCulprit,
	}, nil
}

type clueRow struct {
	ID              string  `db:"id"`
	InvestigationID string  `db:"investigation_id"`
	Order           int     `db:"order"`
	Description     string  `db:"description"`
	Location        string  `db:"location"`
	PositionX       float64 `db:"position_x"`
	PositionY       float64 `db:"position_y"`
	Discovered      bool    `db:"discovered"`
}

func (row clueRow) model() models.Clue {
	return models.Clue{
		ID:          row.ID,
		Description: row.Description,
		Location:    row.Location,
		Position:    models.Position{X: row.PositionX, Y: row.PositionY},
		Discovered:  row.Discovered,
	}
}

type leadRow struct {
	ID                int64   `db:"id"`
	Text              string  `db:"text"`
	Confidence        float64 `db:"confidence"`
	SourceCharacterID *string `db:"source_character_id"`
	SourceClueID      *string `db:"source_clue_id"`
	CreatedAt         string  `db:"created_at"`
}

func (row leadRow) model() (models.Lead, error) {
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return models.Lead{}, err
	}
	return models.Lead{
		ID:                row.ID,
		Text:              row.Text,
		Confidence:        row.Confidence,
		SourceCharacterID: deref(row.SourceCharacterID),
		SourceClueID:      deref(row.SourceClueID),
		CreatedAt:         createdAt,
	}, nil
}

type dialogRow struct {
	ID               int64   `db:"id"`
	CharacterID      string  `db:"character_id"`
	Order            int64   `db:"order"`
	Speaker          string  `db:"speaker"`
	Text             string  `db:"text"`
	TruthLikelihood  float64 `db:"truth_likelihood"`
	ReputationImpact int     `db:"reputation_impact"`
	CreatedAt        string  `db:"created_at"`
}

func (row dialogRow) model() (models.DialogEntry, error) {
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return models.DialogEntry{}, err
	}
	return models.DialogEntry{
		ID:               row.ID,
		CharacterID:      row.CharacterID,
		Order:            row.Order,
		Speaker:          models.Speaker(row.Speaker),
		Text:             row.Text,
		TruthLikelihood:  row.TruthLikelihood,
		ReputationImpact: row.ReputationImpact,
		CreatedAt:        createdAt,
	}, nil
}

type accusationRow struct {
	CharacterID string `db:"character_id"`
	Correct     bool   `db:"correct"`
	CreatedAt   string `db:"created_at"`
}

func (row accusationRow) model() (*models.Accusation, error) {
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &models.Accusation{CharacterID: row.CharacterID, Correct: row.Correct, CreatedAt: createdAt}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// nullable maps empty strings to NULL for optional foreign keys.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
