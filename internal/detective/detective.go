// Package detective orchestrates investigations: it generates mysteries with the language model, runs the player's
// actions through the game reducer and persists the result.
package detective

import (
	"context"
	"github.com/google/uuid"
	"github.com/myrjola/sleuth/internal/ai"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/game"
	"github.com/myrjola/sleuth/internal/logging"
	"github.com/myrjola/sleuth/internal/models"
	"github.com/myrjola/sleuth/internal/prompts"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrEmptyPrompt     = errors.NewSentinel("prompt must not be empty")
	ErrPromptTooLong   = errors.NewSentinel("prompt is too long")
	ErrNothingToAccuse = errors.NewSentinel("accusation needs a character ID or name")
)

const (
	// MaxPromptLength limits the player's idea for a new mystery in characters.
	MaxPromptLength = 500
	// ClueConfidence is the confidence of the lead gained by examining a clue.
	ClueConfidence = 0.7
)

// Store persists investigations.
type Store interface {
	Create(ctx context.Context, inv models.Investigation) error
	SaveContent(ctx context.Context, inv models.Investigation) error
	Get(ctx context.Context, id string, playerID string) (models.Investigation, error)
	List(ctx context.Context, playerID string) ([]models.Investigation, error)
	// Save fails with repositories.ErrConflict when the investigation changed after readAt.
	Save(ctx context.Context, inv models.Investigation, readAt time.Time) (models.Investigation, error)
	SetStatus(ctx context.Context, id string, status models.InvestigationStatus, now time.Time) error
}

// Painter fills in the image URLs of an investigation.
type Painter interface {
	Paint(ctx context.Context, inv models.Investigation) models.Investigation
}

type Service struct {
	store   Store
	text    ai.TextGenerator
	painter Painter
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates the service. painter may be nil in which case investigations have no pictures.
func NewService(store Store, text ai.TextGenerator, painter Painter, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		text:    text,
		painter: painter,
		logger:  logger,
		now:     time.Now,
	}
}

// Turn is the outcome of a player action.
type Turn struct {
	Investigation models.Investigation `json:"investigation"`
	// Reply is the character's answer to a question.
	Reply *models.DialogEntry `json:"reply,omitempty"`
	// Alert notifies about something noteworthy in the action. Alerts are not persisted.
	Alert *game.Alert `json:"alert,omitempty"`
	// Leads are the leads the action added.
	Leads []models.Lead `json:"leads"`
	// Fallback is set when the language model could not be used.
	Fallback bool `json:"fallback,omitempty"`
}

// CreateInvestigation stores a pending investigation for the player. Its content is generated with Generate.
func (s *Service) CreateInvestigation(ctx context.Context, playerID string, prompt string) (models.Investigation, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return models.Investigation{}, errors.Wrap(ErrEmptyPrompt, "create investigation")
	}
	if utf8.RuneCountInString(prompt) > MaxPromptLength {
		return models.Investigation{}, errors.Wrap(ErrPromptTooLong, "create investigation",
			slog.Int("max_length", MaxPromptLength))
	}
	now := s.now()
	inv := models.Investigation{ //nolint:exhaustruct // content is generated later
		ID:        uuid.NewString(),
		PlayerID:  playerID,
		Prompt:    prompt,
		Status:    models.InvestigationStatusGenerating,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, inv); err != nil {
		return models.Investigation{}, errors.Wrap(err, "create investigation")
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "investigation created", slog.String("investigation_id", inv.ID))
	return inv, nil
}

// Get returns the investigation of the player. The culprit is hidden until the investigation is closed.
func (s *Service) Get(ctx context.Context, playerID string, id string) (models.Investigation, error) {
	inv, err := s.store.Get(ctx, id, playerID)
	if err != nil {
		return models.Investigation{}, errors.Wrap(err, "get investigation")
	}
	return redact(inv), nil
}

// List returns the investigations of the player, newest first.
func (s *Service) List(ctx context.Context, playerID string) ([]models.Investigation, error) {
	investigations, err := s.store.List(ctx, playerID)
	if err != nil {
		return nil, errors.Wrap(err, "list investigations")
	}
	return investigations, nil
}

// Interrogate asks a character a question and records the answer.
//
// When the language model fails, the character answers with [prompts.FallbackResponse] and the turn is marked as
// a fallback.
func (s *Service) Interrogate(
	ctx context.Context,
	playerID string,
	investigationID string,
	characterID string,
	question string,
) (Turn, error) {
	ctx = logging.WithAttrs(ctx, slog.String("investigation_id", investigationID),
		slog.String("character_id", characterID))
	inv, err := s.store.Get(ctx, investigationID, playerID)
	if err != nil {
		return Turn{}, errors.Wrap(err, "get investigation")
	}

	// Validate the question before spending a model call on it.
	state, err := game.Reduce(game.NewState(inv), game.AskQuestion{
		CharacterID: characterID,
		Text:        question,
		At:          s.now(),
	})
	if err != nil {
		return Turn{}, errors.Wrap(err, "ask question")
	}

	response, fallback := s.respond(ctx, &inv, characterID, strings.TrimSpace(question))
	if state, err = game.Reduce(state, game.ReceiveResponse{
		CharacterID:      characterID,
		Text:             response.Text,
		TruthLikelihood:  response.TruthLikelihood,
		ReputationImpact: response.ReputationImpact,
		Leads:            response.Leads,
		At:               s.now(),
	}); err != nil {
		return Turn{}, errors.Wrap(err, "receive response")
	}

	turn, err := s.save(ctx, inv, state)
	if err != nil {
		return Turn{}, err
	}
	reply := turn.Investigation.Dialog[len(turn.Investigation.Dialog)-1]
	turn.Reply = &reply
	turn.Fallback = fallback
	s.logger.LogAttrs(ctx, slog.LevelInfo, "character answered",
		slog.Float64("truth_likelihood", reply.TruthLikelihood),
		slog.Int("reputation_impact", reply.ReputationImpact),
		slog.Bool("fallback", fallback))
	return turn, nil
}

func (s *Service) respond(
	ctx context.Context,
	inv *models.Investigation,
	characterID string,
	question string,
) (prompts.Response, bool) {
	messages, err := prompts.Dialogue(inv, characterID, question)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "failed to build dialogue prompt", errors.SlogError(err))
		return prompts.FallbackResponse, true
	}
	raw, err := s.text.Generate(ctx, messages)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "dialogue generation failed", errors.SlogError(err))
		return prompts.FallbackResponse, true
	}
	response, err := prompts.ParseResponse(raw)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "could not parse dialogue", errors.SlogError(err))
		return prompts.FallbackResponse, true
	}
	return response, false
}

// InvestigateClue examines a clue in the scene. The first examination yields a lead.
func (s *Service) InvestigateClue(ctx context.Context, playerID string, investigationID string, clueID string) (Turn, error) {
	return s.apply(ctx, playerID, investigationID, game.DiscoverClue{
		ClueID:     clueID,
		Confidence: ClueConfidence,
		At:         s.now(),
	})
}

// AdjustReputation changes the reputation of a character outside dialogue, e.g. when the detective offers a gift
// or makes a threat in the scene.
func (s *Service) AdjustReputation(
	ctx context.Context,
	playerID string,
	investigationID string,
	characterID string,
	delta int,
) (Turn, error) {
	return s.apply(ctx, playerID, investigationID, game.AdjustReputation{CharacterID: characterID, Delta: delta})
}

// AddLead records a note of the detective.
func (s *Service) AddLead(
	ctx context.Context,
	playerID string,
	investigationID string,
	text string,
	confidence float64,
) (Turn, error) {
	return s.apply(ctx, playerID, investigationID, game.AddLead{Text: text, Confidence: confidence, At: s.now()})
}

// Suspect identifies the accused character either by ID or by name. The name may be misspelled.
type Suspect struct {
	CharacterID string `json:"characterId"`
	Name        string `json:"name"`
}

// Accuse makes the final accusation. It can be made only once per investigation.
func (s *Service) Accuse(ctx context.Context, playerID string, investigationID string, suspect Suspect) (Turn, error) {
	characterID := suspect.CharacterID
	if characterID == "" {
		if strings.TrimSpace(suspect.Name) == "" {
			return Turn{}, errors.Wrap(ErrNothingToAccuse, "accuse")
		}
		inv, err := s.store.Get(ctx, investigationID, playerID)
		if err != nil {
			return Turn{}, errors.Wrap(err, "get investigation")
		}
		character, err := game.FindCharacterByName(inv.Characters, suspect.Name)
		if err != nil {
			return Turn{}, errors.Wrap(err, "accuse")
		}
		characterID = character.ID
	}
	turn, err := s.apply(ctx, playerID, investigationID, game.Accuse{CharacterID: characterID, At: s.now()})
	if err != nil {
		return Turn{}, err
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "accusation made",
		slog.String("investigation_id", investigationID),
		slog.String("character_id", characterID),
		slog.Bool("correct", turn.Investigation.Accusation.Correct))
	return turn, nil
}

func (s *Service) apply(ctx context.Context, playerID string, investigationID string, action game.Action) (Turn, error) {
	inv, err := s.store.Get(ctx, investigationID, playerID)
	if err != nil {
		return Turn{}, errors.Wrap(err, "get investigation")
	}
	state, err := game.Reduce(game.NewState(inv), action)
	if err != nil {
		return Turn{}, errors.Wrap(err, "reduce", slog.String("investigation_id", investigationID))
	}
	return s.save(ctx, inv, state)
}

func (s *Service) save(ctx context.Context, before models.Investigation, state game.State) (Turn, error) {
	state.Investigation.UpdatedAt = s.now()
	saved, err := s.store.Save(ctx, state.Investigation, before.UpdatedAt)
	if err != nil {
		return Turn{}, errors.Wrap(err, "save investigation")
	}
	leads := []models.Lead{}
	for _, lead := range saved.Leads {
		if !slices.ContainsFunc(before.Leads, func(l models.Lead) bool { return l.ID == lead.ID }) {
			leads = append(leads, lead)
		}
	}
	return Turn{
		Investigation: redact(saved),
		Reply:         nil,
		Alert:         state.Alert,
		Leads:         leads,
		Fallback:      false,
	}, nil
}

// redact hides the culprit while the investigation is open.
func redact(inv models.Investigation) models.Investigation {
	if inv.Status.Closed() {
		return inv
	}
	characters := make([]models.Character, len(inv.Characters))
	for i, c := range inv.Characters {
		c.IsCulprit = false
		characters[i] = c
	}
	inv.Characters = characters
	return inv
}
