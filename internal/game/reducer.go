package game

import (
	"fmt"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/models"
	"log/slog"
	"strings"
	"time"
)

// Action is a state transition of an investigation.
type Action interface {
	apply(s *State) error
}

// Reduce applies the action to a copy of the state and returns the copy.
//
// The alert of the previous state never carries over: every action either raises its own alert or clears it.
func Reduce(s State, action Action) (State, error) {
	status := s.Investigation.Status
	if _, ok := action.(DismissAlert); !ok {
		if _, accusing := action.(Accuse); accusing && s.Investigation.Accusation != nil {
			return s, errors.Wrap(ErrAlreadyAccused, "accuse")
		}
		if status == models.InvestigationStatusGenerating {
			return s, errors.Wrap(ErrNotReady, "reduce", slog.String("status", string(status)))
		}
		if status.Closed() {
			return s, errors.Wrap(ErrInvestigationClosed, "reduce", slog.String("status", string(status)))
		}
	}

	next := s.clone()
	next.Alert = nil
	if err := action.apply(&next); err != nil {
		return s, err
	}
	return next, nil
}

// AskQuestion records the detective's line to a character.
type AskQuestion struct {
	CharacterID string
	Text        string
	At          time.Time
}

func (a AskQuestion) apply(s *State) error {
	if _, err := s.character(a.CharacterID); err != nil {
		return err
	}
	text := strings.TrimSpace(a.Text)
	if text == "" {
		return errors.Wrap(ErrEmptyText, "ask question")
	}
	s.appendDialog(models.DialogEntry{ //nolint:exhaustruct // ID is assigned by the store.
		CharacterID: a.CharacterID,
		Speaker:     models.SpeakerDetective,
		Text:        text,
		CreatedAt:   a.At,
	})
	return nil
}

// NewLead is a lead that has not been recorded yet.
type NewLead struct {
	Text       string
	Confidence float64
}

// ReceiveResponse records the character's reply together with its scores.
type ReceiveResponse struct {
	CharacterID      string
	Text             string
	TruthLikelihood  float64
	ReputationImpact int
	Leads            []NewLead
	At               time.Time
}

func (a ReceiveResponse) apply(s *State) error {
	character, err := s.character(a.CharacterID)
	if err != nil {
		return err
	}
	text := strings.TrimSpace(a.Text)
	if text == "" {
		return errors.Wrap(ErrEmptyText, "receive response")
	}
	if err = validateScore(a.TruthLikelihood); err != nil {
		return errors.Wrap(err, "truth likelihood")
	}
	for _, lead := range a.Leads {
		if err = validateScore(lead.Confidence); err != nil {
			return errors.Wrap(err, "lead confidence")
		}
	}
	if err = validateImpact(a.ReputationImpact); err != nil {
		return err
	}

	s.appendDialog(models.DialogEntry{ //nolint:exhaustruct // ID is assigned by the store.
		CharacterID:      a.CharacterID,
		Speaker:          models.SpeakerCharacter,
		Text:             text,
		TruthLikelihood:  a.TruthLikelihood,
		ReputationImpact: a.ReputationImpact,
		CreatedAt:        a.At,
	})
	turnedHostile := s.adjustReputation(character, a.ReputationImpact)

	added := 0
	for _, lead := range a.Leads {
		if s.addLead(models.Lead{ //nolint:exhaustruct // ID is assigned by the store.
			Text:              lead.Text,
			Confidence:        lead.Confidence,
			SourceCharacterID: a.CharacterID,
			CreatedAt:         a.At,
		}) {
			added++
		}
	}

	switch {
	case turnedHostile:
		s.Alert = &Alert{
			Kind:        AlertHostile,
			CharacterID: character.ID,
			Message:     fmt.Sprintf("%s has lost patience with you and will not cooperate.", character.Name),
		}
	case a.TruthLikelihood < DeceptionThreshold:
		s.Alert = &Alert{
			Kind:        AlertDeception,
			CharacterID: character.ID,
			Message:     fmt.Sprintf("Something about %s's answer does not add up.", character.Name),
		}
	case added > 0:
		s.Alert = &Alert{
			Kind:        AlertLead,
			CharacterID: character.ID,
			Message:     newLeadsMessage(added),
		}
	}
	return nil
}

// AdjustReputation changes the reputation of a character by Delta outside of dialogue.
type AdjustReputation struct {
	CharacterID string
	Delta       int
}

func (a AdjustReputation) apply(s *State) error {
	character, err := s.character(a.CharacterID)
	if err != nil {
		return err
	}
	if err = validateImpact(a.Delta); err != nil {
		return err
	}
	if s.adjustReputation(character, a.Delta) {
		s.Alert = &Alert{
			Kind:        AlertHostile,
			CharacterID: character.ID,
			Message:     fmt.Sprintf("%s has lost patience with you and will not cooperate.", character.Name),
		}
	}
	return nil
}

// DiscoverClue marks a clue discovered and records what the detective learned from it.
type DiscoverClue struct {
	ClueID     string
	Confidence float64
	At         time.Time
}

func (a DiscoverClue) apply(s *State) error {
	clue, ok := s.Investigation.Clue(a.ClueID)
	if !ok {
		return errors.Wrap(ErrUnknownClue, "discover clue", slog.String("clue_id", a.ClueID))
	}
	if err := validateScore(a.Confidence); err != nil {
		return errors.Wrap(err, "clue confidence")
	}
	if clue.Discovered {
		return nil
	}
	clue.Discovered = true
	s.addLead(models.Lead{ //nolint:exhaustruct // ID is assigned by the store.
		Text:         fmt.Sprintf("%s (found at %s)", clue.Description, clue.Location),
		Confidence:   a.Confidence,
		SourceClueID: clue.ID,
		CreatedAt:    a.At,
	})
	s.Alert = &Alert{
		Kind:        AlertLead,
		CharacterID: "",
		Message:     fmt.Sprintf("You found a clue: %s.", clue.Description),
	}
	return nil
}

// AddLead records a lead the detective wrote down themselves.
type AddLead struct {
	Text       string
	Confidence float64
	At         time.Time
}

func (a AddLead) apply(s *State) error {
	if strings.TrimSpace(a.Text) == "" {
		return errors.Wrap(ErrEmptyText, "add lead")
	}
	if err := validateScore(a.Confidence); err != nil {
		return errors.Wrap(err, "lead confidence")
	}
	s.addLead(models.Lead{ //nolint:exhaustruct // ID is assigned by the store.
		Text:       a.Text,
		Confidence: a.Confidence,
		CreatedAt:  a.At,
	})
	return nil
}

// DismissAlert clears the current alert. It is allowed in any status.
type DismissAlert struct{}

func (DismissAlert) apply(*State) error {
	return nil
}

// Accuse makes the final accusation. Accusing the culprit solves the investigation, anyone else fails it.
type Accuse struct {
	CharacterID string
	At          time.Time
}

func (a Accuse) apply(s *State) error {
	accused, err := s.character(a.CharacterID)
	if err != nil {
		return err
	}
	s.Investigation.Accusation = &models.Accusation{
		CharacterID: accused.ID,
		Correct:     accused.IsCulprit,
		CreatedAt:   a.At,
	}
	if accused.IsCulprit {
		s.Investigation.Status = models.InvestigationStatusSolved
		s.Alert = &Alert{
			Kind:        AlertVerdict,
			CharacterID: accused.ID,
			Message:     fmt.Sprintf("Case solved! %s was the culprit.", accused.Name),
		}
		return nil
	}

	s.Investigation.Status = models.InvestigationStatusFailed
	message := fmt.Sprintf("%s was innocent. The culprit got away.", accused.Name)
	if culprit, ok := s.Investigation.Culprit(); ok {
		message = fmt.Sprintf("%s was innocent. The culprit was %s.", accused.Name, culprit.Name)
	}
	s.Alert = &Alert{Kind: AlertVerdict, CharacterID: accused.ID, Message: message}
	return nil
}

func (s *State) appendDialog(entry models.DialogEntry) {
	entry.Order = int64(len(s.Investigation.Dialog))
	s.Investigation.Dialog = append(s.Investigation.Dialog, entry)
}

// adjustReputation applies the delta clamped to the reputation range and reports whether the character
// just turned hostile.
func (s *State) adjustReputation(character *models.Character, delta int) bool {
	before := character.ReputationScore
	after := min(max(before+delta, models.ReputationMin), models.ReputationMax)
	character.ReputationScore = after
	return before >= HostileThreshold && after < HostileThreshold
}

func validateImpact(delta int) error {
	if delta < models.ReputationImpactMin || delta > models.ReputationImpactMax {
		return errors.Wrap(ErrInvalidReputationImpact, "validate impact", slog.Int("delta", delta))
	}
	return nil
}

func validateScore(score float64) error {
	if score < 0 || score > 1 {
		return errors.Wrap(ErrInvalidScore, "validate score", slog.Float64("score", score))
	}
	return nil
}

func newLeadsMessage(n int) string {
	if n == 1 {
		return "You have a new lead."
	}
	return fmt.Sprintf("You have %d new leads.", n)
}
