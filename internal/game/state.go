// Package game holds the rules of an investigation as a pure reducer.
//
// Every player action is expressed as an [Action] that [Reduce] applies to a [State], producing a new State.
// The input state is never modified so callers can discard the result when persisting fails.
package game

import (
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/models"
	"maps"
	"slices"
)

var (
	ErrInvalidReputationImpact = errors.NewSentinel("reputation impact must be between -5 and +5")
	ErrInvalidScore            = errors.NewSentinel("score must be between 0 and 1")
	ErrUnknownCharacter        = errors.NewSentinel("unknown character")
	ErrAmbiguousName           = errors.NewSentinel("name matches more than one character")
	ErrUnknownClue             = errors.NewSentinel("unknown clue")
	ErrAlreadyAccused          = errors.NewSentinel("accusation has already been made")
	ErrInvestigationClosed     = errors.NewSentinel("investigation is closed")
	ErrNotReady                = errors.NewSentinel("investigation is not ready")
	ErrEmptyText               = errors.NewSentinel("text must not be empty")
)

const (
	// HostileThreshold is the reputation below which a character stops cooperating.
	HostileThreshold = 25
	// DeceptionThreshold is the truth likelihood below which the detective is alerted about a likely lie.
	DeceptionThreshold = 0.3
)

// State is the game state of one investigation.
type State struct {
	Investigation models.Investigation
	// Alert is the notification raised by the latest action, nil when there is nothing to notify about.
	Alert *Alert
}

type AlertKind string

const (
	AlertDeception AlertKind = "deception"
	AlertHostile   AlertKind = "hostile"
	AlertLead      AlertKind = "lead"
	AlertVerdict   AlertKind = "verdict"
)

// Alert notifies the detective about something noteworthy.
type Alert struct {
	Kind        AlertKind `json:"kind"`
	CharacterID string    `json:"characterId,omitempty"`
	Message     string    `json:"message"`
}

// NewState creates the state for the investigation.
func NewState(investigation models.Investigation) State {
	return State{Investigation: investigation, Alert: nil}
}

// clone returns a deep copy of the state so that reducers can mutate it freely.
func (s State) clone() State {
	inv := s.Investigation
	inv.Characters = slices.Clone(inv.Characters)
	for i := range inv.Characters {
		inv.Characters[i].Personality = maps.Clone(inv.Characters[i].Personality)
	}
	inv.Clues = slices.Clone(inv.Clues)
	inv.Leads = slices.Clone(inv.Leads)
	inv.Dialog = slices.Clone(inv.Dialog)
	if inv.Accusation != nil {
		accusation := *inv.Accusation
		inv.Accusation = &accusation
	}
	var alert *Alert
	if s.Alert != nil {
		a := *s.Alert
		alert = &a
	}
	return State{Investigation: inv, Alert: alert}
}

func (s *State) character(id string) (*models.Character, error) {
	c, ok := s.Investigation.Character(id)
	if !ok {
		return nil, errors.Wrap(ErrUnknownCharacter, "find character")
	}
	return c, nil
}

// Reputation returns the reputation score of the character.
func (s State) Reputation(characterID string) (int, bool) {
	c, ok := s.Investigation.Character(characterID)
	if !ok {
		return 0, false
	}
	return c.ReputationScore, true
}
