package models

import (
	"slices"
	"time"
)

// Investigation holds the state of a generated mystery. The player explores its scene, questions the
// characters, investigates the clues and finally accuses one of the characters.
type Investigation struct {
	ID         string              `json:"id"`
	PlayerID   string              `json:"-"`
	Title      string              `json:"title"`
	Prompt     string              `json:"prompt"`
	Setting    string              `json:"setting"`
	Status     InvestigationStatus `json:"status"`
	ImageURL   string              `json:"imageUrl,omitempty"`
	Characters []Character         `json:"characters"`
	Clues      []Clue              `json:"clues"`
	Leads      []Lead              `json:"leads"`
	Dialog     []DialogEntry       `json:"dialog"`
	Accusation *Accusation         `json:"accusation,omitempty"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

type InvestigationStatus string

const (
	InvestigationStatusGenerating InvestigationStatus = "generating"
	InvestigationStatusActive     InvestigationStatus = "active"
	InvestigationStatusSolved     InvestigationStatus = "solved"
	InvestigationStatusFailed     InvestigationStatus = "failed"
	InvestigationStatusError      InvestigationStatus = "error"
)

// Closed reports whether the investigation no longer accepts player actions.
func (s InvestigationStatus) Closed() bool {
	return s == InvestigationStatusSolved || s == InvestigationStatusFailed || s == InvestigationStatusError
}

// Character returns the character with the given ID.
func (inv *Investigation) Character(id string) (*Character, bool) {
	i := slices.IndexFunc(inv.Characters, func(c Character) bool { return c.ID == id })
	if i == -1 {
		return nil, false
	}
	return &inv.Characters[i], true
}

// Clue returns the clue with the given ID.
func (inv *Investigation) Clue(id string) (*Clue, bool) {
	i := slices.IndexFunc(inv.Clues, func(c Clue) bool { return c.ID == id })
	if i == -1 {
		return nil, false
	}
	return &inv.Clues[i], true
}

// Culprit returns the character who committed the crime.
func (inv *Investigation) Culprit() (*Character, bool) {
	i := slices.IndexFunc(inv.Characters, func(c Character) bool { return c.IsCulprit })
	if i == -1 {
		return nil, false
	}
	return &inv.Characters[i], true
}

// DialogWith returns the dialogue entries exchanged with the given character in order.
func (inv *Investigation) DialogWith(characterID string) []DialogEntry {
	var entries []DialogEntry
	for _, entry := range inv.Dialog {
		if entry.CharacterID == characterID {
			entries = append(entries, entry)
		}
	}
	return entries
}

// Role of a character in the mystery.
type Role string

const (
	RoleSuspect   Role = "suspect"
	RoleWitness   Role = "witness"
	RoleVictim    Role = "victim"
	RoleBystander Role = "bystander"
)

// Roles lists every valid role.
var Roles = []Role{RoleSuspect, RoleWitness, RoleVictim, RoleBystander} //nolint:gochecknoglobals // constant list

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	return slices.Contains(Roles, r)
}

// Personality is a free-form bag of traits, e.g. {"temperament": "nervous", "speech": "formal"}.
type Personality map[string]string

// Position is a location in the scene. Both coordinates are within [0, 1] relative to the scene size.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

const (
	ReputationMin     = 0
	ReputationMax     = 100
	ReputationInitial = 50
)

// Character is a non-player character in the mystery.
type Character struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Role            Role        `json:"role"`
	Personality     Personality `json:"personality"`
	Knowledge       string      `json:"-"`
	ReputationScore int         `json:"reputationScore"`
	Position        Position    `json:"position"`
	ImageURL        string      `json:"imageUrl,omitempty"`
	IsCulprit       bool        `json:"isCulprit,omitempty"`
}

// Clue is a physical piece of evidence placed in the scene.
type Clue struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Position    Position `json:"position"`
	Discovered  bool     `json:"discovered"`
}

// Lead is something the detective has learned with a confidence score between 0 and 1.
type Lead struct {
	ID                int64     `json:"id"`
	Text              string    `json:"text"`
	Confidence        float64   `json:"confidence"`
	SourceCharacterID string    `json:"sourceCharacterId,omitempty"`
	SourceClueID      string    `json:"sourceClueId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

type Speaker string

const (
	SpeakerDetective Speaker = "detective"
	SpeakerCharacter Speaker = "character"
)

const (
	ReputationImpactMin = -5
	ReputationImpactMax = 5
)

// DialogEntry is one line of dialogue between the detective and a character.
type DialogEntry struct {
	ID          int64   `json:"id"`
	CharacterID string  `json:"characterId"`
	Order       int64   `json:"order"`
	Speaker     Speaker `json:"speaker"`
	Text        string  `json:"text"`
	// TruthLikelihood estimates how truthful a character line is between 0 and 1. Zero for detective lines.
	TruthLikelihood float64 `json:"truthLikelihood"`
	// ReputationImpact is the reputation delta the line caused between -5 and +5.
	ReputationImpact int       `json:"reputationImpact"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Accusation is the final verdict of the detective. There is at most one per investigation.
type Accusation struct {
	CharacterID string    `json:"characterId"`
	Correct     bool      `json:"correct"`
	CreatedAt   time.Time `json:"createdAt"`
}
