package game

import (
	"github.com/agnivade/levenshtein"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/models"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// duplicateSimilarity is the normalised similarity at which two leads are considered the same lead.
const duplicateSimilarity = 0.8

// addLead appends the lead unless a near-duplicate exists in which case the higher confidence is kept.
// Reports whether a new lead was appended.
func (s *State) addLead(lead models.Lead) bool {
	lead.Text = strings.TrimSpace(lead.Text)
	if lead.Text == "" {
		return false
	}
	for i := range s.Investigation.Leads {
		existing := &s.Investigation.Leads[i]
		if Similarity(existing.Text, lead.Text) >= duplicateSimilarity {
			existing.Confidence = max(existing.Confidence, lead.Confidence)
			return false
		}
	}
	s.Investigation.Leads = append(s.Investigation.Leads, lead)
	return true
}

// Similarity returns the case-insensitive similarity of two strings between 0 (different) and 1 (equal)
// based on the Levenshtein edit distance.
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// FindCharacterByName returns the character whose name is most similar to name. Partial names such as the
// surname alone match too.
//
// Returns ErrUnknownCharacter if no name is similar enough and ErrAmbiguousName if another character matches
// nearly as well, e.g. a surname shared by two family members.
func FindCharacterByName(characters []models.Character, name string) (*models.Character, error) {
	const (
		minSimilarity   = 0.6
		ambiguityMargin = 0.1
	)
	var (
		best        *models.Character
		bestScore   float64
		runnerUp    *models.Character
		runnerScore float64
	)
	for i := range characters {
		score := Similarity(characters[i].Name, name)
		for _, part := range strings.Fields(characters[i].Name) {
			score = max(score, Similarity(part, name))
		}
		switch {
		case score > bestScore:
			runnerUp, runnerScore = best, bestScore
			best, bestScore = &characters[i], score
		case score > runnerScore:
			runnerUp, runnerScore = &characters[i], score
		}
	}
	if best == nil || bestScore < minSimilarity {
		return nil, errors.Wrap(ErrUnknownCharacter, "find character by name", slog.String("name", name))
	}
	if runnerUp != nil && bestScore-runnerScore < ambiguityMargin {
		return nil, errors.Wrap(ErrAmbiguousName, "find character by name", slog.String("name", name),
			slog.String("candidate", best.Name), slog.String("candidate", runnerUp.Name))
	}
	return best, nil
}
