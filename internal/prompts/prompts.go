// Package prompts assembles what the models are told and makes sense of what they answer.
package prompts

import (
	"bytes"
	"embed"
	"github.com/myrjola/sleuth/internal/ai"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/models"
	"github.com/myrjola/sleuth/internal/scenario"
	"log/slog"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl")) //nolint:gochecknoglobals // parsed once

// HistoryLimit caps how many previous dialogue entries with the character are included in the context.
const HistoryLimit = 20

type Tone string

const (
	ToneFriendly Tone = "friendly"
	ToneNeutral  Tone = "neutral"
	ToneGuarded  Tone = "guarded"
	ToneHostile  Tone = "hostile"
)

// ToneFor maps a reputation score to the attitude the character takes.
func ToneFor(reputation int) Tone {
	switch {
	case reputation >= 75: //nolint:mnd // quartiles of the reputation range
		return ToneFriendly
	case reputation >= 50: //nolint:mnd // quartiles of the reputation range
		return ToneNeutral
	case reputation >= 25: //nolint:mnd // quartiles of the reputation range
		return ToneGuarded
	default:
		return ToneHostile
	}
}

var toneGuidance = map[Tone]string{ //nolint:gochecknoglobals // constant lookup
	ToneFriendly: "You trust the detective and volunteer details they did not ask for.",
	ToneNeutral:  "You answer what is asked, no more.",
	ToneGuarded:  "You are suspicious of the detective and give short, evasive answers.",
	ToneHostile:  "You resent the detective and refuse to help beyond the bare minimum.",
}

type characterData struct {
	Investigation *models.Investigation
	Character     *models.Character
	Others        []models.Character
	Culprit       bool
	Tone          Tone
	ToneGuidance  string
	Leads         []models.Lead
	History       []models.DialogEntry
}

// Dialogue builds the conversation asking the character to answer the detective's question. The system message
// carries the character's personality, knowledge, the people involved, the shared history and whether the
// character is the culprit.
func Dialogue(inv *models.Investigation, characterID string, question string) ([]ai.Message, error) {
	character, ok := inv.Character(characterID)
	if !ok {
		return nil, errors.New("character not in investigation", slog.String("character_id", characterID))
	}

	others := make([]models.Character, 0, len(inv.Characters)-1)
	for _, c := range inv.Characters {
		if c.ID != character.ID {
			others = append(others, c)
		}
	}
	history := inv.DialogWith(character.ID)
	if len(history) > HistoryLimit {
		history = history[len(history)-HistoryLimit:]
	}
	tone := ToneFor(character.ReputationScore)

	system, err := render("character.tmpl", characterData{
		Investigation: inv,
		Character:     character,
		Others:        others,
		Culprit:       character.IsCulprit,
		Tone:          tone,
		ToneGuidance:  toneGuidance[tone],
		Leads:         inv.Leads,
		History:       history,
	})
	if err != nil {
		return nil, err
	}
	return []ai.Message{
		{Role: ai.RoleSystem, Content: system},
		{Role: ai.RoleUser, Content: question},
	}, nil
}

// Investigation builds the conversation asking the model to write a new mystery from the player's idea.
func Investigation(prompt string) ([]ai.Message, error) {
	user, err := render("investigation.tmpl", struct {
		Prompt        string
		MinCharacters int
		MaxCharacters int
		MinClues      int
		MaxClues      int
	}{
		Prompt:        prompt,
		MinCharacters: scenario.MinCharacters,
		MaxCharacters: scenario.MaxCharacters,
		MinClues:      scenario.MinClues,
		MaxClues:      scenario.MaxClues,
	})
	if err != nil {
		return nil, err
	}
	return []ai.Message{
		{Role: ai.RoleSystem, Content: "You are a mystery novelist designing fair-play puzzles. You answer only in JSON."},
		{Role: ai.RoleUser, Content: user},
	}, nil
}

// Portrait is the image prompt for a character portrait.
func Portrait(inv *models.Investigation, character *models.Character) (string, error) {
	return render("portrait.tmpl", struct {
		Investigation *models.Investigation
		Character     *models.Character
	}{Investigation: inv, Character: character})
}

// Scene is the image prompt for the scene of the crime.
func Scene(inv *models.Investigation) (string, error) {
	return render("scene.tmpl", struct {
		Investigation *models.Investigation
	}{Investigation: inv})
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", errors.Wrap(err, "execute template", slog.String("template", name))
	}
	return buf.String(), nil
}
