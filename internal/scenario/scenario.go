// Package scenario turns generated or built-in mystery content into investigations.
package scenario

import (
	_ "embed"
	"github.com/google/uuid"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/models"
	"github.com/myrjola/sleuth/internal/random"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
	"log/slog"
	"strings"
	"time"
)

//go:embed default.yaml
var defaultScenario []byte

const (
	MinCharacters = 4
	MaxCharacters = 7
	MinSuspects   = 2
	MinClues      = 3
	MaxClues      = 6
)

var ErrInvalidScenario = errors.NewSentinel("invalid scenario")

// Scenario is the content of a mystery before it is played.
type Scenario struct {
	Title      string      `yaml:"title"`
	Setting    string      `yaml:"setting"`
	Characters []Character `yaml:"characters"`
	Clues      []Clue      `yaml:"clues"`
}

type Character struct {
	Name        string            `yaml:"name"`
	Role        string            `yaml:"role"`
	Personality map[string]string `yaml:"personality"`
	Knowledge   string            `yaml:"knowledge"`
	IsCulprit   bool              `yaml:"isCulprit"`
	Position    *Position         `yaml:"position"`
}

type Clue struct {
	Description string    `yaml:"description"`
	Location    string    `yaml:"location"`
	Position    *Position `yaml:"position"`
}

type Position struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Parse decodes a scenario from YAML. JSON is accepted as well since it is a subset of YAML.
func Parse(data []byte) (Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Scenario{}, errors.Wrap(errors.Join(ErrInvalidScenario, err), "unmarshal scenario")
	}
	return s, nil
}

// Default returns the built-in mystery used when generation fails.
func Default() (Scenario, error) {
	s, err := Parse(defaultScenario)
	if err != nil {
		return Scenario{}, errors.Wrap(err, "parse default scenario")
	}
	return s, nil
}

// Normalize tidies up model output: whitespace is collapsed, names are title cased, roles lower cased and missing
// positions are placed at random.
func (s *Scenario) Normalize() error {
	title := cases.Title(language.English, cases.NoLower)
	s.Title = collapseSpaces(s.Title)
	s.Setting = collapseSpaces(s.Setting)
	for i := range s.Characters {
		c := &s.Characters[i]
		c.Name = title.String(collapseSpaces(c.Name))
		c.Role = strings.ToLower(strings.TrimSpace(c.Role))
		c.Knowledge = collapseSpaces(c.Knowledge)
		if c.Position == nil {
			p, err := randomPosition()
			if err != nil {
				return err
			}
			c.Position = &p
		}
	}
	for i := range s.Clues {
		c := &s.Clues[i]
		c.Description = collapseSpaces(c.Description)
		c.Location = collapseSpaces(c.Location)
		if c.Position == nil {
			p, err := randomPosition()
			if err != nil {
				return err
			}
			c.Position = &p
		}
	}
	return nil
}

// Validate checks that the mystery is playable. All problems are reported at once.
func (s Scenario) Validate() error {
	var problems []error
	invalid := func(msg string, attrs ...slog.Attr) {
		problems = append(problems, errors.Wrap(ErrInvalidScenario, msg, attrs...))
	}

	if strings.TrimSpace(s.Title) == "" {
		invalid("missing title")
	}
	if strings.TrimSpace(s.Setting) == "" {
		invalid("missing setting")
	}
	if n := len(s.Characters); n < MinCharacters || n > MaxCharacters {
		invalid("wrong number of characters", slog.Int("characters", n))
	}
	if n := len(s.Clues); n < MinClues || n > MaxClues {
		invalid("wrong number of clues", slog.Int("clues", n))
	}

	var (
		names    = make(map[string]bool, len(s.Characters))
		culprits int
		suspects int
	)
	for _, c := range s.Characters {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		switch {
		case name == "":
			invalid("character without name")
		case names[name]:
			invalid("duplicate character name", slog.String("name", c.Name))
		}
		names[name] = true

		role := models.Role(c.Role)
		if !role.Valid() {
			invalid("invalid role", slog.String("name", c.Name), slog.String("role", c.Role))
		}
		if role == models.RoleSuspect {
			suspects++
		}
		if c.IsCulprit {
			culprits++
			if role != models.RoleSuspect {
				invalid("culprit is not a suspect", slog.String("name", c.Name))
			}
		}
		if !validPosition(c.Position) {
			invalid("character outside the scene", slog.String("name", c.Name))
		}
	}
	if culprits != 1 {
		invalid("need exactly one culprit", slog.Int("culprits", culprits))
	}
	if suspects < MinSuspects {
		invalid("too few suspects", slog.Int("suspects", suspects))
	}

	for _, c := range s.Clues {
		if strings.TrimSpace(c.Description) == "" {
			invalid("clue without description")
		}
		if !validPosition(c.Position) {
			invalid("clue outside the scene", slog.String("description", c.Description))
		}
	}

	return errors.Join(problems...)
}

// Investigation fills inv with the characters and clues of the scenario and marks it active. The identity fields
// of inv are kept.
func (s Scenario) Investigation(inv models.Investigation, now time.Time) models.Investigation {
	inv.Title = s.Title
	inv.Setting = s.Setting
	inv.Status = models.InvestigationStatusActive
	inv.UpdatedAt = now
	inv.Characters = make([]models.Character, len(s.Characters))
	for i, c := range s.Characters {
		inv.Characters[i] = models.Character{
			ID:              uuid.NewString(),
			Name:            c.Name,
			Role:            models.Role(c.Role),
			Personality:     c.Personality,
			Knowledge:       c.Knowledge,
			ReputationScore: models.ReputationInitial,
			Position:        c.Position.model(),
			ImageURL:        "",
			IsCulprit:       c.IsCulprit,
		}
	}
	inv.Clues = make([]models.Clue, len(s.Clues))
	for i, c := range s.Clues {
		inv.Clues[i] = models.Clue{
			ID:          uuid.NewString(),
			Description: c.Description,
			Location:    c.Location,
			Position:    c.Position.model(),
			Discovered:  false,
		}
	}
	inv.Leads = nil
	inv.Dialog = nil
	inv.Accusation = nil
	return inv
}

func (p *Position) model() models.Position {
	if p == nil {
		return models.Position{X: 0.5, Y: 0.5} //nolint:mnd // center of the scene
	}
	return models.Position{X: p.X, Y: p.Y}
}

func validPosition(p *Position) bool {
	return p != nil && p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1
}

func randomPosition() (Position, error) {
	x, err := random.Float()
	if err != nil {
		return Position{}, errors.Wrap(err, "random x")
	}
	y, err := random.Float()
	if err != nil {
		return Position{}, errors.Wrap(err, "random y")
	}
	return Position{X: x, Y: y}, nil
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
