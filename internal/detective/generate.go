package detective

import (
	"context"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/logging"
	"github.com/myrjola/sleuth/internal/models"
	"github.com/myrjola/sleuth/internal/prompts"
	"github.com/myrjola/sleuth/internal/scenario"
	"log/slog"
)

type Stage string

const (
	StageWriting  Stage = "writing"
	StagePainting Stage = "painting"
	StageReady    Stage = "ready"
	StageFailed   Stage = "failed"
)

// Progress reports how far the generation of an investigation is.
type Progress struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
	// Fallback is set when the built-in mystery replaced the generated one.
	Fallback bool `json:"fallback,omitempty"`
}

// Generate writes the mystery of a pending investigation, paints its pictures and stores the result.
//
// When the language model fails or writes an invalid mystery, the built-in mystery is used instead. Progress is
// reported to the progress channel without blocking: updates nobody has room for are dropped. The channel is not
// closed. If storing fails, the investigation is marked as failed to generate.
func (s *Service) Generate(ctx context.Context, inv models.Investigation, progress chan<- Progress) error {
	ctx = logging.WithAttrs(ctx, slog.String("investigation_id", inv.ID))
	s.report(ctx, progress, Progress{Stage: StageWriting, Message: "Writing the mystery", Fallback: false})

	sc, fallback, err := s.writeScenario(ctx, inv.Prompt)
	if err != nil {
		s.fail(ctx, inv, progress)
		return err
	}
	inv = sc.Investigation(inv, s.now())

	if s.painter != nil {
		s.report(ctx, progress, Progress{Stage: StagePainting, Message: "Painting the scene", Fallback: fallback})
		inv = s.painter.Paint(ctx, inv)
	}

	inv.UpdatedAt = s.now()
	if err = s.store.SaveContent(ctx, inv); err != nil {
		s.fail(ctx, inv, progress)
		return errors.Wrap(err, "save generated content")
	}
	s.report(ctx, progress, Progress{Stage: StageReady, Message: inv.Title, Fallback: fallback})
	s.logger.LogAttrs(ctx, slog.LevelInfo, "investigation generated", slog.Bool("fallback", fallback),
		slog.Int("characters", len(inv.Characters)), slog.Int("clues", len(inv.Clues)))
	return nil
}

// writeScenario asks the language model for a mystery and falls back to the built-in one.
func (s *Service) writeScenario(ctx context.Context, prompt string) (scenario.Scenario, bool, error) {
	sc, err := s.generateScenario(ctx, prompt)
	if err == nil {
		return sc, false, nil
	}
	s.logger.LogAttrs(ctx, slog.LevelWarn, "using built-in mystery", errors.SlogError(err))

	if sc, err = scenario.Default(); err != nil {
		return scenario.Scenario{}, true, errors.Wrap(err, "default scenario")
	}
	if err = sc.Normalize(); err != nil {
		return scenario.Scenario{}, true, errors.Wrap(err, "normalize default scenario")
	}
	return sc, true, nil
}

func (s *Service) generateScenario(ctx context.Context, prompt string) (scenario.Scenario, error) {
	messages, err := prompts.Investigation(prompt)
	if err != nil {
		return scenario.Scenario{}, err
	}
	raw, err := s.text.Generate(ctx, messages)
	if err != nil {
		return scenario.Scenario{}, errors.Wrap(err, "generate scenario")
	}
	object, err := prompts.ExtractJSON(raw)
	if err != nil {
		return scenario.Scenario{}, errors.Wrap(err, "extract scenario")
	}
	sc, err := scenario.Parse([]byte(object))
	if err != nil {
		return scenario.Scenario{}, err
	}
	if err = sc.Normalize(); err != nil {
		return scenario.Scenario{}, err
	}
	if err = sc.Validate(); err != nil {
		return scenario.Scenario{}, err
	}
	return sc, nil
}

// fail marks the investigation as failed to generate. The caller's context may already be done.
func (s *Service) fail(ctx context.Context, inv models.Investigation, progress chan<- Progress) {
	if err := s.store.SetStatus(context.WithoutCancel(ctx), inv.ID, models.InvestigationStatusError, s.now()); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "failed to mark generation failed", errors.SlogError(err))
	}
	s.report(ctx, progress, Progress{Stage: StageFailed, Message: "The mystery could not be written", Fallback: false})
}

func (s *Service) report(ctx context.Context, progress chan<- Progress, p Progress) {
	if progress == nil {
		return
	}
	select {
	case progress <- p:
	default:
		s.logger.LogAttrs(ctx, slog.LevelDebug, "progress dropped", slog.String("stage", string(p.Stage)))
	}
}
