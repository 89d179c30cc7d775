package images

import (
	"context"
	"github.com/myrjola/sleuth/internal/ai"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/models"
	"github.com/myrjola/sleuth/internal/prompts"
	"log/slog"
	"sync"
)

// maxConcurrentPaintings limits parallel image generation requests per investigation.
const maxConcurrentPaintings = 3

// Painter generates the scene picture and character portraits of an investigation.
type Painter struct {
	generator ai.ImageGenerator
	uploader  Uploader
	logger    *slog.Logger
}

func NewPainter(generator ai.ImageGenerator, uploader Uploader, logger *slog.Logger) *Painter {
	return &Painter{generator: generator, uploader: uploader, logger: logger}
}

// Paint returns a copy of inv with image URLs filled in. It is best effort: failed images are logged and their
// URLs left empty.
func (p *Painter) Paint(ctx context.Context, inv models.Investigation) models.Investigation {
	characters := make([]models.Character, len(inv.Characters))
	copy(characters, inv.Characters)
	inv.Characters = characters

	type job struct {
		publicID string
		prompt   string
		target   *string
	}
	var jobs []job
	if prompt, err := prompts.Scene(&inv); err == nil {
		jobs = append(jobs, job{publicID: inv.ID + "/scene", prompt: prompt, target: &inv.ImageURL})
	} else {
		p.logger.LogAttrs(ctx, slog.LevelWarn, "scene prompt failed", errors.SlogError(err))
	}
	for i := range inv.Characters {
		c := &inv.Characters[i]
		prompt, err := prompts.Portrait(&inv, c)
		if err != nil {
			p.logger.LogAttrs(ctx, slog.LevelWarn, "portrait prompt failed", errors.SlogError(err))
			continue
		}
		jobs = append(jobs, job{publicID: inv.ID + "/" + c.ID, prompt: prompt, target: &c.ImageURL})
	}

	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, maxConcurrentPaintings)
	)
	for _, j := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			url, err := p.paint(ctx, j.publicID, j.prompt)
			if err != nil {
				p.logger.LogAttrs(ctx, slog.LevelWarn, "painting failed",
					slog.String("public_id", j.publicID), errors.SlogError(err))
				return
			}
			*j.target = url
		}()
	}
	wg.Wait()
	return inv
}

func (p *Painter) paint(ctx context.Context, publicID string, prompt string) (string, error) {
	png, err := p.generator.GenerateImage(ctx, prompt)
	if err != nil {
		return "", errors.Wrap(err, "generate image")
	}
	url, err := p.uploader.Upload(ctx, publicID, png)
	if err != nil {
		return "", errors.Wrap(err, "upload image")
	}
	return url, nil
}
