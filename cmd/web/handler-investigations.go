package main

import (
	"context"
	"github.com/myrjola/sleuth/internal/contexthelpers"
	"github.com/myrjola/sleuth/internal/detective"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/logging"
	"github.com/myrjola/sleuth/internal/models"
	"log/slog"
	"net/http"
	"time"
)

// progressBuffer is large enough for every progress update of a generation so that the generator never waits
// for a subscriber.
const progressBuffer = 8

type createInvestigationRequest struct {
	Prompt string `json:"prompt"`
}

type createInvestigationResponse struct {
	ID     string                     `json:"id"`
	Status models.InvestigationStatus `json:"status"`
}

type investigationSummary struct {
	ID        string                     `json:"id"`
	Title     string                     `json:"title"`
	Prompt    string                     `json:"prompt"`
	Status    models.InvestigationStatus `json:"status"`
	ImageURL  string                     `json:"imageUrl,omitempty"`
	CreatedAt string                     `json:"createdAt"`
}

func (app *application) listInvestigations(w http.ResponseWriter, r *http.Request) {
	investigations, err := app.detective.List(r.Context(), contexthelpers.PlayerID(r.Context()))
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	summaries := make([]investigationSummary, len(investigations))
	for i, inv := range investigations {
		summaries[i] = investigationSummary{
			ID:        inv.ID,
			Title:     inv.Title,
			Prompt:    inv.Prompt,
			Status:    inv.Status,
			ImageURL:  inv.ImageURL,
			CreatedAt: inv.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (app *application) getInvestigation(w http.ResponseWriter, r *http.Request) {
	inv, err := app.detective.Get(r.Context(), contexthelpers.PlayerID(r.Context()), r.PathValue("id"))
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// createInvestigation stores a pending investigation and generates it in the background. The progress can be
// followed from the events endpoint.
func (app *application) createInvestigation(w http.ResponseWriter, r *http.Request) {
	var req createInvestigationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	inv, err := app.detective.CreateInvestigation(r.Context(), contexthelpers.PlayerID(r.Context()), req.Prompt)
	if err != nil {
		app.handleError(w, r, err)
		return
	}

	progress := make(chan detective.Progress, progressBuffer)
	app.generations.Publish(inv.ID, progress)
	ctx := logging.WithAttrs(app.background, logging.Attrs(r.Context())...)
	app.backgroundWG.Add(1)
	go app.generate(ctx, inv, progress)

	writeJSON(w, http.StatusAccepted, createInvestigationResponse{ID: inv.ID, Status: inv.Status})
}

func (app *application) generate(ctx context.Context, inv models.Investigation, progress chan detective.Progress) {
	defer app.backgroundWG.Done()
	defer app.generations.Unpublish(inv.ID)
	defer close(progress)
	defer func() {
		if err := recover(); err != nil {
			app.logger.LogAttrs(ctx, slog.LevelError, "generation panicked", slog.Any("recovered", err))
			if err := app.investigations.SetStatus(context.WithoutCancel(ctx), inv.ID,
				models.InvestigationStatusError, time.Now()); err != nil {
				app.logger.LogAttrs(ctx, slog.LevelError, "failed to mark generation failed", errors.SlogError(err))
			}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, app.generationTimeout)
	defer cancel()
	if err := app.detective.Generate(ctx, inv, progress); err != nil {
		app.logger.LogAttrs(ctx, slog.LevelError, "generation failed", errors.SlogError(err))
	}
}
