package main

import (
	"encoding/json"
	"fmt"
	"github.com/myrjola/sleuth/internal/contexthelpers"
	"github.com/myrjola/sleuth/internal/detective"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/models"
	"log/slog"
	"net/http"
	"time"
)

// doneEvent is the last event of the stream.
type doneEvent struct {
	Status models.InvestigationStatus `json:"status"`
	Title  string                     `json:"title"`
}

// investigationEvents streams the generation progress of an investigation as server-sent events.
//
// The stream ends with a done event carrying the stored status. Only the first subscriber of a generation receives
// the progress events, the others and subscribers of finished investigations receive only the done event.
func (app *application) investigationEvents(w http.ResponseWriter, r *http.Request) {
	var (
		ctx      = r.Context()
		playerID = contexthelpers.PlayerID(ctx)
		id       = r.PathValue("id")
	)
	inv, err := app.investigations.Get(ctx, id, playerID)
	if err != nil {
		app.handleError(w, r, err)
		return
	}

	rc := http.NewResponseController(w)
	// Generation takes longer than the server's write timeout.
	if err = rc.SetWriteDeadline(time.Time{}); err != nil {
		app.serverError(w, r, errors.Wrap(err, "clear write deadline"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if inv.Status == models.InvestigationStatusGenerating {
		var progress chan detective.Progress
		select {
		case <-ctx.Done():
			return
		case progress = <-app.generations.Subscribe(ctx, id):
		}
		if progress != nil {
		loop:
			for {
				select {
				case <-ctx.Done():
					return
				case p, open := <-progress:
					if !open {
						break loop
					}
					if err = writeEvent(w, rc, "progress", p); err != nil {
						app.logger.LogAttrs(ctx, slog.LevelDebug, "event stream closed", errors.SlogError(err))
						return
					}
				}
			}
		}
		// The generation has finished, read what it stored.
		if inv, err = app.investigations.Get(ctx, id, playerID); err != nil {
			app.logger.LogAttrs(ctx, slog.LevelError, "failed to read generated investigation", errors.SlogError(err))
			return
		}
	}

	if err = writeEvent(w, rc, "done", doneEvent{Status: inv.Status, Title: inv.Title}); err != nil {
		app.logger.LogAttrs(ctx, slog.LevelDebug, "event stream closed", errors.SlogError(err))
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	if _, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return errors.Wrap(err, "write event")
	}
	if err = rc.Flush(); err != nil {
		return errors.Wrap(err, "flush event")
	}
	return nil
}
