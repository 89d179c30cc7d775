package main

import (
	"encoding/json"
	"github.com/myrjola/sleuth/internal/contexthelpers"
	"github.com/myrjola/sleuth/internal/detective"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/game"
	"github.com/myrjola/sleuth/internal/repositories"
	"io"
	"log/slog"
	"net/http"
)

// maxBodyBytes limits the size of JSON request bodies.
const maxBodyBytes = 64 << 10

var errInvalidBody = errors.NewSentinel("invalid request body")

type errorResponse struct {
	Error string `json:"error"`
	// RequestID helps to find the logs of server errors.
	RequestID string `json:"requestId,omitempty"`
}

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error",
		slog.String("method", method), slog.String("uri", uri), errors.SlogError(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error:     http.StatusText(http.StatusInternalServerError),
		RequestID: contexthelpers.RequestID(r.Context()),
	})
}

func (app *application) clientError(w http.ResponseWriter, r *http.Request, status int, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelDebug, http.StatusText(status),
		slog.String("method", method), slog.String("uri", uri), errors.SlogError(err))
	message := http.StatusText(status)
	if err != nil {
		message = rootCause(err).Error()
	}
	writeError(w, status, message)
}

func (app *application) notFound(w http.ResponseWriter, r *http.Request) {
	app.clientError(w, r, http.StatusNotFound, nil)
}

// handleError responds with the status matching the domain error.
func (app *application) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		app.clientError(w, r, http.StatusNotFound, err)
	case errors.Is(err, game.ErrAlreadyAccused),
		errors.Is(err, game.ErrInvestigationClosed),
		errors.Is(err, game.ErrNotReady),
		errors.Is(err, repositories.ErrConflict):
		app.clientError(w, r, http.StatusConflict, err)
	case errors.Is(err, errInvalidBody),
		errors.Is(err, game.ErrInvalidReputationImpact),
		errors.Is(err, game.ErrInvalidScore),
		errors.Is(err, game.ErrUnknownCharacter),
		errors.Is(err, game.ErrAmbiguousName),
		errors.Is(err, game.ErrUnknownClue),
		errors.Is(err, game.ErrEmptyText),
		errors.Is(err, detective.ErrEmptyPrompt),
		errors.Is(err, detective.ErrPromptTooLong),
		errors.Is(err, detective.ErrNothingToAccuse):
		app.clientError(w, r, http.StatusBadRequest, err)
	default:
		app.serverError(w, r, err)
	}
}

// rootCause is the innermost error, usually the sentinel that is safe to show to the player.
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message, RequestID: ""})
}

// decodeJSON reads the request body into v. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return errors.Wrap(errors.Join(errInvalidBody, err), "decode body")
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return errors.Wrap(errInvalidBody, "trailing data")
	}
	return nil
}
