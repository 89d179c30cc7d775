package main

import (
	"github.com/myrjola/sleuth/internal/contexthelpers"
	"github.com/myrjola/sleuth/internal/detective"
	"net/http"
)

type questionRequest struct {
	Question string `json:"question"`
}

func (app *application) askQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	ctx := r.Context()
	turn, err := app.detective.Interrogate(ctx, contexthelpers.PlayerID(ctx), r.PathValue("id"),
		r.PathValue("characterID"), req.Question)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

type reputationRequest struct {
	Delta int `json:"delta"`
}

func (app *application) adjustReputation(w http.ResponseWriter, r *http.Request) {
	var req reputationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	ctx := r.Context()
	turn, err := app.detective.AdjustReputation(ctx, contexthelpers.PlayerID(ctx), r.PathValue("id"),
		r.PathValue("characterID"), req.Delta)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

func (app *application) investigateClue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	turn, err := app.detective.InvestigateClue(ctx, contexthelpers.PlayerID(ctx), r.PathValue("id"),
		r.PathValue("clueID"))
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

type leadRequest struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

func (app *application) addLead(w http.ResponseWriter, r *http.Request) {
	var req leadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	ctx := r.Context()
	turn, err := app.detective.AddLead(ctx, contexthelpers.PlayerID(ctx), r.PathValue("id"), req.Text,
		req.Confidence)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

func (app *application) accuse(w http.ResponseWriter, r *http.Request) {
	var req detective.Suspect
	if err := decodeJSON(w, r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	ctx := r.Context()
	turn, err := app.detective.Accuse(ctx, contexthelpers.PlayerID(ctx), r.PathValue("id"), req)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}
