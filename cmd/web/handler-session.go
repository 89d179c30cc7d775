package main

import (
	"github.com/myrjola/sleuth/internal/contexthelpers"
	"net/http"
)

type sessionResponse struct {
	PlayerID string `json:"playerId"`
	// CSRFToken has to be sent in the X-CSRF-Token header of state-changing requests.
	CSRFToken string `json:"csrfToken"`
}

func (app *application) session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionResponse{
		PlayerID:  contexthelpers.PlayerID(r.Context()),
		CSRFToken: contexthelpers.CSRFToken(r.Context()),
	})
}
