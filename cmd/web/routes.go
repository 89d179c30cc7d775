package main

import (
	"github.com/justinas/alice"
	"net/http"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/healthy", app.healthy)

	session := alice.New(app.sessionManager.LoadAndSave, noSurf(app.secureCookies), app.identifyPlayer)
	// Server-sent events are streamed so they can neither be buffered by the session manager nor time out.
	stream := alice.New(app.serverSentEventMiddleware, app.knownPlayer)
	timeout := func(h http.Handler) http.Handler {
		return timeoutHandler(h, app.requestTimeout)
	}
	api := session.Append(timeout)

	mux.Handle("GET /api/session", api.ThenFunc(app.session))
	mux.Handle("GET /api/investigations", api.ThenFunc(app.listInvestigations))
	mux.Handle("POST /api/investigations", api.ThenFunc(app.createInvestigation))
	mux.Handle("GET /api/investigations/{id}", api.ThenFunc(app.getInvestigation))
	mux.Handle("GET /api/investigations/{id}/events", stream.ThenFunc(app.investigationEvents))
	mux.Handle("POST /api/investigations/{id}/characters/{characterID}/questions", api.ThenFunc(app.askQuestion))
	mux.Handle("POST /api/investigations/{id}/characters/{characterID}/reputation", api.ThenFunc(app.adjustReputation))
	mux.Handle("POST /api/investigations/{id}/clues/{clueID}/investigate", api.ThenFunc(app.investigateClue))
	mux.Handle("POST /api/investigations/{id}/leads", api.ThenFunc(app.addLead))
	mux.Handle("POST /api/investigations/{id}/accusation", api.ThenFunc(app.accuse))

	return alice.New(app.recoverPanic, app.requestID, app.logRequest, secureHeaders).Then(mux)
}
