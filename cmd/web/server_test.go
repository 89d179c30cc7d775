package main

import (
	"context"
	"encoding/json"
	"github.com/myrjola/sleuth/internal/detective"
	"github.com/myrjola/sleuth/internal/e2etest"
	"github.com/myrjola/sleuth/internal/game"
	"github.com/myrjola/sleuth/internal/models"
	"github.com/myrjola/sleuth/internal/prompts"
	"github.com/stretchr/testify/require"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testLookupEnv(key string) (string, bool) {
	switch key {
	case "SLEUTH_ADDR":
		return "localhost:0", true
	case "SLEUTH_SQLITE_URL":
		return ":memory:", true
	case "SLEUTH_PPROF_PORT":
		return "", true
	case "SLEUTH_AI_PROVIDER":
		return "offline", true
	case "SLEUTH_AI_ATTEMPTS":
		return "1", true
	default:
		return "", false
	}
}

// startTestServer starts the server with an offline language model. Every mystery is the built-in one.
func startTestServer(t *testing.T) *e2etest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	// Background generation keeps logging after the test has finished so the logs are not written to t.Log.
	server, err := e2etest.StartServer(ctx, io.Discard, testLookupEnv, run)
	require.NoError(t, err)
	return server
}

func createInvestigation(t *testing.T, client *e2etest.Client) models.Investigation {
	t.Helper()
	ctx := context.Background()
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	status, err := client.PostJSON(ctx, "/api/investigations", map[string]string{"prompt": "a poisoned lord"}, &created)
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, status)
	require.Equal(t, "generating", created.Status)

	events, err := client.Events(ctx, "/api/investigations/"+created.ID+"/events")
	require.NoError(t, err)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.Equal(t, "done", last.Name)
	require.JSONEq(t, `{"status": "active", "title": "The Affair at Blackwood Manor"}`, last.Data)
	for _, event := range events[:len(events)-1] {
		require.Equal(t, "progress", event.Name)
	}

	var inv models.Investigation
	status, err = client.GetJSON(ctx, "/api/investigations/"+created.ID, &inv)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	return inv
}

func characterID(t *testing.T, inv models.Investigation, name string) string {
	t.Helper()
	for _, c := range inv.Characters {
		if c.Name == name {
			return c.ID
		}
	}
	t.Fatalf("character %q not found", name)
	return ""
}

func TestHealthy(t *testing.T) {
	server := startTestServer(t)
	var body map[string]string
	status, err := server.Client().GetJSON(context.Background(), "/api/healthy", &body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body["status"])
}

func TestInvestigation(t *testing.T) {
	ctx := context.Background()
	server := startTestServer(t)
	client := server.Client()
	session, err := client.StartSession(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, session.PlayerID)
	require.NotEmpty(t, session.CSRFToken)

	inv := createInvestigation(t, client)
	require.Equal(t, models.InvestigationStatusActive, inv.Status)
	require.Len(t, inv.Characters, 5)
	for _, c := range inv.Characters {
		require.False(t, c.IsCulprit, "culprit must not be revealed")
		require.Empty(t, c.Knowledge)
	}

	var list []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	status, err := client.GetJSON(ctx, "/api/investigations", &list)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, list, 1)
	require.Equal(t, inv.ID, list[0].ID)

	t.Run("question", func(t *testing.T) {
		var turn detective.Turn
		path := "/api/investigations/" + inv.ID + "/characters/" + characterID(t, inv, "Alice Finch") + "/questions"
		status, err = client.PostJSON(ctx, path, map[string]string{"question": "What did you see?"}, &turn)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status)
		require.True(t, turn.Fallback)
		require.Equal(t, prompts.FallbackResponse.Text, turn.Reply.Text)

		status, err = client.PostJSON(ctx, path, map[string]string{"question": ""}, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, status)

		status, err = client.PostJSON(ctx, path, map[string]string{"interrogation": "?"}, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, status, "unknown fields are rejected")
	})

	t.Run("reputation", func(t *testing.T) {
		path := "/api/investigations/" + inv.ID + "/characters/" + characterID(t, inv, "Dr. Helena Crane") + "/reputation"
		var turn detective.Turn
		status, err = client.PostJSON(ctx, path, map[string]int{"delta": -5}, &turn)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status)

		var errBody map[string]string
		status, err = client.PostJSON(ctx, path, map[string]int{"delta": 9}, &errBody)
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, status)
		require.Contains(t, errBody["error"], "reputation impact")
	})

	t.Run("clue", func(t *testing.T) {
		var turn detective.Turn
		status, err = client.PostJSON(ctx, "/api/investigations/"+inv.ID+"/clues/"+inv.Clues[0].ID+"/investigate",
			nil, &turn)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, turn.Leads, 1)

		status, err = client.PostJSON(ctx, "/api/investigations/"+inv.ID+"/clues/nowhere/investigate", nil, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("lead", func(t *testing.T) {
		var turn detective.Turn
		status, err = client.PostJSON(ctx, "/api/investigations/"+inv.ID+"/leads",
			map[string]any{"text": "Somebody changed the ledger", "confidence": 0.5}, &turn)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, turn.Leads, 1)
	})

	t.Run("accusation", func(t *testing.T) {
		var turn detective.Turn
		path := "/api/investigations/" + inv.ID + "/accusation"
		var ambiguous map[string]string
		status, err = client.PostJSON(ctx, path, map[string]string{"name": "Blackwood"}, &ambiguous)
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, game.ErrAmbiguousName.Error(), ambiguous["error"])

		status, err = client.PostJSON(ctx, path, map[string]string{"name": "thomas reid"}, &turn)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, models.InvestigationStatusSolved, turn.Investigation.Status)
		require.True(t, turn.Investigation.Accusation.Correct)

		status, err = client.PostJSON(ctx, path, map[string]string{"name": "Alice Finch"}, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusConflict, status)

		status, err = client.PostJSON(ctx, "/api/investigations/"+inv.ID+"/characters/"+
			characterID(t, inv, "Alice Finch")+"/questions", map[string]string{"question": "Still there?"}, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusConflict, status)
	})
}

func TestInvestigation_otherPlayer(t *testing.T) {
	ctx := context.Background()
	server := startTestServer(t)
	owner := server.Client()
	_, err := owner.StartSession(ctx)
	require.NoError(t, err)
	inv := createInvestigation(t, owner)

	stranger, err := e2etest.NewClient(server.URL())
	require.NoError(t, err)
	_, err = stranger.StartSession(ctx)
	require.NoError(t, err)

	status, err := stranger.GetJSON(ctx, "/api/investigations/"+inv.ID, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, status)

	status, err = stranger.PostJSON(ctx, "/api/investigations/"+inv.ID+"/accusation",
		map[string]string{"name": "Thomas Reed"}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, status)
}

func TestCSRF(t *testing.T) {
	ctx := context.Background()
	server := startTestServer(t)
	client, err := e2etest.NewClient(server.URL())
	require.NoError(t, err)

	// No session means no CSRF token.
	status, err := client.PostJSON(ctx, "/api/investigations", map[string]string{"prompt": "a heist"}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, status)
}

func TestCreateInvestigation_invalidPrompt(t *testing.T) {
	ctx := context.Background()
	server := startTestServer(t)
	client := server.Client()
	_, err := client.StartSession(ctx)
	require.NoError(t, err)

	var errBody map[string]string
	status, err := client.PostJSON(ctx, "/api/investigations", map[string]string{"prompt": "  "}, &errBody)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, detective.ErrEmptyPrompt.Error(), errBody["error"])
}

func TestShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	_, err := e2etest.StartServer(ctx, io.Discard, testLookupEnv,
		func(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
			err := run(ctx, logger, lookupEnv)
			done <- err
			return err
		})
	require.NoError(t, err)

	cancel()
	select {
	case err = <-done:
		require.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestTimeout(t *testing.T) {
	slow := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	h := timeoutHandler(slow, 10*time.Millisecond) //nolint:mnd // short timeout
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body["error"])
}
