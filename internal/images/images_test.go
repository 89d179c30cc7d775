package images_test

import (
	"context"
	"encoding/json"
	"github.com/myrjola/sleuth/internal/ai"
	"github.com/myrjola/sleuth/internal/images"
	"github.com/myrjola/sleuth/internal/models"
	"github.com/myrjola/sleuth/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func newFakeCDN(t *testing.T) (*httptest.Server, *sync.Map) {
	t.Helper()
	uploads := &sync.Map{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("upload_preset") != "sleuth" {
			http.Error(w, "unknown preset", http.StatusUnauthorized)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		publicID := r.FormValue("public_id")
		uploads.Store(publicID, string(data))
		_ = json.NewEncoder(w).Encode(map[string]string{"secure_url": "https://cdn.example.com/" + publicID + ".png"})
	}))
	t.Cleanup(server.Close)
	return server, uploads
}

func TestCDN_Upload(t *testing.T) {
	server, uploads := newFakeCDN(t)
	cdn := images.NewCDN(server.Client(), server.URL, "sleuth")
	url, err := cdn.Upload(context.Background(), "inv/reed", []byte("png"))
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/inv/reed.png", url)
	data, ok := uploads.Load("inv/reed")
	require.True(t, ok)
	require.Equal(t, "png", data)
}

func TestCDN_Upload_rejected(t *testing.T) {
	server, _ := newFakeCDN(t)
	cdn := images.NewCDN(server.Client(), server.URL, "wrong")
	_, err := cdn.Upload(context.Background(), "inv/reed", []byte("png"))
	require.ErrorIs(t, err, images.ErrUpload)
}

type promptEcho struct {
	mu      sync.Mutex
	prompts []string
}

func (g *promptEcho) GenerateImage(_ context.Context, prompt string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if strings.Contains(prompt, "Alice Finch") {
		return nil, ai.Permanent(ai.ErrOffline)
	}
	return []byte(prompt), nil
}

func TestPainter_Paint(t *testing.T) {
	server, uploads := newFakeCDN(t)
	gen := &promptEcho{mu: sync.Mutex{}, prompts: nil}
	painter := images.NewPainter(gen, images.NewCDN(server.Client(), server.URL, "sleuth"),
		testhelpers.NewLogger(testhelpers.NewWriter(t)))

	inv := models.Investigation{ //nolint:exhaustruct // only relevant fields
		ID:      "inv",
		Title:   "The Affair at Blackwood Manor",
		Setting: "a manor on the moors",
		Characters: []models.Character{
			{ID: "reed", Name: "Thomas Reed", Role: models.RoleSuspect},  //nolint:exhaustruct // only relevant fields
			{ID: "alice", Name: "Alice Finch", Role: models.RoleWitness}, //nolint:exhaustruct // only relevant fields
		},
	}
	painted := painter.Paint(context.Background(), inv)

	require.Equal(t, "https://cdn.example.com/inv/scene.png", painted.ImageURL)
	require.Equal(t, "https://cdn.example.com/inv/reed.png", painted.Characters[0].ImageURL)
	require.Empty(t, painted.Characters[1].ImageURL, "failed portrait is skipped")
	require.Empty(t, inv.Characters[0].ImageURL, "input is not modified")
	require.Len(t, gen.prompts, 3)

	scene, ok := uploads.Load("inv/scene")
	require.True(t, ok)
	require.Contains(t, scene, "The Affair at Blackwood Manor")
}
