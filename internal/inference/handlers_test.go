package inference

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/scene-index/internal/mis"
	"github.com/romariotrain/scene-index/internal/video/models"
)

func newTestServer(t *testing.T, m *Manager) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(NewHandler(m, zerolog.Nop())))
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, newTestManager(nil))

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var h mis.Health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, models.TextVecDim, h.TextDim)
}

func TestEmbedTextEndpoint(t *testing.T) {
	srv := newTestServer(t, newTestManager(nil))

	resp, err := http.Post(srv.URL+"/embed/text", "application/json",
		strings.NewReader(`{"texts":["hello","world"]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out mis.EmbedResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Embeddings, 2)
	assert.Equal(t, models.TextVecDim, out.Dimension)
}

func TestEmbedTextEndpoint_BadRequests(t *testing.T) {
	srv := newTestServer(t, newTestManager(nil))

	cases := []struct {
		name string
		body string
	}{
		{name: "not json", body: `not json`},
		{name: "empty batch", body: `{"texts":[]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/embed/text", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, newTestManager(nil))

	resp, err := http.Get(srv.URL + "/embed/text")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
