package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/divyekant/memoryd/internal/config"
	"github.com/divyekant/memoryd/internal/embedder"
	"github.com/divyekant/memoryd/internal/engine"
	"github.com/divyekant/memoryd/internal/metadatastore"
	"github.com/divyekant/memoryd/internal/vectorstore"
)

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()

	dataDir := t.TempDir()
	store, err := metadatastore.Open(dataDir)
	require.NoError(t, err)

	vec, err := vectorstore.New(vectorstore.Config{Dimensions: embedder.StaticDimensions})
	require.NoError(t, err)

	cfg := engine.Config{
		DataDir:          dataDir,
		VectorDimensions: embedder.StaticDimensions,
		ChunkMaxSize:     1500,
		ChunkOverlap:     200,
		EmbedProvider:    "static",
	}
	e := engine.New(cfg, store, vec, embedder.NewStatic(), nil, nil)

	srv := New(Deps{
		Engine: e,
		Config: config.ServerConfig{ListenAddr: ":0"},
	})
	return srv, e
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth_Unauthenticated_ReportsMinimalPayload(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)
	require.Empty(t, resp.Version)
}

func TestMemoryAdd_ThenGet(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/memory/add", addRequest{
		Texts:   []string{"we chose postgres for storage"},
		Sources: []string{"decisions.md"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := int64(created["id"].(float64))

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/memory/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(0), id)
}

func TestMemoryAdd_RejectsEmptyTexts(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/memory/add-batch", addRequest{Sources: []string{}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMemoryGet_UnknownIDReportsNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/memory/999", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFoldersList_ReflectsSourcePrefixes(t *testing.T) {
	srv, _ := newTestServer(t)
	doJSON(t, srv.Handler(), http.MethodPost, "/memory/add-batch", addRequest{
		Texts:   []string{"one", "two"},
		Sources: []string{"projects/alpha.md", "projects/beta.md"},
	})

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/folders", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Folders []string `json:"folders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, []string{"projects"}, resp.Folders)
}

func TestFoldersRename_RewritesMatchingSources(t *testing.T) {
	srv, e := newTestServer(t)
	doJSON(t, srv.Handler(), http.MethodPost, "/memory/add-batch", addRequest{
		Texts:   []string{"one"},
		Sources: []string{"projects/alpha.md"},
	})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/folders/rename", folderRenameRequest{
		OldPrefix: "projects",
		NewPrefix: "archive",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec2, err := e.Get(0)
	require.NoError(t, err)
	require.Equal(t, "archive/alpha.md", rec2.Source)
}

func TestSearch_RejectsEmptyQuery(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/search", searchRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit_RejectsOverBurst(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.cfg.RateLimitRPS = 1
	srv.cfg.RateLimitBurst = 1

	h := srv.Handler()
	first := doJSON(t, h, http.MethodGet, "/health/ready", nil)
	second := doJSON(t, h, http.MethodGet, "/health/ready", nil)

	require.NotEqual(t, http.StatusTooManyRequests, first.Code)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestRequireAPIKey_RejectsMissingKey(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.cfg.APIKey = "secret"

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req2.Header.Set("X-API-Key", "secret")
	rec2 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)
}
