package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/docbind/internal/config"
	"github.com/yourorg/docbind/internal/generator"
	"github.com/yourorg/docbind/internal/store"
	"github.com/yourorg/docbind/pkg/types"
)

type fixture struct {
	srv     *Server
	store   *store.SQLiteStore
	cfg     *config.Config
	opened  atomic.Int32
	lastSrc config.SourceConfig
	refresh bool
}

func newTestServer(t *testing.T) *fixture {
	t.Helper()

	html, err := os.ReadFile(filepath.Join("..", "docparse", "testdata", "reference.html"))
	require.NoError(t, err)

	tmpDir := t.TempDir()
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Output.Dir = filepath.Join(tmpDir, "output")
	cfg.Source.CacheFile = filepath.Join(tmpDir, "cache", "okx.html")
	require.NoError(t, os.MkdirAll(cfg.Output.Dir, 0o755))

	st, err := store.NewSQLiteStore(filepath.Join(tmpDir, "docbind.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	fx := &fixture{store: st, cfg: cfg}
	factory := func(src config.SourceConfig, refresh bool) (generator.Source, func(), error) {
		fx.opened.Add(1)
		fx.lastSrc = src
		fx.refresh = refresh
		return generator.SourceFunc(func(context.Context) ([]byte, error) { return html, nil }), func() {}, nil
	}

	fx.srv, err = New(cfg, st, zerolog.Nop(), WithSourceFactory(factory))
	require.NoError(t, err)
	return fx
}

func (fx *fixture) do(method, target string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	fx.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServerRunsEmpty(t *testing.T) {
	fx := newTestServer(t)

	rec := fx.do(http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []types.Run
	require.NoError(t, types.JSON.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Empty(t, runs)
}

func TestServerGenerateAndBrowse(t *testing.T) {
	fx := newTestServer(t)

	rec := fx.do(http.MethodPost, "/api/generate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp generateResponse
	require.NoError(t, types.JSON.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Run)
	assert.Equal(t, types.RunStatusGenerated, resp.Run.Status)
	assert.Equal(t, 3, resp.Run.EndpointCount)
	assert.Len(t, resp.Warnings, 2)
	assert.Equal(t, int32(1), fx.opened.Load())
	assert.False(t, fx.refresh)

	detail := fx.do(http.MethodGet, "/api/runs/"+resp.Run.ID, nil)
	require.Equal(t, http.StatusOK, detail.Code)
	var detailResp struct {
		Run       *types.Run `json:"run"`
		Artifacts []string   `json:"artifacts"`
	}
	require.NoError(t, types.JSON.Unmarshal(detail.Body.Bytes(), &detailResp))
	assert.Equal(t, resp.Run.ID, detailResp.Run.ID)
	assert.Len(t, detailResp.Artifacts, 4)

	goSrc := fx.do(http.MethodGet, "/api/runs/"+resp.Run.ID+"/go", nil)
	require.Equal(t, http.StatusOK, goSrc.Code)
	assert.True(t, strings.HasPrefix(goSrc.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, goSrc.Body.String(), "func AccountGetBalance(")

	tree := fx.do(http.MethodGet, "/api/runs/"+resp.Run.ID+"/tree", nil)
	require.Equal(t, http.StatusOK, tree.Code)
	var sections []types.Section
	require.NoError(t, types.JSON.Unmarshal(tree.Body.Bytes(), &sections))
	assert.Len(t, sections, 2)

	md := fx.do(http.MethodGet, "/api/runs/"+resp.Run.ID+"/markdown", nil)
	require.Equal(t, http.StatusOK, md.Code)
	assert.Contains(t, md.Body.String(), "# API Reference")

	docs := fx.do(http.MethodGet, "/docs/api.go", nil)
	require.Equal(t, http.StatusOK, docs.Code)
	assert.Equal(t, goSrc.Body.String(), docs.Body.String())

	index := fx.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, index.Code)
	assert.Contains(t, index.Body.String(), "docbind runs")
	assert.Contains(t, index.Body.String(), resp.Run.ID)
}

func TestServerGenerateOverrides(t *testing.T) {
	fx := newTestServer(t)

	body := []byte(`{"url":"https://www.okx.com/docs-v5/zh/","refresh":true}`)
	rec := fx.do(http.MethodPost, "/api/generate", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.True(t, fx.refresh)
	assert.Equal(t, "https://www.okx.com/docs-v5/zh/", fx.lastSrc.URL)
	assert.NotEqual(t, fx.cfg.Source.CacheFile, fx.lastSrc.CacheFile)
	assert.Equal(t, filepath.Dir(fx.cfg.Source.CacheFile), filepath.Dir(fx.lastSrc.CacheFile))
	assert.Equal(t, "https://www.okx.com/docs-v5/en/", fx.cfg.Source.URL)
}

func TestServerGenerateBadRequests(t *testing.T) {
	fx := newTestServer(t)

	rec := fx.do(http.MethodPost, "/api/generate", []byte("{"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = fx.do(http.MethodPost, "/api/generate", []byte(`{"url":"not a url"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = fx.do(http.MethodGet, "/api/generate", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = fx.do(http.MethodPost, "/api/generate", []byte(`{"start_id":"rest-api-funding"}`))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	runs, err := fx.store.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, types.RunStatusFailed, runs[0].Status)
	assert.Equal(t, int32(1), fx.opened.Load())
}

func TestServerGenerateRejectsForeignHosts(t *testing.T) {
	fx := newTestServer(t)

	for _, target := range []string{
		"http://169.254.169.254/latest/meta-data/",
		"http://localhost:8080/admin",
		"ftp://www.okx.com/docs-v5/en/",
	} {
		rec := fx.do(http.MethodPost, "/api/generate", []byte(`{"url":"`+target+`"}`))
		assert.Equal(t, http.StatusForbidden, rec.Code, target)
	}
	assert.Equal(t, int32(0), fx.opened.Load())

	runs, err := fx.store.ListRuns()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestServerGenerateAllowedHosts(t *testing.T) {
	fx := newTestServer(t)
	fx.cfg.Server.AllowedHosts = []string{"Docs.Example.com"}

	rec := fx.do(http.MethodPost, "/api/generate", []byte(`{"url":"https://docs.example.com/api/"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "https://docs.example.com/api/", fx.lastSrc.URL)
}

func TestServerMissingRunAndArtifact(t *testing.T) {
	fx := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, fx.do(http.MethodGet, "/api/runs/run_19700101_001", nil).Code)
	assert.Equal(t, http.StatusNotFound, fx.do(http.MethodGet, "/api/runs/run_19700101_001/go", nil).Code)
	assert.Equal(t, http.StatusNotFound, fx.do(http.MethodGet, "/api/runs/run_19700101_001/bogus", nil).Code)
	assert.Equal(t, http.StatusNotFound, fx.do(http.MethodGet, "/api/runs/run_19700101_001/go/extra", nil).Code)
	assert.Equal(t, http.StatusNotFound, fx.do(http.MethodGet, "/nope", nil).Code)
}

func TestServerDeleteRun(t *testing.T) {
	fx := newTestServer(t)

	run, err := fx.store.CreateRun("https://www.okx.com/docs-v5/en/", "a", "b")
	require.NoError(t, err)
	require.NoError(t, fx.store.SaveArtifact(&types.Artifact{RunID: run.ID, Kind: types.ArtifactGo, Content: "package x"}))

	assert.Equal(t, http.StatusNoContent, fx.do(http.MethodDelete, "/api/runs/"+run.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, fx.do(http.MethodGet, "/api/runs/"+run.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, fx.do(http.MethodDelete, "/api/runs/"+run.ID, nil).Code)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(nil, nil, zerolog.Nop())
	assert.Error(t, err)

	cfg := &config.Config{}
	cfg.SetDefaults()
	_, err = New(cfg, nil, zerolog.Nop())
	assert.Error(t, err)
}
