package server

import (
	"bytes"
	_ "embed"
	"errors"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/yourorg/docbind/internal/config"
	"github.com/yourorg/docbind/internal/fetch"
	"github.com/yourorg/docbind/internal/generator"
	"github.com/yourorg/docbind/internal/store"
	"github.com/yourorg/docbind/pkg/types"
)

var (
	//go:embed index.html
	indexHTML string

	indexTemplate = template.Must(template.New("index").Parse(indexHTML))
)

var artifactKinds = []string{types.ArtifactGo, types.ArtifactTree, types.ArtifactMarkdown, types.ArtifactOpenAPI}

var contentTypes = map[string]string{
	types.ArtifactGo:       "text/plain; charset=utf-8",
	types.ArtifactTree:     "application/json; charset=utf-8",
	types.ArtifactMarkdown: "text/markdown; charset=utf-8",
	types.ArtifactOpenAPI:  "application/yaml; charset=utf-8",
}

// SourceFactory opens the document source for one generation request.
// The returned func releases it.
type SourceFactory func(src config.SourceConfig, refresh bool) (generator.Source, func(), error)

type Option func(*Server)

// WithSourceFactory replaces the network fetcher used by POST /api/generate.
func WithSourceFactory(f SourceFactory) Option {
	return func(s *Server) { s.newSource = f }
}

// Server serves stored runs and their artifacts and can trigger generation.
type Server struct {
	cfg       *config.Config
	store     store.Store
	logger    zerolog.Logger
	mux       *http.ServeMux
	newSource SourceFactory

	genMu sync.Mutex
}

type indexData struct {
	Runs  []types.Run
	Kinds []string
}

type generateRequest struct {
	URL     string `json:"url"`
	StartID string `json:"start_id"`
	EndID   string `json:"end_id"`
	Refresh bool   `json:"refresh"`
}

type generateResponse struct {
	Run      *types.Run `json:"run"`
	Warnings []string   `json:"warnings"`
	Files    []string   `json:"files"`
}

// New constructs a new Server with routes registered.
func New(cfg *config.Config, st store.Store, logger zerolog.Logger, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if st == nil {
		return nil, errors.New("store is nil")
	}

	srv := &Server{
		cfg:    cfg,
		store:  st,
		logger: logger.With().Str("component", "server").Logger(),
		mux:    http.NewServeMux(),
	}
	srv.newSource = func(src config.SourceConfig, refresh bool) (generator.Source, func(), error) {
		f, err := fetch.Open(src, refresh, srv.logger)
		if err != nil {
			return nil, nil, err
		}
		return f, func() { _ = f.Close() }, nil
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.registerRoutes()
	return srv, nil
}

// Handler returns the http handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts the server on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("listening")
	return http.ListenAndServe(addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/docs/", http.StripPrefix("/docs/", http.FileServer(http.Dir(s.cfg.Output.Dir))))

	s.mux.HandleFunc("/", s.handleIndex)

	s.mux.HandleFunc("/api/runs", s.handleRuns)
	s.mux.HandleFunc("/api/runs/", s.handleRunRoutes)
	s.mux.HandleFunc("/api/generate", s.handleGenerate)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	runs, err := s.store.ListRuns()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := indexTemplate.Execute(w, indexData{Runs: runs, Kinds: artifactKinds}); err != nil {
		s.logger.Error().Err(err).Msg("render index")
	}
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	runs, err := s.store.ListRuns()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRunRoutes(w http.ResponseWriter, r *http.Request) {
	id, tail, ok := splitPath(r.URL.Path, "/api/runs/")
	if !ok || id == "" {
		http.NotFound(w, r)
		return
	}
	if tail == "" {
		s.handleRunDetail(w, r, id)
		return
	}
	if strings.Contains(tail, "/") {
		http.NotFound(w, r)
		return
	}
	s.handleArtifact(w, r, id, tail)
}

func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		run, err := s.store.GetRun(id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		kinds, err := s.store.ListArtifactKinds(id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp := struct {
			Run       *types.Run `json:"run"`
			Artifacts []string   `json:"artifacts"`
		}{
			Run:       run,
			Artifacts: kinds,
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodDelete:
		if err := s.store.DeleteRun(id); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request, id, kind string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ct, ok := contentTypes[kind]
	if !ok {
		http.Error(w, "unknown artifact kind", http.StatusNotFound)
		return
	}
	a, err := s.store.GetArtifact(id, kind)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, a.Content)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req generateRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := types.JSON.Unmarshal(body, &req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}

	cfg := *s.cfg
	if req.URL != "" && req.URL != cfg.Source.URL {
		cfg.Source.CacheFile = fetch.CachePathFor(cfg.Source.CacheFile, req.URL)
		cfg.Source.URL = req.URL
	}
	if req.StartID != "" {
		cfg.Parse.StartID = req.StartID
	}
	if req.EndID != "" {
		cfg.Parse.EndID = req.EndID
	}
	if err := cfg.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.allowedSource(cfg.Source.URL) {
		http.Error(w, "source host not allowed", http.StatusForbidden)
		return
	}

	s.genMu.Lock()
	defer s.genMu.Unlock()

	src, release, err := s.newSource(cfg.Source, req.Refresh)
	if err != nil {
		http.Error(w, "open source: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer release()

	res, err := generator.Generate(r.Context(), &cfg, src, s.store, s.logger, func(stage string) {
		s.logger.Debug().Str("stage", stage).Msg("generate")
	})
	if err != nil {
		http.Error(w, "generate failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	resp := generateResponse{Run: res.Run, Warnings: make([]string, 0, len(res.Warnings)), Files: res.Files}
	for _, warn := range res.Warnings {
		resp.Warnings = append(resp.Warnings, warn.String())
	}
	writeJSON(w, http.StatusOK, resp)
}

// allowedSource reports whether raw is an http(s) URL on the configured
// source host or one of server.allowed_hosts.
func (s *Server) allowedSource(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	if base, err := url.Parse(s.cfg.Source.URL); err == nil && strings.EqualFold(base.Hostname(), host) {
		return true
	}
	for _, h := range s.cfg.Server.AllowedHosts {
		if strings.EqualFold(strings.TrimSpace(h), host) {
			return true
		}
	}
	return false
}

func splitPath(fullPath, prefix string) (string, string, bool) {
	if !strings.HasPrefix(fullPath, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(fullPath, prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return "", "", false
	}
	id, tail, _ := strings.Cut(rest, "/")
	return id, tail, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = types.JSON.NewEncoder(w).Encode(v)
}
