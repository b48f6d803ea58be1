package generator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/yourorg/docbind/internal/codegen"
	"github.com/yourorg/docbind/internal/config"
	"github.com/yourorg/docbind/internal/docparse"
	"github.com/yourorg/docbind/internal/filter"
	"github.com/yourorg/docbind/internal/fsutil"
	"github.com/yourorg/docbind/internal/store"
	"github.com/yourorg/docbind/pkg/types"
)

// ProgressFunc reports generation progress.
type ProgressFunc func(stage string)

// Source yields the raw reference document.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]byte, error)

func (f SourceFunc) Fetch(ctx context.Context) ([]byte, error) { return f(ctx) }

// Result is everything one generation pass produced.
type Result struct {
	Run       *types.Run
	Sections  []types.Section
	Warnings  []docparse.Warning
	Bindings  []codegen.Binding
	Artifacts map[string][]byte
	Files     []string
	Digest    string
}

// Parse fetches the document and reduces it to the section tree.
func Parse(ctx context.Context, cfg *config.Config, src Source, logger zerolog.Logger, onProgress ProgressFunc) (*docparse.Result, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if src == nil {
		return nil, errors.New("source is nil")
	}

	report(onProgress, "fetching document")
	html, err := src.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	report(onProgress, "reading document")
	nodes, err := docparse.ReadHTML(html, readOptions(cfg.Parse))
	if err != nil {
		return nil, err
	}

	report(onProgress, fmt.Sprintf("parsing %d nodes", len(nodes)))
	p := docparse.NewParser(logger)
	if cfg.Parse.RateLimitMarker != "" {
		p.RateLimitMarker = cfg.Parse.RateLimitMarker
	}
	if cfg.Parse.NestMarker != "" {
		p.NestMarker = cfg.Parse.NestMarker
	}
	res, err := p.Parse(nodes)
	if err != nil {
		return nil, err
	}

	res.Sections = filter.Redact(filter.Apply(res.Sections, cfg.Filter), cfg.Redact)
	return res, nil
}

// Generate runs fetch, parse, emit and render, writes the enabled output
// formats and records the run when a store is given.
func Generate(ctx context.Context, cfg *config.Config, src Source, st store.Store, logger zerolog.Logger, onProgress ProgressFunc) (*Result, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	logger = logger.With().Str("component", "generator").Logger()

	var run *types.Run
	if st != nil {
		var err error
		run, err = st.CreateRun(cfg.Source.URL, cfg.Parse.StartID, cfg.Parse.EndID)
		if err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
		logger = logger.With().Str("run", run.ID).Logger()
	}

	fail := func(err error) error {
		if run != nil {
			if uerr := st.UpdateRunStatus(run.ID, types.RunStatusFailed, err.Error()); uerr != nil {
				logger.Error().Err(uerr).Msg("mark run failed")
			}
		}
		return err
	}

	res, err := generate(ctx, cfg, src, logger, onProgress)
	if err != nil {
		return nil, fail(err)
	}

	if run != nil {
		report(onProgress, "recording run")
		for _, kind := range []string{types.ArtifactTree, types.ArtifactGo, types.ArtifactMarkdown, types.ArtifactOpenAPI} {
			content, ok := res.Artifacts[kind]
			if !ok {
				continue
			}
			if err := st.SaveArtifact(&types.Artifact{RunID: run.ID, Kind: kind, Content: string(content)}); err != nil {
				return nil, fail(fmt.Errorf("save %s artifact: %w", kind, err))
			}
		}
		run.SectionCount = len(res.Sections)
		run.EndpointCount = types.CountEndpoints(res.Sections)
		run.WarningCount = len(res.Warnings)
		run.OutputDigest = res.Digest
		if err := st.FinishRun(run); err != nil {
			return nil, fail(fmt.Errorf("finish run: %w", err))
		}
		res.Run = run
	}

	logger.Info().
		Int("sections", len(res.Sections)).
		Int("bindings", len(res.Bindings)).
		Int("warnings", len(res.Warnings)).
		Str("digest", res.Digest).
		Msg("generation finished")
	return res, nil
}

func generate(ctx context.Context, cfg *config.Config, src Source, logger zerolog.Logger, onProgress ProgressFunc) (*Result, error) {
	parsed, err := Parse(ctx, cfg, src, logger, onProgress)
	if err != nil {
		return nil, err
	}

	report(onProgress, "emitting bindings")
	emitter := codegen.NewEmitter(codegen.Options{
		Package:    cfg.Output.Package,
		RestImport: cfg.Output.RestImport,
		Filename:   cfg.Output.GoFile,
	}, logger)
	out, err := emitter.Emit(parsed.Sections)
	if err != nil {
		return nil, err
	}

	report(onProgress, "rendering outputs")
	tree, err := RenderTree(parsed.Sections)
	if err != nil {
		return nil, fmt.Errorf("render tree: %w", err)
	}
	openapi, err := RenderOpenAPI(ctx, parsed.Sections, out.Bindings, cfg.Output.Package)
	if err != nil {
		return nil, fmt.Errorf("render openapi: %w", err)
	}

	sum := sha256.Sum256(out.Source)
	res := &Result{
		Sections: parsed.Sections,
		Warnings: parsed.Warnings,
		Bindings: out.Bindings,
		Artifacts: map[string][]byte{
			types.ArtifactGo:       out.Source,
			types.ArtifactTree:     tree,
			types.ArtifactMarkdown: []byte(RenderMarkdown(parsed.Sections, out.Bindings)),
			types.ArtifactOpenAPI:  openapi,
		},
		Digest: hex.EncodeToString(sum[:]),
	}

	files := []struct {
		format, kind, name string
	}{
		{config.FormatGo, types.ArtifactGo, cfg.Output.GoFile},
		{config.FormatJSON, types.ArtifactTree, cfg.Output.TreeFile},
		{config.FormatMarkdown, types.ArtifactMarkdown, cfg.Output.MarkdownFile},
		{config.FormatOpenAPI, types.ArtifactOpenAPI, cfg.Output.OpenAPIFile},
	}
	for _, f := range files {
		if !cfg.HasFormat(f.format) {
			continue
		}
		path := filepath.Join(cfg.Output.Dir, f.name)
		if err := fsutil.WriteFile(path, res.Artifacts[f.kind], 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.format, err)
		}
		res.Files = append(res.Files, path)
		logger.Debug().Str("file", path).Msg("wrote output")
	}
	return res, nil
}

func readOptions(c config.ParseConfig) docparse.ReadOptions {
	opts := docparse.DefaultReadOptions(c.StartID, c.EndID)
	if c.Container != "" {
		opts.Container = c.Container
	}
	if c.SectionTag != "" {
		opts.SectionTag = c.SectionTag
	}
	if c.EndpointTag != "" {
		opts.EndpointTag = c.EndpointTag
	}
	if c.NoteTag != "" {
		opts.NoteTag = c.NoteTag
	}
	return opts
}

func report(fn ProgressFunc, msg string) {
	if fn != nil {
		fn(msg)
	}
}
