package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/yourorg/docbind/internal/config"
	"github.com/yourorg/docbind/internal/fetch"
	"github.com/yourorg/docbind/internal/fsutil"
	"github.com/yourorg/docbind/internal/generator"
	"github.com/yourorg/docbind/internal/logging"
	"github.com/yourorg/docbind/internal/server"
	"github.com/yourorg/docbind/internal/store"
	"github.com/yourorg/docbind/pkg/types"
)

const defaultConfigContent = `source:
  url: "https://www.okx.com/docs-v5/en/"
  cache_file: ""
  timeout: 5s
  proxy: ""
  user_agent: "docbind/1.0"

parse:
  container: ".page-wrapper .content"
  start_id: "rest-api-account"
  end_id: "rest-api-status"
  section_tag: h2
  endpoint_tag: h3
  note_tag: h4
  rate_limit_marker: "Rate Limit"
  nest_marker: ">"

output:
  dir: "./output"
  package: "okxapi"
  go_file: "api.go"
  tree_file: "api.json"
  markdown_file: "api.md"
  openapi_file: "openapi.yaml"
  rest_import: "github.com/yourorg/docbind/pkg/rest"
  formats:
    - go
    - json
    - markdown
    - openapi

filter:
  ignore_sections: []
  ignore_endpoints: []
  ignore_paths: []

redact:
  fields: []
  replacement: "***REDACTED***"

store:
  path: ""

server:
  host: "127.0.0.1"
  port: 3000
  allowed_hosts: []

log:
  level: "info"
`

type globalOptions struct {
	cfgPath string
	verbose bool
	debug   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "docbind",
		Short:         "Generate typed Go bindings from an HTML API reference",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.cfgPath, "config", "", "config file path")
	root.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "print pipeline stages")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(newInitCmd())
	root.AddCommand(newGenerateCmd(opts))
	root.AddCommand(newParseCmd(opts))
	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newListCmd(opts))
	root.AddCommand(newShowCmd(opts))
	root.AddCommand(newDeleteCmd(opts))

	return root
}

func (o *globalOptions) load(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(o.cfgPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	level := cfg.Log.Level
	if o.debug {
		level = "debug"
	}
	return cfg, logging.New(level, cmd.ErrOrStderr()), nil
}

func (o *globalOptions) progress(cmd *cobra.Command) generator.ProgressFunc {
	if !o.verbose {
		return nil
	}
	return func(stage string) {
		fmt.Fprintln(cmd.ErrOrStderr(), "==>", stage)
	}
}

func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	path, err := cfg.StorePath()
	if err != nil {
		return nil, err
	}
	return store.NewSQLiteStore(path)
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize ~/.docbind directory and default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			baseDir := filepath.Join(home, ".docbind")
			if err := os.MkdirAll(baseDir, 0o755); err != nil {
				return err
			}

			cfgFile := filepath.Join(baseDir, "config.yaml")
			if _, err := os.Stat(cfgFile); errors.Is(err, os.ErrNotExist) {
				if err := os.WriteFile(cfgFile, []byte(defaultConfigContent), 0o644); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "created", cfgFile)
			} else if err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "exists", cfgFile)
			} else {
				return err
			}

			dbPath := filepath.Join(baseDir, "docbind.db")
			s, err := store.NewSQLiteStore(dbPath)
			if err != nil {
				return err
			}
			defer s.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "database ready", dbPath)
			return nil
		},
	}
}

type sourceFlags struct {
	url, start, end string
	refresh         bool
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.url, "url", "", "reference document URL")
	cmd.Flags().StringVar(&f.start, "start", "", "id of the first heading to read")
	cmd.Flags().StringVar(&f.end, "end", "", "id of the heading that ends the range")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "drop the cached document and fetch again")
}

func (f *sourceFlags) apply(cfg *config.Config) {
	if f.url != "" && f.url != cfg.Source.URL {
		cfg.Source.CacheFile = fetch.CachePathFor(cfg.Source.CacheFile, f.url)
		cfg.Source.URL = f.url
	}
	if f.start != "" {
		cfg.Parse.StartID = f.start
	}
	if f.end != "" {
		cfg.Parse.EndID = f.end
	}
}

func newGenerateCmd(opts *globalOptions) *cobra.Command {
	var src sourceFlags
	var outDir, pkg string
	var formats []string
	var noStore bool

	cmd := &cobra.Command{Use: "generate", Short: "Generate Go bindings from the reference document", RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := opts.load(cmd)
		if err != nil {
			return err
		}
		src.apply(cfg)
		if outDir != "" {
			cfg.Output.Dir = outDir
		}
		if pkg != "" {
			cfg.Output.Package = pkg
		}
		if len(formats) > 0 {
			cfg.Output.Formats = formats
		}
		if err := cfg.ValidateGenerate(); err != nil {
			return err
		}

		f, err := fetch.Open(cfg.Source, src.refresh, logger)
		if err != nil {
			return err
		}
		defer f.Close()

		var st store.Store
		if !noStore {
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()
			st = s
		}

		res, err := generator.Generate(cmd.Context(), cfg, f, st, logger, opts.progress(cmd))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if res.Run != nil {
			fmt.Fprintln(out, "run", res.Run.ID)
		}
		fmt.Fprintf(out, "%d sections, %d endpoints, %d warnings\n", len(res.Sections), len(res.Bindings), len(res.Warnings))
		for _, w := range res.Warnings {
			fmt.Fprintln(out, "warning:", w.String())
		}
		for _, file := range res.Files {
			fmt.Fprintln(out, "wrote", file)
		}
		return nil
	}}
	src.register(cmd)
	cmd.Flags().StringVar(&outDir, "out", "", "output directory")
	cmd.Flags().StringVar(&pkg, "package", "", "package name of the generated file")
	cmd.Flags().StringSliceVar(&formats, "format", nil, "output formats (go, json, markdown, openapi)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not record the run")
	return cmd
}

func newParseCmd(opts *globalOptions) *cobra.Command {
	var src sourceFlags
	var outFile string

	cmd := &cobra.Command{Use: "parse", Short: "Parse the reference document and print the section tree", RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := opts.load(cmd)
		if err != nil {
			return err
		}
		src.apply(cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		f, err := fetch.Open(cfg.Source, src.refresh, logger)
		if err != nil {
			return err
		}
		defer f.Close()

		res, err := generator.Parse(cmd.Context(), cfg, f, logger, opts.progress(cmd))
		if err != nil {
			return err
		}
		tree, err := generator.RenderTree(res.Sections)
		if err != nil {
			return err
		}
		if outFile == "" {
			_, err = cmd.OutOrStdout().Write(tree)
			return err
		}
		if err := fsutil.WriteFile(outFile, tree, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d sections, %d endpoints)\n", outFile, len(res.Sections), types.CountEndpoints(res.Sections))
		return nil
	}}
	src.register(cmd)
	cmd.Flags().StringVar(&outFile, "out", "", "write the tree to this file instead of stdout")
	return cmd
}

func newServeCmd(opts *globalOptions) *cobra.Command {
	var host string
	var port int
	cmd := &cobra.Command{Use: "serve", Short: "Start HTTP service", RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := opts.load(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("host") {
			cfg.Server.Host = host
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = port
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		srv, err := server.New(cfg, st, logger)
		if err != nil {
			return err
		}
		addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
		fmt.Fprintf(cmd.OutOrStdout(), "serving on http://%s\n", addr)
		return srv.ListenAndServe(addr)
	}}
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "server host")
	cmd.Flags().IntVar(&port, "port", 3000, "server port")
	return cmd
}

func newListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{Use: "list", Short: "List recorded runs", RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := opts.load(cmd)
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		runs, err := st.ListRuns()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTATUS\tSECTIONS\tENDPOINTS\tWARNINGS\tCREATED")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n", r.ID, r.Status, r.SectionCount, r.EndpointCount, r.WarningCount, r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		}
		return tw.Flush()
	}}
}

func newShowCmd(opts *globalOptions) *cobra.Command {
	var runID, artifact string
	cmd := &cobra.Command{Use: "show", Short: "Show run details or one of its artifacts", RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := opts.load(cmd)
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		out := cmd.OutOrStdout()
		if artifact != "" {
			a, err := st.GetArtifact(runID, artifact)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(out, a.Content)
			return err
		}

		run, err := st.GetRun(runID)
		if err != nil {
			return err
		}
		kinds, err := st.ListArtifactKinds(runID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "id:        %s\n", run.ID)
		fmt.Fprintf(out, "status:    %s\n", run.Status)
		if run.ErrorMsg != "" {
			fmt.Fprintf(out, "error:     %s\n", run.ErrorMsg)
		}
		fmt.Fprintf(out, "source:    %s (#%s .. #%s)\n", run.SourceURL, run.StartID, run.EndID)
		fmt.Fprintf(out, "sections:  %d\n", run.SectionCount)
		fmt.Fprintf(out, "endpoints: %d\n", run.EndpointCount)
		fmt.Fprintf(out, "warnings:  %d\n", run.WarningCount)
		fmt.Fprintf(out, "digest:    %s\n", run.OutputDigest)
		fmt.Fprintf(out, "artifacts: %v\n", kinds)
		return nil
	}}
	cmd.Flags().StringVar(&runID, "run", "", "run id")
	cmd.Flags().StringVar(&artifact, "artifact", "", "print artifact content (go, tree, markdown, openapi)")
	_ = cmd.MarkFlagRequired("run")
	return cmd
}

func newDeleteCmd(opts *globalOptions) *cobra.Command {
	var runID string
	cmd := &cobra.Command{Use: "delete", Short: "Delete a run and its artifacts", RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := opts.load(cmd)
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.DeleteRun(runID); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "deleted", runID)
		return nil
	}}
	cmd.Flags().StringVar(&runID, "run", "", "run id")
	_ = cmd.MarkFlagRequired("run")
	return cmd
}
