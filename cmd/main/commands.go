package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/CTAG07/cvforge/pkg/archive"
	"github.com/CTAG07/cvforge/pkg/cvtree"
	"github.com/CTAG07/cvforge/pkg/pdf"
	"github.com/CTAG07/cvforge/pkg/templating"
	"github.com/natefinch/atomic"
	"github.com/urfave/cli/v2"
)

// watchDebounce collapses the burst of events an editor save produces.
const watchDebounce = 150 * time.Millisecond

// setup loads the configuration and builds the logger for a command. Logs go
// to the app's error writer so command output on stdout stays clean.
func setup(c *cli.Context) (*Config, *slog.Logger, error) {
	config, err := LoadConfig(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	level := parseLogLevel(config.Server.LogLevel)
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))
	return config, logger, nil
}

func loadData(c *cli.Context) (*cvtree.Node, error) {
	path := c.String("data")
	if path == "" {
		return nil, fmt.Errorf("--data is required")
	}
	data, err := cvtree.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	return data, nil
}

// renderRequest is the parsed form of the render flags.
type renderRequest struct {
	templatePath string
	dataPath     string
	output       string
	format       string
	tags         []string
	iterate      bool
}

func requestFromFlags(c *cli.Context) (renderRequest, error) {
	req := renderRequest{
		templatePath: c.String("template"),
		dataPath:     c.String("data"),
		output:       c.String("output"),
		tags:         c.StringSlice("tags"),
		iterate:      c.Bool("iterate"),
	}
	if req.templatePath == "" || req.dataPath == "" {
		return req, fmt.Errorf("--template and --data are required")
	}
	if req.iterate && len(req.tags) > 0 {
		return req, fmt.Errorf("--iterate and --tags are mutually exclusive")
	}

	var err error
	if req.format, err = parseFormat(c.String("format")); err != nil {
		return req, err
	}

	if !c.IsSet("output") {
		if req.iterate {
			req.output = "output"
		} else {
			req.output = "output." + req.format
		}
	}
	return req, nil
}

// renderSession holds what a render needs across repeated runs in watch mode.
type renderSession struct {
	req      renderRequest
	name     string
	tm       *templating.TemplateManager
	pipeline *Pipeline
	logger   *slog.Logger
	close    func()
}

func newRenderSession(req renderRequest, config *Config, logger *slog.Logger) (*renderSession, error) {
	tm, err := templating.NewTemplateManager(logger, config.Templates, filepath.Dir(req.templatePath))
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	pipeline, closeFn, err := newPipeline(config, tm, logger)
	if err != nil {
		return nil, err
	}
	return &renderSession{
		req:      req,
		name:     filepath.Base(req.templatePath),
		tm:       tm,
		pipeline: pipeline,
		logger:   logger,
		close:    closeFn,
	}, nil
}

// newPipeline builds the converter and, when enabled, the archive. An archive
// that cannot be opened only disables archiving.
func newPipeline(config *Config, tm *templating.TemplateManager, logger *slog.Logger) (*Pipeline, func(), error) {
	converter, err := pdf.NewChromeConverter(*config.PDF)
	if err != nil {
		return nil, nil, err
	}
	converter.SetLogger(logger)

	var store *archive.Store
	closeFn := func() {}
	if config.Server.ArchiveEnabled {
		if err = os.MkdirAll(config.Server.DataDir, 0755); err != nil {
			logger.Warn("Failed to create data directory", "dir", config.Server.DataDir, "error", err)
		}
		store, closeFn, err = openArchive(config.Server.ArchiveDatabasePath, logger)
		if err != nil {
			logger.Warn("Render archive unavailable, continuing without it", "error", err)
			store, closeFn = nil, func() {}
		}
	}
	return NewPipeline(tm, converter, store, logger), closeFn, nil
}

// run loads the data and renders it once, writing every output file.
func (s *renderSession) run(ctx context.Context) error {
	data, err := cvtree.Load(s.req.dataPath)
	if err != nil {
		return fmt.Errorf("failed to load data: %w", err)
	}

	if s.req.iterate {
		n, err := s.renderEach(ctx, data)
		s.logger.Info("Rendered tag variants", "count", n, "dir", s.req.output)
		return err
	}

	out, err := s.pipeline.Render(ctx, data, s.name, s.req.tags, s.req.format)
	if err != nil {
		return err
	}
	if err = writeOutput(s.req.output, out); err != nil {
		return err
	}
	s.logger.Info("Output written", "path", s.req.output, "bytes", len(out))
	return nil
}

// renderEach renders once per tag found in data into <output>/<tag>.<format>.
// Tags that filter to nothing are skipped; other failures are collected.
func (s *renderSession) renderEach(ctx context.Context, data *cvtree.Node) (int, error) {
	tags := data.EveryTag()
	if len(tags) == 0 {
		s.logger.Warn("No tags found in data, nothing to iterate")
		return 0, nil
	}

	var errs []error
	count := 0
	for _, tag := range tags {
		out, err := s.pipeline.Render(ctx, data, s.name, []string{tag}, s.req.format)
		if errors.Is(err, ErrNoData) {
			s.logger.Debug("Skipping tag with no data", "tag", tag)
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("tag %s: %w", tag, err))
			continue
		}
		path := filepath.Join(s.req.output, tagFileName(tag)+"."+s.req.format)
		if err = writeOutput(path, out); err != nil {
			errs = append(errs, fmt.Errorf("tag %s: %w", tag, err))
			continue
		}
		count++
	}
	return count, errors.Join(errs...)
}

var fileNameReplacer = strings.NewReplacer("/", "_", "\\", "_", "..", "_")

func tagFileName(tag string) string {
	return fileNameReplacer.Replace(tag)
}

// writeOutput atomically replaces path with out, creating parent directories.
func writeOutput(path string, out []byte) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := atomic.WriteFile(path, bytes.NewReader(out)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func renderAction(c *cli.Context) error {
	req, err := requestFromFlags(c)
	if err != nil {
		return err
	}
	config, logger, err := setup(c)
	if err != nil {
		return err
	}

	session, err := newRenderSession(req, config, logger)
	if err != nil {
		return err
	}
	defer session.close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return session.run(ctx)
}

func watchAction(c *cli.Context) error {
	req, err := requestFromFlags(c)
	if err != nil {
		return err
	}
	config, logger, err := setup(c)
	if err != nil {
		return err
	}

	session, err := newRenderSession(req, config, logger)
	if err != nil {
		return err
	}
	defer session.close()

	templatePath, err := filepath.Abs(req.templatePath)
	if err != nil {
		return err
	}
	dataPath, err := filepath.Abs(req.dataPath)
	if err != nil {
		return err
	}

	// Watch the directories; editors often replace files rather than write them.
	dirs := []string{filepath.Dir(templatePath)}
	if d := filepath.Dir(dataPath); d != dirs[0] {
		dirs = append(dirs, d)
	}
	watcher, err := templating.NewWatcher(dirs...)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = session.run(ctx); err != nil {
		logger.Error("Render failed", "error", err)
	}
	logger.Info("Watching for changes", "template", templatePath, "data", dataPath)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopped watching")
			return nil
		case name := <-watcher.Changed():
			if name != templatePath && name != dataPath {
				continue
			}
			logger.Debug("Change detected", "file", name)
			pending = time.After(watchDebounce)
		case <-pending:
			pending = nil
			if err = session.tm.Refresh(); err != nil {
				logger.Error("Template refresh failed", "error", err)
				continue
			}
			if err = session.run(ctx); err != nil {
				logger.Error("Render failed", "error", err)
			}
		case err = <-watcher.Errors():
			logger.Warn("Watcher error", "error", err)
		}
	}
}

func filterAction(c *cli.Context) error {
	data, err := loadData(c)
	if err != nil {
		return err
	}
	out, err := cvtree.Marshal(cvtree.Filter(data, c.StringSlice("tags")))
	if err != nil {
		return fmt.Errorf("failed to encode filtered data: %w", err)
	}
	_, err = c.App.Writer.Write(out)
	return err
}

func tagsAction(c *cli.Context) error {
	data, err := loadData(c)
	if err != nil {
		return err
	}
	for _, tag := range data.EveryTag() {
		fmt.Fprintln(c.App.Writer, tag)
	}
	return nil
}

func serveAction(c *cli.Context) error {
	cm, err := NewConfigManager(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	config := cm.Get()

	level := parseLogLevel(config.Server.LogLevel)
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	cm.SetLogger(logger)

	addr := config.Server.ServerAddr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}
	dataPath := config.Server.DataFile
	if c.IsSet("data") {
		dataPath = c.String("data")
	}
	templateDir := config.Server.TemplateDir
	if c.IsSet("templates") {
		templateDir = c.String("templates")
	}

	tm, err := templating.NewTemplateManager(logger, config.Templates, templateDir)
	if err != nil {
		return fmt.Errorf("failed to create template manager: %w", err)
	}
	cm.SetTemplateManager(tm)

	pipeline, closeFn, err := newPipeline(&config, tm, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	if pipeline.store != nil && config.Server.ArchiveKeep > 0 {
		if _, err = pipeline.store.Prune(c.Context, config.Server.ArchiveKeep); err != nil {
			logger.Warn("Failed to prune render archive", "error", err)
		}
	}

	server := NewServer(cm, tm, pipeline, pipeline.store, dataPath, logger)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watcher, err := templating.NewWatcher(templateDir); err != nil {
		logger.Warn("Template hot reload disabled", "dir", templateDir, "error", err)
	} else {
		defer func() { _ = watcher.Close() }()
		go server.watchTemplates(ctx, watcher)
	}

	httpServer := &http.Server{Addr: addr, Handler: server}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting preview server", "address", addr, "data", dataPath, "templates", templateDir)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Signal received, shutting down.")
	case err = <-errCh:
		if err != nil {
			return fmt.Errorf("preview server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Preview server shutdown failed", "error", err)
	}
	logger.Info("cvforge has shut down.")
	return nil
}

func historyAction(c *cli.Context) error {
	config, logger, err := setup(c)
	if err != nil {
		return err
	}
	if !config.Server.ArchiveEnabled {
		return fmt.Errorf("the render archive is disabled in %s", c.String("config"))
	}

	store, closeFn, err := openArchive(config.Server.ArchiveDatabasePath, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	if c.IsSet("prune") {
		removed, err := store.Prune(c.Context, c.Int("prune"))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "pruned %d renders\n", removed)
	}

	renders, err := store.List(c.Context, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list renders: %w", err)
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTEMPLATE\tAUDIENCE\tFORMAT\tSIZE\tDIGEST")
	for _, r := range renders {
		aud := r.Audience
		if aud == "" {
			aud = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Template, aud, r.Format, r.Size, r.Digest[:12])
	}
	return tw.Flush()
}
