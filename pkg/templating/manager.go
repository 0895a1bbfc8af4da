package templating

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/CTAG07/cvforge/pkg/cvtree"
	"github.com/yuin/goldmark"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
)

// ErrTemplateNotFound is returned when executing a template name the manager
// has not loaded.
var ErrTemplateNotFound = errors.New("template not found")

const (
	htmlPattern     = "*.html"
	markdownPattern = "*.md"
)

// TemplateManager is the central controller for the templating engine.
// It loads every template in its directory, keeps the parsed markup in memory
// and renders it against value trees on demand.
// All methods are concurrent-safe.
type TemplateManager struct {
	logger        *slog.Logger
	config        *TemplateConfig
	renderer      *Renderer
	markdown      goldmark.Markdown
	templates     map[string]*html.Node
	templateNames []string
	templateDir   string
	mu            sync.RWMutex
}

// NewTemplateManager creates, initializes, and returns a new TemplateManager
// for the templates in templateDir. A nil config uses DefaultConfig. It
// performs an initial Refresh to load all templates.
func NewTemplateManager(logger *slog.Logger, config *TemplateConfig, templateDir string) (*TemplateManager, error) {
	if config == nil {
		config = DefaultConfig()
	}

	tm := &TemplateManager{
		logger:      logger,
		templateDir: templateDir,
		markdown:    goldmark.New(goldmark.WithRendererOptions(gmhtml.WithUnsafe())),
	}
	tm.applyConfig(config)

	if err := tm.Refresh(); err != nil {
		return nil, err
	}

	logger.Info("Template manager initialized", "dir", templateDir)
	return tm, nil
}

func (tm *TemplateManager) applyConfig(config *TemplateConfig) {
	tm.config = config
	tm.renderer = NewRenderer(*config)
	tm.renderer.SetLogger(tm.logger)
}

// SetConfig applies a new configuration to the TemplateManager. Directive
// names take effect on the next render; a change to MarkdownEnabled takes
// effect on the next Refresh.
func (tm *TemplateManager) SetConfig(config *TemplateConfig) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.applyConfig(config)
}

// Refresh reloads all templates from the filesystem. A template that fails to
// parse aborts the refresh and keeps the previously loaded set.
func (tm *TemplateManager) Refresh() error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	patterns := []string{htmlPattern}
	if tm.config.MarkdownEnabled {
		patterns = append(patterns, markdownPattern)
	}

	tm.logger.Info("Loading template files...")
	templates := make(map[string]*html.Node)
	for _, pattern := range patterns {
		files, err := filepath.Glob(filepath.Join(tm.templateDir, pattern))
		if err != nil {
			tm.logger.Error("failed to list template files", "pattern", pattern, "error", err)
			return err
		}
		for _, path := range files {
			root, err := tm.parseFile(path)
			if err != nil {
				tm.logger.Error("failed to parse template file", "path", path, "error", err)
				return err
			}
			templates[filepath.Base(path)] = root
		}
	}

	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	slices.Sort(names)

	if len(names) == 0 {
		tm.logger.Warn("No template files found", "dir", tm.templateDir)
	}

	tm.templates = templates
	tm.templateNames = names
	tm.logger.Info("Loaded template files", "count", len(names))
	return nil
}

// parseFile reads a template file. Markdown files are converted to HTML first.
func (tm *TemplateManager) parseFile(path string) (*html.Node, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".md") {
		if src, err = tm.convertMarkdown(src); err != nil {
			return nil, fmt.Errorf("failed to convert markdown %s: %w", path, err)
		}
	}
	return parseMarkup(bytes.NewReader(src))
}

func (tm *TemplateManager) convertMarkdown(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := tm.markdown.Convert(src, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Execute renders the named template against data, writing the output to w.
func (tm *TemplateManager) Execute(w io.Writer, name string, data *cvtree.Node) error {
	tm.mu.RLock()
	root, ok := tm.templates[name]
	renderer := tm.renderer
	tm.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return html.Render(w, renderer.Render(root, data))
}

// ExecuteTemplateString parses and renders a raw template string. This is
// ideal for testing or previewing templates without saving them to disk.
func (tm *TemplateManager) ExecuteTemplateString(w io.Writer, content string, data *cvtree.Node) error {
	tm.mu.RLock()
	renderer := tm.renderer
	tm.mu.RUnlock()

	root, err := parseMarkup(strings.NewReader(content))
	if err != nil {
		return fmt.Errorf("failed to parse string template: %w", err)
	}
	return html.Render(w, renderer.Render(root, data))
}

// GetConfig returns a copy of the current configuration.
func (tm *TemplateManager) GetConfig() TemplateConfig {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return *tm.config
}

// GetTemplateNames returns the sorted names of the loaded templates.
func (tm *TemplateManager) GetTemplateNames() []string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return slices.Clone(tm.templateNames)
}

// GetTemplateDir returns the template dir that the TemplateManager uses.
func (tm *TemplateManager) GetTemplateDir() string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.templateDir
}
