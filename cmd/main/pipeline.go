package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/CTAG07/cvforge/pkg/archive"
	"github.com/CTAG07/cvforge/pkg/cvtree"
	"github.com/CTAG07/cvforge/pkg/pdf"
	"github.com/CTAG07/cvforge/pkg/templating"
)

const (
	formatHTML = "html"
	formatPDF  = "pdf"
)

// ErrNoData is returned when filtering leaves nothing to render.
var ErrNoData = errors.New("no data found for tags")

// parseFormat validates an output format name.
func parseFormat(format string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case formatHTML, formatPDF:
		return f, nil
	}
	return "", fmt.Errorf("invalid format: %s (use 'pdf' or 'html')", format)
}

// audience is the archive key for a set of requested tags.
func audience(tags []string) string {
	return strings.Join(tags, ",")
}

// Pipeline filters a value tree, renders it through a template and, for PDF
// output, converts the HTML. Every successful render is recorded in the
// archive when one is attached.
type Pipeline struct {
	tm        *templating.TemplateManager
	converter pdf.Converter
	store     *archive.Store
	logger    *slog.Logger
}

// NewPipeline creates a Pipeline. store may be nil to disable archiving.
func NewPipeline(tm *templating.TemplateManager, converter pdf.Converter, store *archive.Store, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		tm:        tm,
		converter: converter,
		store:     store,
		logger:    logger,
	}
}

// Render produces the output for one template, tag set and format.
func (p *Pipeline) Render(ctx context.Context, data *cvtree.Node, template string, tags []string, format string) ([]byte, error) {
	filtered := cvtree.Filter(data, tags)
	if len(tags) > 0 && filtered.IsEmpty() {
		return nil, fmt.Errorf("%w: %v", ErrNoData, tags)
	}

	var buf bytes.Buffer
	if err := p.tm.Execute(&buf, template, filtered); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	out := buf.Bytes()
	if format == formatPDF {
		var err error
		if out, err = p.converter.Convert(ctx, buf.String()); err != nil {
			return nil, err
		}
	}

	p.logger.Debug("Rendered", "template", template, "tags", tags, "format", format, "bytes", len(out))
	if p.store != nil {
		if _, err := p.store.Record(ctx, audience(tags), template, format, out); err != nil {
			p.logger.Warn("Failed to archive render", "template", template, "error", err)
		}
	}
	return out, nil
}

// openArchive opens the archive database, creating the schema if needed.
// The returned close function releases both the store and the database.
func openArchive(dataSource string, logger *slog.Logger) (*archive.Store, func(), error) {
	db, err := initDB(dataSource)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open archive database: %w", err)
	}
	if err = archive.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	store, err := archive.NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to prepare archive statements: %w", err)
	}
	store.SetLogger(logger)

	return store, func() {
		store.Close()
		closeDB(db, logger)
	}, nil
}

func closeDB(db *sql.DB, logger *slog.Logger) {
	if err := db.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	}
}
