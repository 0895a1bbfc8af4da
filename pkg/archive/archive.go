// Package archive keeps a history of rendered CVs in an SQLite database, so a
// previous render for an audience can be listed, compared by digest, and
// served again without re-rendering.
package archive

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ErrNotFound is returned when no stored render matches a lookup.
var ErrNotFound = errors.New("render not found")

// Render is one archived output.
type Render struct {
	ID        int64     `json:"id"`
	Audience  string    `json:"audience"`
	Template  string    `json:"template"`
	Format    string    `json:"format"`
	Digest    string    `json:"digest"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	Output    []byte    `json:"-"`
}

// Digest returns the hex encoded SHA-256 of output.
func Digest(output []byte) string {
	sum := sha256.Sum256(output)
	return hex.EncodeToString(sum[:])
}

// SetupSchema creates the archive table and its index if they do not exist.
func SetupSchema(db *sql.DB) error {
	const (
		schemaRenders = `
CREATE TABLE IF NOT EXISTS renders (
    id INTEGER PRIMARY KEY,
    audience TEXT NOT NULL,
    template TEXT NOT NULL,
    format TEXT NOT NULL,
    digest TEXT NOT NULL,
    size INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    output BLOB NOT NULL
);
`
		schemaIndex = `
CREATE INDEX IF NOT EXISTS renders_lookup ON renders (audience, template, format, created_at);
`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaRenders); err != nil {
		return fmt.Errorf("could not create schema: %w", err)
	}
	if _, err = tx.Exec(schemaIndex); err != nil {
		return fmt.Errorf("could not create index: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// Store reads and writes archived renders through prepared statements.
type Store struct {
	db         *sql.DB
	stmtInsert *sql.Stmt
	stmtGet    *sql.Stmt
	stmtList   *sql.Stmt
	stmtLatest *sql.Stmt
	stmtPrune  *sql.Stmt
	stmtCount  *sql.Stmt
	logger     *slog.Logger
	now        func() time.Time
}

// NewStore prepares all statements against db. SetupSchema must have been run.
func NewStore(db *sql.DB) (*Store, error) {
	stmtInsert, err := db.Prepare(`INSERT INTO renders (audience, template, format, digest, size, created_at, output) VALUES (?, ?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return nil, err
	}

	stmtGet, err := db.Prepare(`SELECT id, audience, template, format, digest, size, created_at, output FROM renders WHERE id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtList, err := db.Prepare(`SELECT id, audience, template, format, digest, size, created_at FROM renders ORDER BY created_at DESC, id DESC LIMIT ?;`)
	if err != nil {
		return nil, err
	}

	stmtLatest, err := db.Prepare(`SELECT id, audience, template, format, digest, size, created_at, output FROM renders WHERE audience = ? AND template = ? AND format = ? ORDER BY created_at DESC, id DESC LIMIT 1;`)
	if err != nil {
		return nil, err
	}

	stmtPrune, err := db.Prepare(`DELETE FROM renders WHERE id NOT IN (SELECT id FROM renders ORDER BY created_at DESC, id DESC LIMIT ?);`)
	if err != nil {
		return nil, err
	}

	stmtCount, err := db.Prepare(`SELECT COUNT(*) FROM renders;`)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:         db,
		stmtInsert: stmtInsert,
		stmtGet:    stmtGet,
		stmtList:   stmtList,
		stmtLatest: stmtLatest,
		stmtPrune:  stmtPrune,
		stmtCount:  stmtCount,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:        time.Now,
	}, nil
}

// Close releases all prepared SQL statements held by the Store. The database
// itself is left open.
func (s *Store) Close() {
	_ = s.stmtInsert.Close()
	_ = s.stmtGet.Close()
	_ = s.stmtList.Close()
	_ = s.stmtLatest.Close()
	_ = s.stmtPrune.Close()
	_ = s.stmtCount.Close()
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Record stores output and returns the archived entry with its ID, digest,
// size and timestamp filled in.
func (s *Store) Record(ctx context.Context, audience, template, format string, output []byte) (Render, error) {
	if output == nil {
		output = []byte{}
	}
	r := Render{
		Audience:  audience,
		Template:  template,
		Format:    format,
		Digest:    Digest(output),
		Size:      len(output),
		CreatedAt: s.now().UTC(),
		Output:    output,
	}

	res, err := s.stmtInsert.ExecContext(ctx, r.Audience, r.Template, r.Format, r.Digest, r.Size, r.CreatedAt.UnixNano(), r.Output)
	if err != nil {
		return Render{}, fmt.Errorf("could not record render: %w", err)
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return Render{}, fmt.Errorf("could not read render id: %w", err)
	}

	s.logger.Debug("Recorded render", "id", r.ID, "audience", audience, "template", template, "format", format, "size", r.Size)
	return r, nil
}

// Get returns the render with the given ID, including its output.
func (s *Store) Get(ctx context.Context, id int64) (Render, error) {
	r, err := scanRender(s.stmtGet.QueryRowContext(ctx, id), true)
	if errors.Is(err, sql.ErrNoRows) {
		return Render{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return r, err
}

// Latest returns the newest render for an audience, template and format.
func (s *Store) Latest(ctx context.Context, audience, template, format string) (Render, error) {
	r, err := scanRender(s.stmtLatest.QueryRowContext(ctx, audience, template, format), true)
	if errors.Is(err, sql.ErrNoRows) {
		return Render{}, fmt.Errorf("%w: %s/%s/%s", ErrNotFound, audience, template, format)
	}
	return r, err
}

// List returns up to limit renders, newest first, without their output.
func (s *Store) List(ctx context.Context, limit int) ([]Render, error) {
	rows, err := s.stmtList.QueryContext(ctx, limit)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var renders []Render
	for rows.Next() {
		r, err := scanRender(rows, false)
		if err != nil {
			return nil, err
		}
		renders = append(renders, r)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return renders, nil
}

// Count returns the number of stored renders.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.stmtCount.QueryRowContext(ctx).Scan(&n)
	return n, err
}

// Prune deletes all but the newest keep renders and returns how many were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep must not be negative, got %d", keep)
	}
	res, err := s.stmtPrune.ExecContext(ctx, keep)
	if err != nil {
		return 0, fmt.Errorf("could not prune renders: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	s.logger.Info("Pruned render archive", "removed", n, "kept", keep)
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRender(row scanner, withOutput bool) (Render, error) {
	var r Render
	var created int64
	dest := []any{&r.ID, &r.Audience, &r.Template, &r.Format, &r.Digest, &r.Size, &created}
	if withOutput {
		dest = append(dest, &r.Output)
	}
	if err := row.Scan(dest...); err != nil {
		return Render{}, err
	}
	r.CreatedAt = time.Unix(0, created).UTC()
	return r, nil
}
