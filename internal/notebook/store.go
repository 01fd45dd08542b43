package notebook

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Najmul343/talk2write/internal/config"
	_ "modernc.org/sqlite"
)

// Segment is one finalized transcription result. Immutable once appended;
// removed only by DeleteByID or ClearAll.
type Segment struct {
	ID        string
	Text      string
	Source    string // recording or upload
	CreatedAt time.Time
}

// Store keeps the ordered segment timeline and the single optional summary.
type Store struct {
	db    *sql.DB
	cfg   config.NotebookConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the notebook store according to config. Ephemeral mode
// uses an in-memory database so the rest of the code has one path.
func Open(ctx context.Context, cfg config.NotebookConfig, log *slog.Logger) (*Store, error) {
	var dsn string
	if cfg.RetentionMode == "ephemeral" {
		dsn = "file::memory:?_pragma=foreign_keys(ON)"
	} else {
		dir := filepath.Dir(cfg.Path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps the in-memory database alive and matches
	// the single-writer access pattern.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("notebook vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("notebook prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS segments (
    id TEXT PRIMARY KEY,
    text TEXT NOT NULL,
    source TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS summary (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    text TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append adds a segment to the end of the timeline. The id must be unique;
// generation is the caller's responsibility.
func (s *Store) Append(ctx context.Context, seg Segment) error {
	if seg.ID == "" {
		return errors.New("segment id must not be empty")
	}
	if seg.CreatedAt.IsZero() {
		seg.CreatedAt = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO segments(id, text, source, created_at) VALUES(?, ?, ?, ?)`,
		seg.ID, seg.Text, seg.Source, seg.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append segment: %w", err)
	}
	if err := s.Prune(ctx); err != nil {
		s.log.Warn("notebook prune failed", slog.String("error", err.Error()))
	}
	return nil
}

// ListSegments returns all segments in creation order.
func (s *Store) ListSegments(ctx context.Context) ([]Segment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, source, created_at FROM segments ORDER BY rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []Segment
	for rows.Next() {
		var seg Segment
		var created string
		if err := rows.Scan(&seg.ID, &seg.Text, &seg.Source, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			seg.CreatedAt = ts
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// DeleteByID removes at most one segment. Absent ids are a no-op, not an
// error.
func (s *Store) DeleteByID(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM segments WHERE id = ?`, id)
	return err
}

// SetSummary replaces any prior summary.
func (s *Store) SetSummary(ctx context.Context, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO summary(id, text, updated_at) VALUES(1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET text=excluded.text, updated_at=excluded.updated_at`,
		text, s.clock().UTC().Format(time.RFC3339Nano))
	return err
}

// Summary returns the live summary, if any.
func (s *Store) Summary(ctx context.Context) (string, bool, error) {
	var text string
	err := s.db.QueryRowContext(ctx, `SELECT text FROM summary WHERE id = 1`).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

// ClearSummary dismisses the summary.
func (s *Store) ClearSummary(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM summary WHERE id = 1`)
	return err
}

// ClearAll empties segments and summary in one transaction.
func (s *Store) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM segments`); err != nil {
		tx.Rollback()
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM summary`); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Count reports the number of live segments.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM segments`).Scan(&n)
	return n, err
}

// Prune drops the oldest segments beyond the configured cap.
func (s *Store) Prune(ctx context.Context) error {
	if s.cfg.MaxSegments <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM segments WHERE rowid IN (
		SELECT rowid FROM segments ORDER BY rowid DESC LIMIT -1 OFFSET ?
	)`, s.cfg.MaxSegments)
	return err
}
