// Package store persists episodes, their chapters and uploaded documents in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loqalabs/loqa-narrate/internal/config"
	"github.com/loqalabs/loqa-narrate/internal/episode"
	_ "modernc.org/sqlite"
)

// Fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var ErrNotFound = errors.New("not found")

// Document is source text stored for later generation requests.
type Document struct {
	ID        string
	Title     string
	Text      string
	CreatedAt time.Time
}

// Store wraps a SQLite-backed episode repository.
type Store struct {
	db    *sql.DB
	cfg   config.StoreConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the store according to config.
func Open(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log.With(slog.String("component", "store")), clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	if cfg.VacuumOnStart {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			s.log.Warn("store vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		s.log.Warn("store prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS documents (
    document_id TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL,
    created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS episodes (
    episode_id TEXT PRIMARY KEY,
    record_id TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    body TEXT NOT NULL,
    word_count INTEGER NOT NULL,
    duration_seconds INTEGER NOT NULL,
    source_type TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS chapters (
    episode_id TEXT NOT NULL,
    chapter_index INTEGER NOT NULL,
    title TEXT NOT NULL,
    start_seconds INTEGER NOT NULL,
    duration_seconds INTEGER NOT NULL,
    body TEXT NOT NULL,
    artifact TEXT NOT NULL DEFAULT '',
    PRIMARY KEY(episode_id, chapter_index),
    FOREIGN KEY(episode_id) REFERENCES episodes(episode_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_episodes_created ON episodes(created_at);
CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveEpisode upserts ep and its chapters and returns the record id. The
// record id is stable across re-generations of the same episode.
func (s *Store) SaveEpisode(ctx context.Context, ep episode.Episode) (recordID string, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = tx.QueryRowContext(ctx, `SELECT record_id FROM episodes WHERE episode_id = ?`, ep.ID).Scan(&recordID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		recordID, err = uuid.NewString(), nil
	case err != nil:
		return "", fmt.Errorf("lookup episode %s: %w", ep.ID, err)
	}

	created := ep.CreatedAt
	if created.IsZero() {
		created = s.clock()
	}
	now := formatTime(s.clock())
	_, err = tx.ExecContext(ctx,
		`INSERT INTO episodes(episode_id, record_id, title, body, word_count, duration_seconds, source_type, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(episode_id) DO UPDATE SET
		   title=excluded.title,
		   word_count=excluded.word_count,
		   duration_seconds=excluded.duration_seconds,
		   source_type=excluded.source_type,
		   updated_at=excluded.updated_at`,
		ep.ID, recordID, ep.Title, ep.Text, ep.WordCount, ep.DurationSeconds, string(ep.Source), formatTime(created), now)
	if err != nil {
		return "", fmt.Errorf("upsert episode %s: %w", ep.ID, err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM chapters WHERE episode_id = ?`, ep.ID); err != nil {
		return "", fmt.Errorf("clear chapters: %w", err)
	}
	for _, ch := range ep.Chapters {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chapters(episode_id, chapter_index, title, start_seconds, duration_seconds, body, artifact)
			 VALUES(?, ?, ?, ?, ?, ?, ?)`,
			ep.ID, ch.Index, ch.Title, ch.StartSeconds, ch.DurationSeconds, ch.Text, ch.Artifact)
		if err != nil {
			return "", fmt.Errorf("insert chapter %d: %w", ch.Index, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return recordID, nil
}

// Episode loads an episode and its chapters by episode id.
func (s *Store) Episode(ctx context.Context, id string) (episode.Episode, error) {
	var (
		ep      episode.Episode
		source  string
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT episode_id, record_id, title, body, word_count, duration_seconds, source_type, created_at
		 FROM episodes WHERE episode_id = ?`, id).
		Scan(&ep.ID, &ep.PersistedID, &ep.Title, &ep.Text, &ep.WordCount, &ep.DurationSeconds, &source, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return episode.Episode{}, fmt.Errorf("episode %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return episode.Episode{}, err
	}
	ep.Source = episode.SourceType(source)
	ep.CreatedAt = parseTime(created)

	rows, err := s.db.QueryContext(ctx,
		`SELECT chapter_index, title, start_seconds, duration_seconds, body, artifact
		 FROM chapters WHERE episode_id = ? ORDER BY chapter_index ASC`, id)
	if err != nil {
		return episode.Episode{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var ch episode.Chapter
		if err := rows.Scan(&ch.Index, &ch.Title, &ch.StartSeconds, &ch.DurationSeconds, &ch.Text, &ch.Artifact); err != nil {
			return episode.Episode{}, err
		}
		ep.Chapters = append(ep.Chapters, ch)
	}
	return ep, rows.Err()
}

// PutDocument stores source text and returns its generated id.
func (s *Store) PutDocument(ctx context.Context, title, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("document text must not be empty")
	}
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents(document_id, title, body, created_at) VALUES(?, ?, ?, ?)`,
		id, title, text, formatTime(s.clock()))
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

func (s *Store) LoadDocument(ctx context.Context, id string) (Document, error) {
	var (
		doc     Document
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT document_id, title, body, created_at FROM documents WHERE document_id = ?`, id).
		Scan(&doc.ID, &doc.Title, &doc.Text, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Document{}, err
	}
	doc.CreatedAt = parseTime(created)
	return doc, nil
}

// Prune applies configured retention (called on startup and can be scheduled).
func (s *Store) Prune(ctx context.Context) (err error) {
	if s.cfg.RetentionDays <= 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	cutoff := formatTime(s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour))
	if _, err = tx.ExecContext(ctx, `DELETE FROM episodes WHERE created_at < ?`, cutoff); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM documents WHERE created_at < ?`, cutoff); err != nil {
		return err
	}
	return tx.Commit()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
