// Package cache persists the last known feed snapshot per topic in a
// SQLite database, so a restart can render the previous conversation
// before the first fetch lands. It uses modernc.org/sqlite (pure Go, no
// CGO) with WAL mode.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"feedwire/pkg/feed"

	_ "modernc.org/sqlite" // SQLite driver registration
)

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// Option configures optional Cache behavior.
type Option func(*Cache)

// WithLogger injects a structured logger into the Cache.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// Cache is a SQLite-backed snapshot store keyed by topic.
type Cache struct {
	cfg    Config
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the database at cfg.Path and migrates
// the schema. The caller must Close the cache when done.
//
// The database is opened with a 5 s busy timeout and a single connection
// (SQLite serialises writes).
func Open(cfg Config, opts ...Option) (*Cache, error) {
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("cache: path is required")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("cache: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", cfg.Path, err)
	}

	// SQLite handles one writer at a time; limit pool to 1 connection
	// so PRAGMAs apply consistently.
	db.SetMaxOpenConns(1)

	ctx := context.TODO()

	if cfg.walEnabled() {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("cache: enable WAL: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	c := &Cache{
		cfg:    cfg,
		db:     db,
		logger: slog.New(nopHandler{}),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Save replaces the cached snapshot for topic in a single transaction.
func (c *Cache) Save(ctx context.Context, topic string, snap feed.Snapshot) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE topic = ?", topic); err != nil {
		return fmt.Errorf("cache: clear topic %s: %w", topic, err)
	}

	for _, m := range snap {
		attachment := ""
		if m.Attachment != nil {
			b, err := json.Marshal(m.Attachment)
			if err != nil {
				return fmt.Errorf("cache: encode attachment: %w", err)
			}
			attachment = string(b)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO messages (topic, id, sender_id, sender_name, content, kind, attachment, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			topic, m.ID, m.SenderID, m.SenderName, m.Content, string(m.Kind), attachment, m.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("cache: insert message %s: %w", m.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO topics (topic, updated_at) VALUES (?, ?)",
		topic, c.now().Unix(),
	); err != nil {
		return fmt.Errorf("cache: touch topic %s: %w", topic, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cache: commit: %w", err)
	}
	return nil
}

// Load returns the cached snapshot for topic. The second return value is
// false when no snapshot has been cached for the topic.
func (c *Cache) Load(ctx context.Context, topic string) (feed.Snapshot, bool, error) {
	var updated int64
	err := c.db.QueryRowContext(ctx, "SELECT updated_at FROM topics WHERE topic = ?", topic).Scan(&updated)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: read topic %s: %w", topic, err)
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT id, sender_id, sender_name, content, kind, attachment, created_at
		 FROM messages WHERE topic = ? ORDER BY created_at, id`,
		topic,
	)
	if err != nil {
		return nil, false, fmt.Errorf("cache: query topic %s: %w", topic, err)
	}
	defer rows.Close()

	var snap feed.Snapshot
	for rows.Next() {
		var m feed.Message
		var kind, attachment string
		if err := rows.Scan(&m.ID, &m.SenderID, &m.SenderName, &m.Content, &kind, &attachment, &m.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("cache: scan message: %w", err)
		}
		m.Kind = feed.Kind(kind)
		if attachment != "" {
			var a feed.Attachment
			if err := json.Unmarshal([]byte(attachment), &a); err != nil {
				return nil, false, fmt.Errorf("cache: decode attachment: %w", err)
			}
			m.Attachment = &a
		}
		snap = append(snap, m)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("cache: iterate topic %s: %w", topic, err)
	}
	return snap, true, nil
}

// Sweep removes topics (and their messages) that have not been refreshed
// within the configured retention window. It returns the number of topics
// removed.
func (c *Cache) Sweep(ctx context.Context) (int64, error) {
	cutoff := c.now().Add(-c.cfg.Retention).Unix()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("cache: begin sweep: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM messages WHERE topic IN (SELECT topic FROM topics WHERE updated_at < ?)",
		cutoff,
	); err != nil {
		return 0, fmt.Errorf("cache: sweep messages: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM topics WHERE updated_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("cache: sweep topics: %w", err)
	}
	removed, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("cache: commit sweep: %w", err)
	}

	if removed > 0 {
		c.logger.Info("cache sweep removed stale topics", "removed", removed)
	}
	return removed, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
