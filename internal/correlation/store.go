// Package correlation persists the link from a relayed source message
// to its mirrored destination message, so later edits can be re-applied.
package correlation

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS correlations (
	source_chat_id INTEGER NOT NULL,
	source_message_id INTEGER NOT NULL,
	dest_message_id INTEGER NOT NULL,
	dest_topic_id INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (source_chat_id, source_message_id)
);
CREATE INDEX IF NOT EXISTS idx_correlations_created ON correlations(created_at);
`

// Record links one relayed source message to its destination copy.
// The key is composite: the transport only guarantees message-id
// uniqueness per chat.
type Record struct {
	SourceChatID    int64
	SourceMessageID int64
	DestMessageID   int64
	DestTopicID     int64
	CreatedAt       time.Time
}

// Store is the durable correlation store.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the correlation database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open correlation db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores a record. A second Put for the same source message is a
// no-op, which keeps relaying idempotent per message id.
func (s *Store) Put(rec Record) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO correlations (source_chat_id, source_message_id, dest_message_id, dest_topic_id, created_at)
		VALUES (?, ?, ?, ?, datetime('now'))`,
		rec.SourceChatID, rec.SourceMessageID, rec.DestMessageID, rec.DestTopicID,
	)
	if err != nil {
		return fmt.Errorf("put correlation: %w", err)
	}
	return nil
}

// Get returns the record for a source message, or (nil, nil) when none
// exists — a miss is not an error.
func (s *Store) Get(sourceChatID, sourceMessageID int64) (*Record, error) {
	var rec Record
	err := s.db.QueryRow(`
		SELECT source_chat_id, source_message_id, dest_message_id, dest_topic_id, created_at
		FROM correlations WHERE source_chat_id = ? AND source_message_id = ?`,
		sourceChatID, sourceMessageID,
	).Scan(&rec.SourceChatID, &rec.SourceMessageID, &rec.DestMessageID, &rec.DestTopicID, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get correlation: %w", err)
	}
	return &rec, nil
}

// PruneOlderThan deletes records past the retention horizon and returns
// how many were removed.
func (s *Store) PruneOlderThan(retention time.Duration) (int64, error) {
	res, err := s.db.Exec(
		`DELETE FROM correlations WHERE created_at < datetime('now', ?)`,
		fmt.Sprintf("-%d seconds", int64(retention.Seconds())),
	)
	if err != nil {
		return 0, fmt.Errorf("prune correlations: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Count returns the number of stored records.
func (s *Store) Count() (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM correlations`).Scan(&n)
	return n, err
}

// RunPurge prunes on a fixed interval until ctx is cancelled.
// Run as a goroutine.
func (s *Store) RunPurge(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PruneOlderThan(retention)
			if err != nil {
				slog.Error("Correlation purge failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("Correlation purge", "removed", n)
			}
		}
	}
}
