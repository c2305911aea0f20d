package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"nadlan-scraper/models"
	"nadlan-scraper/utils"
)

// SQLiteCheckpointStore keeps every snapshot as a row keyed by
// (entity_key, sequence). Writes go through a single store-wide lock.
type SQLiteCheckpointStore struct {
	db     *sqlx.DB
	logger *utils.Logger
	mu     sync.Mutex
}

type checkpointRow struct {
	EntityKey   string `db:"entity_key"`
	Sequence    int    `db:"sequence"`
	SavedAt     string `db:"saved_at"`
	RunID       string `db:"run_id"`
	RecordCount int    `db:"record_count"`
	Payload     []byte `db:"payload"`
}

// NewSQLiteCheckpointStore opens (or creates) the database at path and runs
// schema migrations.
func NewSQLiteCheckpointStore(path string, logger *utils.Logger) (*SQLiteCheckpointStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("sqlite: create dir: %w", err)
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteCheckpointStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteCheckpointStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			entity_key   TEXT    NOT NULL,
			sequence     INTEGER NOT NULL,
			saved_at     TEXT    NOT NULL,
			run_id       TEXT    NOT NULL DEFAULT '',
			record_count INTEGER NOT NULL,
			payload      BLOB    NOT NULL,
			PRIMARY KEY (entity_key, sequence)
		);
	`)
	return err
}

func (s *SQLiteCheckpointStore) LoadLatest(ctx context.Context, key string) (*models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var row checkpointRow
	err := s.db.GetContext(ctx, &row, `
		SELECT entity_key, sequence, saved_at, run_id, record_count, payload
		FROM checkpoints
		WHERE entity_key = ?
		ORDER BY sequence DESC
		LIMIT 1
	`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: load latest %q: %w", key, err)
	}

	snap, err := decodeSnapshot(row.Payload)
	if err != nil {
		return nil, err
	}
	snap.Sequence = row.Sequence
	snap.RunID = row.RunID
	if t, err := time.Parse(time.RFC3339Nano, row.SavedAt); err == nil {
		snap.SavedAt = t
	}

	s.logger.Info("[checkpoint] Loaded %q #%d: %d records, %d seen hashes", key, row.Sequence, len(snap.Records), len(snap.SeenHashes))
	return snap, nil
}

// Save inserts a new row. A duplicate sequence for the same key is an error,
// never an overwrite.
func (s *SQLiteCheckpointStore) Save(ctx context.Context, key string, snap models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now()
	}
	payload, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO checkpoints (entity_key, sequence, saved_at, run_id, record_count, payload)
		VALUES (:entity_key, :sequence, :saved_at, :run_id, :record_count, :payload)
	`, checkpointRow{
		EntityKey:   key,
		Sequence:    snap.Sequence,
		SavedAt:     snap.SavedAt.UTC().Format(time.RFC3339Nano),
		RunID:       snap.RunID,
		RecordCount: len(snap.Records),
		Payload:     payload,
	})
	if err != nil {
		return fmt.Errorf("sqlite: save %q #%d: %w", key, snap.Sequence, err)
	}

	s.logger.Info("[checkpoint] Saved %q #%d with %d records", key, snap.Sequence, len(snap.Records))
	return nil
}

func (s *SQLiteCheckpointStore) Close() error {
	return s.db.Close()
}
