package storage

import (
	"context"

	"nadlan-scraper/models"
)

// CheckpointStore persists resumable per-entity snapshots.
// Implementations must be safe for concurrent use across entity keys.
type CheckpointStore interface {
	// LoadLatest returns the snapshot with the highest sequence number stored
	// under entityKey, or nil when there is none.
	LoadLatest(ctx context.Context, entityKey string) (*models.Snapshot, error)
	// Save writes a new snapshot atomically. Earlier snapshots are kept.
	Save(ctx context.Context, entityKey string, snap models.Snapshot) error
	Close() error
}

// RecordWriter is the interface any export backend must satisfy.
type RecordWriter interface {
	Write(ctx context.Context, entity models.Entity, records []models.TransactionRecord) error
	Close() error
}
