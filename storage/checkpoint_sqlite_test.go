package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nadlan-scraper/models"
	"nadlan-scraper/utils"
)

func newSQLiteStore(t *testing.T) *SQLiteCheckpointStore {
	t.Helper()
	s, err := NewSQLiteCheckpointStore(filepath.Join(t.TempDir(), "checkpoints.db"), utils.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	snap, err := s.LoadLatest(ctx, "Haifa")
	require.NoError(t, err)
	assert.Nil(t, snap)

	recs := sampleRecords()
	require.NoError(t, s.Save(ctx, "Haifa", models.Snapshot{Records: recs[:1], SeenHashes: models.HashRecords(recs[:1]), Sequence: 1}))
	require.NoError(t, s.Save(ctx, "Haifa", models.Snapshot{Records: recs, SeenHashes: models.HashRecords(recs), Sequence: 2, RunID: "r"}))
	require.NoError(t, s.Save(ctx, "Other", models.Snapshot{Sequence: 9}))

	snap, err = s.LoadLatest(ctx, "Haifa")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, recs, snap.Records)
	assert.Equal(t, models.HashRecords(recs), snap.SeenHashes)
	assert.Equal(t, 2, snap.Sequence)
	assert.Equal(t, "r", snap.RunID)
	assert.False(t, snap.SavedAt.IsZero())
}

func TestSQLiteStoreRefusesOverwrite(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "A", models.Snapshot{Records: sampleRecords(), Sequence: 1}))
	assert.Error(t, s.Save(ctx, "A", models.Snapshot{Sequence: 1}))

	snap, err := s.LoadLatest(ctx, "A")
	require.NoError(t, err)
	assert.Len(t, snap.Records, 2)
}
