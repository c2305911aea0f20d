package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"nadlan-scraper/models"
)

// legacyTimestamp is the layout older checkpoint files used for "timestamp".
const legacyTimestamp = "20060102_150405"

// snapshotFile is the on-disk checkpoint shape.
type snapshotFile struct {
	Data        []models.TransactionRecord `json:"data"`
	SeenHashes  []string                   `json:"seen_hashes"`
	Timestamp   string                     `json:"timestamp"`
	RecordCount int                        `json:"record_count"`
	Sequence    int                        `json:"sequence,omitempty"`
	RunID       string                     `json:"run_id,omitempty"`
}

func encodeSnapshot(snap models.Snapshot) ([]byte, error) {
	hashes := make([]string, 0, len(snap.SeenHashes))
	for h := range snap.SeenHashes {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)

	records := snap.Records
	if records == nil {
		records = []models.TransactionRecord{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	err := enc.Encode(snapshotFile{
		Data:        records,
		SeenHashes:  hashes,
		Timestamp:   snap.SavedAt.UTC().Format(time.RFC3339),
		RecordCount: len(records),
		Sequence:    snap.Sequence,
		RunID:       snap.RunID,
	})
	if err != nil {
		return nil, fmt.Errorf("checkpoint: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeSnapshot accepts both a bare record list (legacy) and the full
// object form. Hashes of the stored records are always part of the result,
// so SeenHashes covers every record even for legacy payloads.
func decodeSnapshot(b []byte) (*models.Snapshot, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("checkpoint: empty payload")
	}

	if b[0] == '[' {
		var records []models.TransactionRecord
		if err := json.Unmarshal(b, &records); err != nil {
			return nil, fmt.Errorf("checkpoint: decode legacy list: %w", err)
		}
		return &models.Snapshot{
			Records:    records,
			SeenHashes: models.HashRecords(records),
		}, nil
	}

	var f snapshotFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("checkpoint: decode: %w", err)
	}

	seen := models.HashRecords(f.Data)
	for _, h := range f.SeenHashes {
		seen[h] = struct{}{}
	}

	return &models.Snapshot{
		Records:    f.Data,
		SeenHashes: seen,
		Sequence:   f.Sequence,
		SavedAt:    parseTimestamp(f.Timestamp),
		RunID:      f.RunID,
	}, nil
}

func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.ParseInLocation(legacyTimestamp, s, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
