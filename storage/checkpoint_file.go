package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"nadlan-scraper/models"
	"nadlan-scraper/utils"
)

// checkpointSuffix matches what follows "checkpoint_<key>_" in a file name:
// the save time and the sequence number.
var checkpointSuffix = regexp.MustCompile(`^(\d{8}_\d{6})_(\d+)\.json$`)

// FileCheckpointStore keeps one JSON file per save under a directory.
// Files are named checkpoint_<key>_<YYYYMMDD_HHMMSS>_<seq>.json; the latest
// snapshot is the one with the highest seq, ties going to the greater name.
type FileCheckpointStore struct {
	dir    string
	logger *utils.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileCheckpointStore creates the directory if needed.
func NewFileCheckpointStore(dir string, logger *utils.Logger) (*FileCheckpointStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("checkpoint: create dir %q: %w", dir, err)
	}
	return &FileCheckpointStore{
		dir:    dir,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// keyLock serialises all access for one entity key.
func (s *FileCheckpointStore) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

type checkpointFile struct {
	name  string
	stamp string
	seq   int
}

// list returns the key's checkpoint files, latest first.
func (s *FileCheckpointStore) list(key string) ([]checkpointFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read dir: %w", err)
	}

	prefix := "checkpoint_" + SanitizeKey(key) + "_"
	var files []checkpointFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		m := checkpointSuffix.FindStringSubmatch(strings.TrimPrefix(e.Name(), prefix))
		if m == nil {
			continue
		}
		seq, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		files = append(files, checkpointFile{name: e.Name(), stamp: m[1], seq: seq})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].seq != files[j].seq {
			return files[i].seq > files[j].seq
		}
		return files[i].name > files[j].name
	})
	return files, nil
}

// LoadLatest returns the newest readable snapshot for key. An unreadable
// newest file is skipped in favour of the next one, but the returned
// Sequence still reflects the highest number on disk so the next save
// supersedes it.
func (s *FileCheckpointStore) LoadLatest(ctx context.Context, key string) (*models.Snapshot, error) {
	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()

	files, err := s.list(key)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(s.dir, f.name)
		b, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("[checkpoint] Cannot read %s: %v", f.name, err)
			continue
		}
		snap, err := decodeSnapshot(b)
		if err != nil {
			s.logger.Warn("[checkpoint] Skipping unreadable %s: %v", f.name, err)
			continue
		}

		snap.Sequence = files[0].seq
		if snap.SavedAt.IsZero() {
			snap.SavedAt = parseTimestamp(f.stamp)
		}
		s.logger.Info("[checkpoint] Loaded %s: %d records, %d seen hashes", f.name, len(snap.Records), len(snap.SeenHashes))
		return snap, nil
	}

	return nil, fmt.Errorf("checkpoint: no readable snapshot among %d files for %q", len(files), key)
}

// Save writes the snapshot to a temp file and renames it into place, so a
// crash mid-write never leaves a truncated checkpoint behind.
func (s *FileCheckpointStore) Save(ctx context.Context, key string, snap models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()

	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now()
	}
	b, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("checkpoint: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("checkpoint: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("checkpoint: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("checkpoint: close temp: %w", err)
	}

	name := fmt.Sprintf("checkpoint_%s_%s_%d.json",
		SanitizeKey(key), snap.SavedAt.Format(legacyTimestamp), snap.Sequence)
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("checkpoint: rename: %w", err)
	}

	s.logger.Info("[checkpoint] Saved %s with %d records", name, len(snap.Records))
	return nil
}

func (s *FileCheckpointStore) Close() error { return nil }

// SanitizeKey makes an entity key safe to embed in a file name.
func SanitizeKey(key string) string {
	unsafe := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	for _, char := range unsafe {
		key = strings.ReplaceAll(key, char, "_")
	}
	return key
}
