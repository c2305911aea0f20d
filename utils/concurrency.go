package utils

import (
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// WorkerPool runs jobs on a bounded number of goroutines, spacing job
// starts by at least rateLimitMs.
type WorkerPool struct {
	rateLimitMs int
	group       errgroup.Group
	mu          sync.Mutex
	lastStart   time.Time
}

// NewWorkerPool creates a WorkerPool with the given concurrency and rate limit.
func NewWorkerPool(maxWorkers, rateLimitMs int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	wp := &WorkerPool{rateLimitMs: rateLimitMs}
	wp.group.SetLimit(maxWorkers)
	return wp
}

// Submit enqueues a job, blocking while every worker is busy.
// Jobs own their failures; nothing a job does cancels its siblings.
func (wp *WorkerPool) Submit(job func()) {
	wp.group.Go(func() error {
		wp.enforceRateLimit()
		job()
		return nil
	})
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	_ = wp.group.Wait()
}

func (wp *WorkerPool) enforceRateLimit() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	minInterval := time.Duration(wp.rateLimitMs) * time.Millisecond
	if !wp.lastStart.IsZero() {
		if elapsed := time.Since(wp.lastStart); elapsed < minInterval {
			time.Sleep(minInterval - elapsed)
		}
	}
	wp.lastStart = time.Now()
}

// KeySet is a thread-safe set of string keys.
type KeySet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewKeySet creates an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{seen: make(map[string]struct{})}
}

// Add returns true if the key was newly added, false if already present.
func (s *KeySet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Contains returns true if the key is present.
func (s *KeySet) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[key]
	return exists
}

// Size returns the number of unique keys tracked.
func (s *KeySet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
