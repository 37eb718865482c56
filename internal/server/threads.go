// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxThreads caps the number of conversations kept in memory.
const DefaultMaxThreads = 1000

// Turn is one exchange within a thread.
type Turn struct {
	User      string
	Assistant string
}

type thread struct {
	turns     []Turn
	updatedAt time.Time
}

// ThreadStore keeps conversation threads in memory, keyed by checkpoint id.
// It is safe for concurrent use.
type ThreadStore struct {
	mu      sync.Mutex
	threads map[string]*thread
	max     int
	now     func() time.Time
}

// NewThreadStore creates a store holding at most max threads (0 = default).
func NewThreadStore(max int) *ThreadStore {
	if max <= 0 {
		max = DefaultMaxThreads
	}
	return &ThreadStore{
		threads: make(map[string]*thread),
		max:     max,
		now:     time.Now,
	}
}

// Create starts a new thread and returns its checkpoint id.
func (s *ThreadStore) Create() string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(id)
	return id
}

// Ensure makes sure a thread exists for id. Unknown ids start an empty
// thread under that id. Reports whether the thread was created.
func (s *ThreadStore) Ensure(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[id]; ok {
		return false
	}
	s.insertLocked(id)
	return true
}

// History returns a copy of the turns recorded for id.
func (s *ThreadStore) History(id string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[id]
	if !ok {
		return nil
	}
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Append records a finished turn on thread id.
func (s *ThreadStore) Append(id string, turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[id]
	if !ok {
		t = s.insertLocked(id)
	}
	t.turns = append(t.turns, turn)
	t.updatedAt = s.now()
}

// Len returns the number of threads held.
func (s *ThreadStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.threads)
}

func (s *ThreadStore) insertLocked(id string) *thread {
	t := &thread{updatedAt: s.now()}
	s.threads[id] = t
	for len(s.threads) > s.max {
		s.evictOldestLocked(id)
	}
	return t
}

// evictOldestLocked drops the least recently updated thread other than keep.
func (s *ThreadStore) evictOldestLocked(keep string) {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, t := range s.threads {
		if id == keep {
			continue
		}
		if oldestID == "" || t.updatedAt.Before(oldest) {
			oldestID, oldest = id, t.updatedAt
		}
	}
	if oldestID == "" {
		return
	}
	delete(s.threads, oldestID)
}
