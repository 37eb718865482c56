// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "sync"

// MaxMessages is the maximum number of messages kept in the store.
// When exceeded, the oldest messages are pruned.
const MaxMessages = 1000

// =============================================================================
// TRANSFORMS
// =============================================================================

// Transform maps the prior message list to the next one. It receives a
// private copy and may modify it freely.
type Transform func(msgs []Message) []Message

// Append returns a Transform that adds msg at the end.
func Append(msg Message) Transform {
	return func(msgs []Message) []Message {
		return append(msgs, msg.Clone())
	}
}

// UpdateByID returns a Transform that replaces the message with the given id
// by fn's result. Messages with other ids pass through untouched.
func UpdateByID(id int, fn func(Message) Message) Transform {
	return func(msgs []Message) []Message {
		for i := range msgs {
			if msgs[i].ID == id {
				msgs[i] = fn(msgs[i])
			}
		}
		return msgs
	}
}

// NextID returns max(id)+1, or 1 for an empty list.
func NextID(msgs []Message) int {
	maxID := 0
	for _, m := range msgs {
		if m.ID > maxID {
			maxID = m.ID
		}
	}
	return maxID + 1
}

// Clone deep-copies a message list.
func Clone(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// Find returns the message with the given id.
func Find(msgs []Message, id int) (Message, bool) {
	for _, m := range msgs {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// LoadingCount returns how many messages have IsLoading set.
func LoadingCount(msgs []Message) int {
	n := 0
	for _, m := range msgs {
		if m.IsLoading {
			n++
		}
	}
	return n
}

// =============================================================================
// STORE
// =============================================================================

// Store is the ordered message list. All mutation goes through Update.
type Store struct {
	mu       sync.RWMutex
	messages []Message
}

// NewStore creates a store holding the given messages.
func NewStore(seed ...Message) *Store {
	return &Store{messages: Clone(seed)}
}

// NewStoreWithGreeting creates a store seeded with the assistant greeting as id 1.
func NewStoreWithGreeting() *Store {
	return NewStore(NewAssistantMessage(1, Greeting))
}

// Update applies fn to a copy of the current list and stores a copy of the
// result, so neither fn nor the caller can reach the stored slice afterwards.
// It returns a snapshot of the new list.
func (s *Store) Update(fn Transform) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := fn(Clone(s.messages))
	if len(next) > MaxMessages {
		next = next[len(next)-MaxMessages:]
	}
	s.messages = Clone(next)
	return Clone(s.messages)
}

// Snapshot returns a deep copy of the current list.
func (s *Store) Snapshot() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Clone(s.messages)
}

// Get returns a copy of the message with the given id.
func (s *Store) Get(id int) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := Find(s.messages, id)
	if !ok {
		return Message{}, false
	}
	return m.Clone(), true
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Reset replaces the contents with the given messages.
func (s *Store) Reset(msgs ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = Clone(msgs)
}
