// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"

	"github.com/jeranaias/searchchat/internal/model"
)

// =============================================================================
// CHECKPOINT
// =============================================================================

// Checkpoint holds the server-issued identifier that correlates turns into
// one conversation. It starts empty and is never persisted by itself.
type Checkpoint struct {
	mu sync.RWMutex
	id string
}

// Get returns the identifier and whether one is set.
func (c *Checkpoint) Get() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id, c.id != ""
}

// Set replaces the identifier. An empty id clears it.
func (c *Checkpoint) Set(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = id
}

// Clear removes the identifier.
func (c *Checkpoint) Clear() {
	c.Set("")
}

// =============================================================================
// CONVERSATION
// =============================================================================

// Conversation is the state shared by every turn of one chat.
type Conversation struct {
	Store      *model.Store
	Checkpoint *Checkpoint
}

// NewConversation returns a conversation seeded with the greeting message.
func NewConversation() *Conversation {
	return &Conversation{
		Store:      model.NewStoreWithGreeting(),
		Checkpoint: &Checkpoint{},
	}
}

// Restore returns a conversation holding previously saved messages and
// checkpoint, so a stored transcript can be continued.
func Restore(msgs []model.Message, checkpoint string) *Conversation {
	conv := &Conversation{
		Store:      model.NewStore(msgs...),
		Checkpoint: &Checkpoint{},
	}
	conv.Checkpoint.Set(checkpoint)
	return conv
}
