// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides transcript persistence for searchchat.
//
// Saved chats live in a single SQLite database (pure Go driver, no cgo),
// one row per transcript with the messages stored as JSON.
//
// # Key Types
//
//   - Store: SQLite-backed transcript store
//   - Transcript: A saved chat with its messages and checkpoint
//   - TranscriptMeta: Lightweight metadata for listing
//
// # Usage
//
//	store, err := storage.Open(filepath.Join(dir, "history.db"))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	id, err := store.Save(ctx, storage.NewTranscript(msgs, checkpoint))
//	metas, err := store.List(ctx)
//	tr, err := store.Resolve(ctx, id[:8])
//
// # Storage Location
//
// Transcripts are stored in ~/.searchchat/transcripts/history.db unless
// storage.dir is configured.
package storage
