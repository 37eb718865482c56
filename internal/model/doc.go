// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat messages and the
// message store that owns them.
//
// # Key Types
//
//   - Message: a single chat bubble (user or assistant) with optional search info
//   - SearchInfo: the web-search stages, query and sources of an assistant reply
//   - Stage: one phase of search-augmented generation (searching, reading, writing, error)
//   - Store: the ordered message list, mutated only through Transform functions
//
// # Usage
//
//	store := model.NewStoreWithGreeting()
//	id := model.NextID(store.Snapshot())
//	store.Update(model.Append(model.NewUserMessage(id, "Hello")))
//	store.Update(model.UpdateByID(id, func(m model.Message) model.Message {
//	    m.Content = "Hello!"
//	    return m
//	}))
//
// Every Transform receives a private copy of the prior list, so a caller that
// holds an older snapshot never observes a later mutation.
package model
