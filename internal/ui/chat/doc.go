// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the Bubble Tea chat view of searchchat.

The view never talks to the network. It forwards input to a session
controller and redraws from the snapshots the controller publishes:

	conv := session.NewConversation()
	var p *tea.Program
	ctrl := session.NewController(conv, session.Options{
		BaseURL:  cfg.API.URL,
		Dialer:   stream.NewClient(),
		Observer: func(s session.Snapshot) { p.Send(chat.SnapshotMsg{Snapshot: s}) },
	})
	p = tea.NewProgram(chat.New(chat.Options{Controller: ctrl, Saver: store}))

# Keys

  - Enter sends, Esc cancels the reply in flight
  - Ctrl+S saves the conversation to the transcript store
  - Ctrl+N starts a new conversation
  - Ctrl+O toggles the sources list under replies
  - PgUp/PgDn scroll, Ctrl+C quits

Lines beginning with "/" are view commands (/new, /save, /sources, /help,
/quit) and are not sent to the backend.
*/
package chat
