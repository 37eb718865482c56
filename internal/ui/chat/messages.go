// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/searchchat/internal/session"
)

// SnapshotMsg carries a controller snapshot into the Bubble Tea loop.
type SnapshotMsg struct {
	Snapshot session.Snapshot
}

// savedMsg reports the result of a transcript save.
type savedMsg struct {
	id    string
	title string
	err   error
}

// Observer returns a session observer that forwards snapshots to p.
func Observer(p *tea.Program) func(session.Snapshot) {
	return func(s session.Snapshot) {
		p.Send(SnapshotMsg{Snapshot: s})
	}
}
