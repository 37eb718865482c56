// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/searchchat/internal/session"
	"github.com/jeranaias/searchchat/internal/storage"
)

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case SnapshotMsg:
		return m.handleSnapshot(msg.Snapshot)

	case savedMsg:
		return m.handleSaved(msg)
	}

	var inputCmd, spinCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	wasActive := m.spinner.IsActive()
	m.spinner, spinCmd = m.spinner.Update(msg)
	if wasActive && spinCmd != nil {
		m.refresh(false)
	}
	return m, tea.Batch(inputCmd, spinCmd)
}

// =============================================================================
// LAYOUT
// =============================================================================

const (
	headerHeight    = 1
	inputAreaHeight = 2
	statusBarHeight = 1
)

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.ready = true
	m.layout()
	m.refresh(true)
	return m, nil
}

// layout sizes the viewport to the rows left by header, notice, input and
// status bar.
func (m *Model) layout() {
	vpHeight := m.height - headerHeight - inputAreaHeight - statusBarHeight
	if m.notice != "" {
		vpHeight--
	}
	m.viewport.Width = max(m.width, 1)
	m.viewport.Height = max(vpHeight, 1)

	m.input.Width = max(m.width-len(m.input.Prompt)-1, 10)
	m.statusBar.SetWidth(m.width)
	if m.markdown != nil {
		m.markdown.SetWidth(m.width - 8)
	}
}

// refresh re-renders the conversation into the viewport. The view follows
// the newest message when it was already at the bottom or follow is set.
func (m *Model) refresh(follow bool) {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderMessages())
	if follow || atBottom {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.state == session.TurnStreaming && m.ctrl != nil {
			m.ctrl.Cancel()
			m.setNotice("Stopped.", false)
		} else if m.showHelp {
			m.showHelp = false
		}
		return m, nil

	case key.Matches(msg, m.keys.Save):
		return m.save()

	case key.Matches(msg, m.keys.NewChat):
		return m.newChat()

	case key.Matches(msg, m.keys.ToggleSources):
		return m.toggleSources()

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input line, or runs it when it is a view command.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.input.Reset()

	if strings.HasPrefix(text, "/") {
		return m.runCommand(text)
	}
	if m.ctrl == nil {
		m.setNotice("No backend configured.", true)
		return m, nil
	}

	m.setNotice("", false)
	m.ctrl.Submit(text)
	return m, nil
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

func (m Model) handleSnapshot(s session.Snapshot) (tea.Model, tea.Cmd) {
	m.messages = s.Messages
	m.state = s.State
	m.checkpoint = s.Checkpoint

	var cmd tea.Cmd
	if s.State == session.TurnStreaming {
		cmd = m.spinner.Start()
	} else {
		m.spinner.Stop()
	}
	m.refresh(true)
	return m, cmd
}

// =============================================================================
// ACTIONS
// =============================================================================

func (m Model) newChat() (tea.Model, tea.Cmd) {
	if m.ctrl != nil {
		m.ctrl.Reset()
	}
	m.transcriptID = ""
	m.setNotice("Started a new conversation.", false)
	return m, nil
}

func (m Model) toggleSources() (tea.Model, tea.Cmd) {
	m.showSources = !m.showSources
	if m.showSources {
		m.setNotice("Showing sources.", false)
	} else {
		m.setNotice("Hiding sources.", false)
	}
	m.refresh(false)
	return m, nil
}

// save persists the conversation. Saving the same conversation again
// updates its transcript.
func (m Model) save() (tea.Model, tea.Cmd) {
	if m.saver == nil {
		m.setNotice("History is not available.", true)
		return m, nil
	}
	if m.state == session.TurnStreaming {
		m.setNotice("Wait for the reply to finish before saving.", true)
		return m, nil
	}

	t := storage.NewTranscript(m.messages, m.checkpoint)
	t.ID = m.transcriptID
	saver := m.saver

	m.setNotice("Saving...", false)
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		id, err := saver.Save(ctx, t)
		return savedMsg{id: id, title: t.Title, err: err}
	}
}

func (m Model) handleSaved(msg savedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.logger.Warn("save transcript failed", zap.Error(msg.err))
		m.setNotice("Save failed: "+msg.err.Error(), true)
		return m, nil
	}
	m.transcriptID = msg.id
	m.logger.Info("transcript saved", zap.String("id", msg.id))
	m.setNotice("Saved \""+msg.title+"\" ("+shortID(msg.id)+").", false)
	return m, nil
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
	if m.ready {
		m.layout()
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
