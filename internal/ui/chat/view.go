// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/searchchat/internal/session"
	"github.com/jeranaias/searchchat/internal/ui/components"
	"github.com/jeranaias/searchchat/internal/ui/styles"
)

// View renders the model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelp()
	}

	parts := []string{
		m.renderHeader(),
		m.viewport.View(),
	}
	if m.notice != "" {
		parts = append(parts, m.renderNotice())
	}
	parts = append(parts, m.renderInput(), m.renderStatusBar())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderMessages() string {
	return components.RenderMessages(m.theme, m.messages, components.MessageOptions{
		Width:       m.width - 1,
		Markdown:    m.markdown,
		ShowSources: m.showSources,
		Spinner:     m.spinner.Frame(),
	})
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render(m.title)
	sub := ""
	if m.checkpoint != "" {
		sub = m.theme.HeaderSubtitle.Render("  thread " + shortID(m.checkpoint))
	}
	return m.theme.Header.Width(m.width).MaxHeight(headerHeight).Render(title + sub)
}

func (m Model) renderNotice() string {
	if m.noticeErr {
		return styles.RenderError(m.notice)
	}
	return m.theme.Notice.Render(m.notice)
}

func (m Model) renderInput() string {
	return m.theme.InputContainer.Width(m.width).Render(m.input.View())
}

func (m Model) renderStatusBar() string {
	m.statusBar.SetStatus(m.statusText())
	return m.statusBar.View()
}

// statusText describes the current turn for the status bar.
func (m Model) statusText() string {
	switch m.state {
	case session.TurnStreaming:
		return m.spinner.View() + " streaming"
	case session.TurnTimedOut:
		return styles.StatusIndicators.Warning + " timed out"
	case session.TurnErrored:
		return styles.StatusIndicators.Error + " error"
	case session.TurnCancelled:
		return styles.StatusIndicators.Info + " stopped"
	default:
		return styles.StatusIndicators.Success + " ready"
	}
}

func (m Model) renderHelp() string {
	var sb strings.Builder
	sb.WriteString(m.theme.HeaderTitle.Render("Keys"))
	sb.WriteString("\n")
	for _, group := range m.keys.FullHelp() {
		for _, b := range group {
			h := b.Help()
			sb.WriteString(fmt.Sprintf("  %s %s\n",
				m.theme.ShortcutKey.Render(fmt.Sprintf("%-8s", h.Key)),
				m.theme.ShortcutDesc.Render(h.Desc)))
		}
	}
	sb.WriteString("\n")
	sb.WriteString(m.theme.HeaderTitle.Render("Commands"))
	sb.WriteString("\n")
	for _, c := range Commands {
		sb.WriteString(fmt.Sprintf("  %s %s\n",
			m.theme.ShortcutKey.Render(fmt.Sprintf("%-8s", c.Name)),
			m.theme.ShortcutDesc.Render(c.Description)))
	}
	sb.WriteString("\n")
	sb.WriteString(m.theme.Muted.Render("Press f1 or esc to close."))
	return sb.String()
}
