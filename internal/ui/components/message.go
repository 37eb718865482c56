// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/searchchat/internal/model"
	"github.com/jeranaias/searchchat/internal/ui/styles"
)

// MessageOptions controls how RenderMessage draws a message.
type MessageOptions struct {
	// Width is the total width available, borders included.
	Width int

	// Markdown renders assistant content; nil shows it as plain text.
	Markdown *Markdown

	// ShowSources lists search result urls under assistant replies.
	ShowSources bool

	// Spinner is shown in a loading reply that has no content yet.
	Spinner string
}

// bubblePadding is border plus horizontal padding on both sides.
const bubblePadding = 4

// RenderMessage renders one message as a labelled bubble.
func RenderMessage(theme *styles.Theme, msg model.Message, opts MessageOptions) string {
	width := opts.Width
	if width < 20 {
		width = 20
	}
	inner := width - bubblePadding

	if msg.IsUser {
		label := theme.UserLabel.Render(msg.Role().DisplayName())
		body := theme.UserBubble.Width(width - 2).Render(msg.Content)
		return label + "\n" + body
	}

	var blocks []string
	if stages := RenderStages(theme, msg.SearchInfo, msg.IsLoading); stages != "" {
		blocks = append(blocks, stages)
	}

	switch {
	case msg.Content != "" && opts.Markdown != nil && !msg.IsLoading:
		blocks = append(blocks, opts.Markdown.Render(msg.Content))
	case msg.Content != "":
		blocks = append(blocks, lipgloss.NewStyle().Width(inner).Render(msg.Content))
	case msg.IsLoading:
		blocks = append(blocks, opts.Spinner+theme.Muted.Render(" Waiting for reply..."))
	}

	if opts.ShowSources && msg.SearchInfo != nil {
		if sources := RenderSources(theme, msg.SearchInfo.URLs, inner); sources != "" {
			blocks = append(blocks, sources)
		}
	}

	label := theme.AssistantLabel.Render(msg.Role().DisplayName())
	body := theme.AssistantBubble.Width(width - 2).Render(strings.Join(blocks, "\n\n"))
	return label + "\n" + body
}

// RenderMessages renders a conversation, separating messages by a blank line.
func RenderMessages(theme *styles.Theme, msgs []model.Message, opts MessageOptions) string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, RenderMessage(theme, m, opts))
	}
	return strings.Join(out, "\n\n")
}
