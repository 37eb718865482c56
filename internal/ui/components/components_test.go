// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/searchchat/internal/model"
	"github.com/jeranaias/searchchat/internal/ui/styles"
)

func plain(s string) string {
	// Styles may emit ANSI; width math and substring checks work on the
	// printable text.
	var sb strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'):
			inEscape = false
		case !inEscape:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func TestRenderStages(t *testing.T) {
	theme := styles.NewTheme()

	assert.Empty(t, RenderStages(theme, nil, true))
	assert.Empty(t, RenderStages(theme, model.NewSearchInfo(), true))

	info := &model.SearchInfo{
		Stages: []model.Stage{model.StageSearching, model.StageReading, model.StageWriting},
		Query:  "weather paris",
	}
	loading := plain(RenderStages(theme, info, true))
	assert.Contains(t, loading, "[OK] Searching the web")
	assert.Contains(t, loading, "[*] Writing answer")
	assert.Contains(t, loading, "query: weather paris")

	done := plain(RenderStages(theme, info, false))
	assert.Contains(t, done, "[OK] Writing answer")

	failed := plain(RenderStages(theme, &model.SearchInfo{
		Stages: []model.Stage{model.StageSearching, model.StageError},
		Error:  "provider down",
	}, false))
	assert.Contains(t, failed, "[X] Search error")
	assert.Contains(t, failed, "provider down")
}

func TestRenderSources(t *testing.T) {
	theme := styles.NewTheme()

	assert.Empty(t, RenderSources(theme, nil, 80))

	out := plain(RenderSources(theme, []string{"https://a.com", "https://b.com/" + strings.Repeat("x", 200)}, 40))
	lines := strings.Split(out, "\n")
	assert.Equal(t, "Sources (2)", lines[0])
	assert.Equal(t, "  1. https://a.com", lines[1])
	assert.LessOrEqual(t, lipgloss.Width(lines[2]), 40)

	var many []string
	for i := 0; i < MaxSourcesShown+3; i++ {
		many = append(many, fmt.Sprintf("https://site%d.com", i))
	}
	out = plain(RenderSources(theme, many, 80))
	assert.Contains(t, out, "... and 3 more")
	assert.NotContains(t, out, "site9.com")
}

func TestRenderMessage(t *testing.T) {
	theme := styles.NewTheme()

	user := plain(RenderMessage(theme, model.NewUserMessage(2, "hello there"), MessageOptions{Width: 60}))
	assert.Contains(t, user, "You")
	assert.Contains(t, user, "hello there")

	loading := model.NewPlaceholder(3)
	out := plain(RenderMessage(theme, loading, MessageOptions{Width: 60, Spinner: "|"}))
	assert.Contains(t, out, "Assistant")
	assert.Contains(t, out, "Waiting for reply")

	ai := model.NewAssistantMessage(3, "Sunny today")
	ai.SearchInfo = &model.SearchInfo{
		Stages: []model.Stage{model.StageSearching, model.StageReading, model.StageWriting},
		URLs:   []string{"https://weather.com"},
	}
	with := plain(RenderMessage(theme, ai, MessageOptions{Width: 60, ShowSources: true, Markdown: NewMarkdown(50)}))
	assert.Contains(t, with, "Sunny today")
	assert.Contains(t, with, "https://weather.com")

	without := plain(RenderMessage(theme, ai, MessageOptions{Width: 60}))
	assert.NotContains(t, without, "https://weather.com")

	for _, line := range strings.Split(with, "\n") {
		assert.LessOrEqual(t, lipgloss.Width(line), 60)
	}
}

func TestMarkdown(t *testing.T) {
	md := NewMarkdown(5)
	assert.Equal(t, 20, md.Width(), "width has a floor")

	out := plain(md.Render("# Title\n\nsome words"))
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "some words")

	assert.Equal(t, "", md.Render(""))

	var nilMD *Markdown
	assert.Equal(t, "x", nilMD.Render("x"))
}

func TestSpinner(t *testing.T) {
	theme := styles.NewTheme()
	s := NewSpinner(theme)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	assert.Empty(t, s.View())
	assert.NotNil(t, s.Start())
	assert.Nil(t, s.Start(), "already running")
	assert.True(t, s.IsActive())
	assert.Equal(t, "|", plain(s.Frame()))

	now = now.Add(75 * time.Second)
	assert.Contains(t, plain(s.View()), "(1m 15s)")

	s.Stop()
	_, cmd := s.Update(nil)
	assert.Nil(t, cmd)
	assert.Empty(t, s.Frame())
}

func TestStatusBar(t *testing.T) {
	theme := styles.NewTheme()
	bar := NewStatusBar(theme)
	bar.SetStatus("ready")
	bar.SetShortcuts([]Shortcut{{"enter", "send"}, {"ctrl+s", "save"}, {"ctrl+c", "quit"}})

	bar.SetWidth(80)
	wide := plain(bar.View())
	assert.Contains(t, wide, "ready")
	assert.Contains(t, wide, "ctrl+c quit")
	assert.Equal(t, 80, lipgloss.Width(wide))

	bar.SetWidth(30)
	narrow := plain(bar.View())
	assert.Contains(t, narrow, "enter send")
	assert.NotContains(t, narrow, "ctrl+c")
	assert.LessOrEqual(t, lipgloss.Width(narrow), 30)
}
