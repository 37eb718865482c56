// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/jeranaias/searchchat/internal/ui/styles"
	"github.com/jeranaias/searchchat/internal/util"
)

// Shortcut is one key hint in the status bar.
type Shortcut struct {
	Key  string
	Desc string
}

// StatusBar is the bottom line of the chat view.
type StatusBar struct {
	theme     *styles.Theme
	width     int
	status    string
	shortcuts []Shortcut
}

// NewStatusBar creates a status bar.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{theme: theme}
}

// SetWidth sets the rendering width.
func (s *StatusBar) SetWidth(width int) {
	s.width = width
}

// SetStatus sets the left-hand status text.
func (s *StatusBar) SetStatus(status string) {
	s.status = status
}

// SetShortcuts sets the key hints shown on the right.
func (s *StatusBar) SetShortcuts(shortcuts []Shortcut) {
	s.shortcuts = shortcuts
}

// View renders the bar. Shortcuts are dropped from the right until the
// line fits.
func (s *StatusBar) View() string {
	width := s.width
	if width <= 0 {
		width = 80
	}
	inner := width - 2

	left := s.status
	hints := make([]string, 0, len(s.shortcuts))
	hintWidths := make([]int, 0, len(s.shortcuts))
	for _, sc := range s.shortcuts {
		hints = append(hints, s.theme.ShortcutKey.Render(sc.Key)+" "+s.theme.ShortcutDesc.Render(sc.Desc))
		hintWidths = append(hintWidths, util.StringWidth(sc.Key)+1+util.StringWidth(sc.Desc))
	}

	leftWidth := util.StringWidth(left)
	for len(hints) > 0 {
		total := 0
		for _, w := range hintWidths {
			total += w
		}
		total += 2 * (len(hints) - 1)
		if leftWidth+1+total <= inner {
			gap := inner - leftWidth - total
			line := left + strings.Repeat(" ", gap) + strings.Join(hints, "  ")
			return s.theme.StatusBar.Width(width).Render(line)
		}
		hints = hints[:len(hints)-1]
		hintWidths = hintWidths[:len(hintWidths)-1]
	}

	return s.theme.StatusBar.Width(width).Render(util.TruncateWidth(left, inner))
}
