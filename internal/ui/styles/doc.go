// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the searchchat TUI.

All colors use Lip Gloss AdaptiveColor so the same palette works on light and
dark terminals.

# Color System (colors.go)

  - Purple - assistant messages, spinner
  - Cyan - brand color, user highlights, search query
  - Emerald - completed stages, success notices
  - Amber - warnings, in-progress stages
  - Rose - errors and failed searches

Text colors come in three strengths: TextPrimary, TextSecondary and TextMuted.

# Accessibility

Status helpers (RenderSuccess, RenderError, RenderWarning, RenderInfo) prefix
ASCII shape indicators so meaning does not depend on color alone.

# Theme (theme.go)

Theme bundles the lipgloss styles used by components and the chat view. It
detects the terminal profile with termenv at construction.

	theme := styles.NewTheme()
	fmt.Println(theme.UserBubble.Render("hello"))
*/
package styles
