// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the rendering pieces of the searchchat TUI.

# Display Components

  - RenderMessage (message.go) - one chat message as a styled bubble
  - RenderStages / RenderSources (search.go) - search progress and the
    sources an answer was built from
  - Markdown (markdown.go) - glamour renderer for assistant replies
  - StatusBar (statusbar.go) - bottom bar with turn state and shortcuts
  - Spinner (spinner.go) - animated indicator for a reply in flight

Components are pure functions of their inputs or small Bubble Tea models,
and all of them take a *styles.Theme:

	theme := styles.NewTheme()
	md := components.NewMarkdown(76)
	view := components.RenderMessage(theme, msg, components.MessageOptions{
		Width:       80,
		Markdown:    md,
		ShowSources: true,
	})
*/
package components
