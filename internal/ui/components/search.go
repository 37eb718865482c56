// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/jeranaias/searchchat/internal/model"
	"github.com/jeranaias/searchchat/internal/ui/styles"
	"github.com/jeranaias/searchchat/internal/util"
)

// MaxSourcesShown caps the number of source lines under a reply.
const MaxSourcesShown = 8

// =============================================================================
// STAGE INDICATOR
// =============================================================================

// RenderStages renders the search stages of a reply on one line, e.g.
//
//	[OK] Searching the web > [OK] Reading sources > [*] Writing answer
//
// The last stage is shown as active while loading is true.
func RenderStages(theme *styles.Theme, info *model.SearchInfo, loading bool) string {
	if info == nil || len(info.Stages) == 0 {
		return ""
	}

	parts := make([]string, 0, len(info.Stages))
	for i, st := range info.Stages {
		last := i == len(info.Stages)-1
		switch {
		case st == model.StageError:
			parts = append(parts, theme.StageError.Render(styles.StatusIndicators.Error+" "+st.Label()))
		case last && loading:
			parts = append(parts, theme.StageActive.Render(styles.StatusIndicators.Active+" "+st.Label()))
		default:
			parts = append(parts, theme.StageDone.Render(styles.StatusIndicators.Success+" "+st.Label()))
		}
	}
	line := strings.Join(parts, theme.Muted.Render(" > "))

	if info.Query != "" {
		line += "\n" + theme.Muted.Render("query: ") + theme.SearchQuery.Render(info.Query)
	}
	if info.Error != "" {
		line += "\n" + theme.StageError.Render(info.Error)
	}
	return line
}

// =============================================================================
// SOURCES LIST
// =============================================================================

// RenderSources lists urls, one per line, truncated to width columns.
func RenderSources(theme *styles.Theme, urls []string, width int) string {
	if len(urls) == 0 {
		return ""
	}
	if width < 10 {
		width = 10
	}

	var sb strings.Builder
	sb.WriteString(theme.SourceHeader.Render(fmt.Sprintf("Sources (%d)", len(urls))))
	for i, u := range urls {
		if i == MaxSourcesShown {
			sb.WriteString("\n")
			sb.WriteString(theme.Muted.Render(fmt.Sprintf("  ... and %d more", len(urls)-MaxSourcesShown)))
			break
		}
		prefix := fmt.Sprintf("  %d. ", i+1)
		link := util.TruncateWidth(u, width-util.StringWidth(prefix))
		sb.WriteString("\n")
		sb.WriteString(theme.Muted.Render(prefix))
		sb.WriteString(theme.SourceLink.Render(link))
	}
	return sb.String()
}
