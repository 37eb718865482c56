// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/searchchat/internal/model"
	"github.com/jeranaias/searchchat/internal/storage"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports transcripts to Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a transcript to Markdown.
func (e *MarkdownExporter) Export(t *storage.Transcript) ([]byte, error) {
	if t == nil {
		return nil, errNilTranscript
	}
	if len(t.Messages) == 0 {
		return nil, errors.New("transcript has no messages")
	}

	title := t.Title
	if title == "" {
		title = storage.DefaultTitle
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		sb.WriteString(fmt.Sprintf("title: %s\n", escapeYAML(title)))
		if t.ID != "" {
			sb.WriteString(fmt.Sprintf("id: %s\n", t.ID))
		}
		if t.Checkpoint != "" {
			sb.WriteString(fmt.Sprintf("checkpoint: %s\n", escapeYAML(t.Checkpoint)))
		}
		if !t.CreatedAt.IsZero() {
			sb.WriteString(fmt.Sprintf("date: %s\n", t.CreatedAt.Format(time.RFC3339)))
		}
		sb.WriteString(fmt.Sprintf("messages: %d\n", len(t.Messages)))
		sb.WriteString("generator: searchchat\n")
		sb.WriteString("---\n\n")
	}

	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(title)))

	for i, msg := range t.Messages {
		sb.WriteString(fmt.Sprintf("### %s\n\n", msg.Role().DisplayName()))

		if content := strings.TrimSpace(msg.Content); content != "" {
			sb.WriteString(content)
			sb.WriteString("\n\n")
		}

		if search := e.formatSearch(msg.SearchInfo); search != "" {
			sb.WriteString(search)
			sb.WriteString("\n")
		}

		if i < len(t.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("\n---\n\n")
	sb.WriteString(fmt.Sprintf("*Exported from searchchat on %s*\n",
		formatTimestamp(e.options.Now())))

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// formatSearch renders the search query, error and sources of a reply.
func (e *MarkdownExporter) formatSearch(info *model.SearchInfo) string {
	if info.IsEmpty() {
		return ""
	}

	var sb strings.Builder
	if info.Query != "" {
		sb.WriteString(fmt.Sprintf("> Searched for: %s\n\n", escapeMarkdown(info.Query)))
	}
	if info.Error != "" {
		sb.WriteString(fmt.Sprintf("> %s: %s\n\n", model.StageError.Label(), info.Error))
	}
	if e.options.IncludeSources && len(info.URLs) > 0 {
		sb.WriteString("**Sources**\n\n")
		for _, u := range info.URLs {
			sb.WriteString(fmt.Sprintf("- <%s>\n", u))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes characters that would break headings and quotes.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}

// escapeYAML quotes values that contain YAML special characters.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
