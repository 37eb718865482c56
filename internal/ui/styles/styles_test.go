// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/muesli/termenv"
)

func TestStatusHelpersIncludeIndicators(t *testing.T) {
	tests := []struct {
		name   string
		render func(string) string
		want   string
	}{
		{"success", RenderSuccess, StatusIndicators.Success},
		{"error", RenderError, StatusIndicators.Error},
		{"warning", RenderWarning, StatusIndicators.Warning},
		{"info", RenderInfo, StatusIndicators.Info},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.render("saved")
			if !strings.Contains(got, tt.want) || !strings.Contains(got, "saved") {
				t.Errorf("%s rendered %q", tt.name, got)
			}
		})
	}
}

func TestNewTheme_Profile(t *testing.T) {
	th := newTheme(termenv.TrueColor, true)
	if !th.HasTrueColor || !th.IsDark {
		t.Errorf("theme did not record capabilities: %+v", th)
	}

	th = newTheme(termenv.Ascii, false)
	if th.HasTrueColor {
		t.Error("ascii profile reported true color")
	}
	if th.UserBubble.GetBorderStyle() != th.AssistantBubble.GetBorderStyle() {
		t.Error("bubbles should share a border shape")
	}
}
