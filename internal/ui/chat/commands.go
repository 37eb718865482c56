// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// Command is a line beginning with "/" handled by the view itself.
type Command struct {
	Name        string
	Description string
}

// Commands lists the view commands in help order.
var Commands = []Command{
	{"/new", "start a new conversation"},
	{"/save", "save this conversation to history"},
	{"/sources", "show or hide sources under replies"},
	{"/help", "show keys and commands"},
	{"/quit", "leave searchchat"},
}

func (m Model) runCommand(line string) (tea.Model, tea.Cmd) {
	name := strings.ToLower(strings.Fields(line)[0])
	switch name {
	case "/new", "/clear":
		return m.newChat()
	case "/save":
		return m.save()
	case "/sources":
		return m.toggleSources()
	case "/help", "/?":
		m.showHelp = !m.showHelp
		return m, nil
	case "/quit", "/exit", "/q":
		m.quitting = true
		return m, tea.Quit
	default:
		m.setNotice("Unknown command "+name+". Type /help for a list.", true)
		return m, nil
	}
}
