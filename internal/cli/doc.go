// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package cli implements the searchchat command line.

# Commands

	searchchat                      start the chat TUI
	searchchat --resume <id>        continue a saved conversation in the TUI
	searchchat chat                 line-mode chat with input history
	searchchat ask "question"       ask once and print the answer (--json)
	searchchat serve                run the demo streaming backend
	searchchat config show|init|path|get|set
	searchchat history list|show|export|delete|search

# Global Flags

	--api-url   backend base address, overrides api.url
	--config    alternate config file
	--verbose   debug logging

The TUI and chat write their log to a file because they own the terminal;
serve logs to stderr and the remaining commands log warnings there unless
--verbose is set. Output is plain when stdout is not a terminal.
*/
package cli
