// searchchat - a terminal client for search-augmented chat.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import "github.com/jeranaias/searchchat/internal/cli"

func main() {
	cli.Execute()
}
