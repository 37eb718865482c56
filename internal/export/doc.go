// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders saved transcripts as files.
//
// # Supported Formats
//
//   - Markdown: Human-readable, with the sources of each searched reply
//   - JSON: The complete transcript, suitable for re-import
//
// # Usage
//
//	exporter, err := export.ForFormat("markdown", export.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	path, err := export.ToFile(transcript, exporter, outDir)
package export
