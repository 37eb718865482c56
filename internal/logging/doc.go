// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zap loggers used across searchchat.
//
// The interactive UI owns the terminal, so it logs to a file; the
// demo backend and one-shot commands log to stderr.
//
// # Usage
//
//	logger, err := logging.New(logging.Options{Level: "info", File: path})
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
package logging
