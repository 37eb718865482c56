// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Route paths served by the chat backend.
const (
	ChatStreamPath  = "/chat_stream/"
	HealthCheckPath = "/health-check"
)

// ErrInvalidBaseURL is returned for base addresses that are empty or not
// absolute http(s) URLs.
var ErrInvalidBaseURL = errors.New("invalid base url")

func normalizeBase(base string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", ErrInvalidBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidBaseURL, base)
	}
	return strings.TrimRight(base, "/"), nil
}

// Endpoint builds the stream URL for one turn:
//
//	<base>/chat_stream/<escaped message>[?checkpoint_id=<escaped checkpoint>]
//
// The message is path-escaped so reserved characters, including '/', stay
// inside the single path segment.
func Endpoint(base, message, checkpoint string) (string, error) {
	b, err := normalizeBase(base)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(b)
	sb.WriteString(ChatStreamPath)
	sb.WriteString(url.PathEscape(message))
	if checkpoint != "" {
		sb.WriteString("?checkpoint_id=")
		sb.WriteString(url.QueryEscape(checkpoint))
	}
	return sb.String(), nil
}

// HealthURL returns the health-check URL for base.
func HealthURL(base string) (string, error) {
	b, err := normalizeBase(base)
	if err != nil {
		return "", err
	}
	return b + HealthCheckPath, nil
}
