// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultProbeTimeout bounds a single reachability probe.
const DefaultProbeTimeout = 5 * time.Second

// ProbeResult is the outcome of one probe.
type ProbeResult struct {
	URL        string
	Reachable  bool
	StatusCode int
	Latency    time.Duration
	Err        error
}

// Prober checks whether a server answers at all. Probes are advisory: any
// HTTP response counts as reachable, whatever its status.
type Prober struct {
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewProber creates a prober. A zero timeout uses DefaultProbeTimeout.
func NewProber(timeout time.Duration, logger *zap.Logger) *Prober {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		logger:  logger,
	}
}

// Probe sends a HEAD request to url and logs the outcome.
func (p *Prober) Probe(ctx context.Context, url string) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	res := ProbeResult{URL: url}
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		res.Err = fmt.Errorf("failed to create probe request: %w", err)
		p.logger.Warn("probe failed", zap.String("url", url), zap.Error(res.Err))
		return res
	}

	resp, err := p.client.Do(req)
	res.Latency = time.Since(start)
	if err != nil {
		res.Err = err
		p.logger.Warn("server unreachable", zap.String("url", url), zap.Error(err))
		return res
	}
	resp.Body.Close()

	res.Reachable = true
	res.StatusCode = resp.StatusCode
	p.logger.Debug("server reachable",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", res.Latency))
	return res
}
