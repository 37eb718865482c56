// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/searchchat/internal/server"
)

// shutdownTimeout bounds graceful shutdown of the demo backend.
const shutdownTimeout = 5 * time.Second

func (a *app) newServeCmd() *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo chat backend",
		Long: `Serve runs a local backend that speaks the chat streaming protocol.

Messages that start with "search " or end with a question mark trigger a
simulated web search before the reply is streamed word by word.

Endpoints:
  GET /chat_stream/{message}?checkpoint_id=...   server-sent events
  GET /health-check                              liveness check`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{logAnnotation: logToStderr},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			return a.runServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	return cmd
}

func (a *app) runServe(parent context.Context) error {
	ctx, stop := interruptContext(parent)
	defer stop()

	srv := server.New(server.Options{
		Addr:      a.cfg.Server.Addr(),
		WordDelay: a.cfg.Server.WordDelay(),
		RateLimit: a.cfg.Server.RateLimit,
		RateBurst: a.cfg.Server.RateBurst,
		Logger:    a.logger.Named("server"),
	})

	ln, err := net.Listen("tcp", srv.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", srv.Addr(), err)
	}
	fmt.Fprintf(a.out, "searchchat backend listening on http://%s\n", ln.Addr())
	fmt.Fprintln(a.out, "Press Ctrl+C to stop.")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("shutdown", zap.Error(err))
	}
	return <-errCh
}
