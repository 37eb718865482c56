// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/searchchat/internal/session"
	"github.com/jeranaias/searchchat/internal/ui/chat"
	"github.com/jeranaias/searchchat/internal/ui/styles"
)

// =============================================================================
// INTERACTIVE UI
// =============================================================================

// errNotTerminal is returned when the full-screen UI has no terminal.
var errNotTerminal = errors.New("the chat interface needs a terminal; use 'searchchat chat' or 'searchchat ask'")

// relay forwards snapshots to a program that is created after the
// controller it observes.
type relay struct {
	p atomic.Pointer[tea.Program]
}

func (r *relay) observe(s session.Snapshot) {
	if p := r.p.Load(); p != nil {
		chat.Observer(p)(s)
	}
}

// runTUI starts the full-screen chat interface.
func (a *app) runTUI(cmd *cobra.Command, _ []string) error {
	if !IsTTY() || !IsStdoutTTY() {
		return errNotTerminal
	}

	store, err := a.openStore()
	if err != nil {
		a.logger.Warn("history unavailable", zap.Error(err))
		store = nil
	}
	if store != nil {
		defer store.Close()
	}

	opts := chat.Options{
		Markdown:    a.cfg.UI.Markdown,
		ShowSources: a.cfg.UI.ShowSources,
		Theme:       styles.NewTheme(),
		Logger:      a.logger.Named("ui"),
	}
	if store != nil {
		opts.Saver = store
	}

	conv := session.NewConversation()
	if ref, _ := cmd.Flags().GetString("resume"); ref != "" {
		if store == nil {
			return fmt.Errorf("cannot resume %s: history is not available", ref)
		}
		t, err := store.Resolve(cmd.Context(), ref)
		if err != nil {
			return err
		}
		conv = session.Restore(t.Messages, t.Checkpoint)
		opts.Messages = t.Messages
		opts.Checkpoint = t.Checkpoint
		opts.TranscriptID = t.ID
		opts.Title = t.Title
		a.logger.Info("resuming transcript", zap.String("id", t.ID))
	}

	r := &relay{}
	ctrl := a.newController(conv, r.observe)
	defer ctrl.Shutdown()
	opts.Controller = ctrl

	p := tea.NewProgram(chat.New(opts), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	r.p.Store(p)

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("chat interface: %w", err)
	}
	return nil
}
