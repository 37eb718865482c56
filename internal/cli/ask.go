// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/searchchat/internal/model"
	"github.com/jeranaias/searchchat/internal/session"
	"github.com/jeranaias/searchchat/internal/ui/components"
)

// =============================================================================
// ASK COMMAND
// =============================================================================

// askResult is the --json output of ask.
type askResult struct {
	Question   string            `json:"question"`
	Answer     string            `json:"answer"`
	State      string            `json:"state"`
	Checkpoint string            `json:"checkpoint_id,omitempty"`
	Search     *model.SearchInfo `json:"search,omitempty"`
	Notices    []string          `json:"notices,omitempty"`
}

func (a *app) newAskCmd() *cobra.Command {
	var (
		asJSON     bool
		checkpoint string
		noSources  bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question and print the reply",
		Long: `Ask sends a single question, prints the search activity and streams the
reply. The exit status is non-zero unless the reply completed.

Examples:
  searchchat ask "What is the weather in Paris?"
  searchchat ask --json "latest Go release" | jq .answer
  searchchat ask --checkpoint 7f3c... "and tomorrow?"`,
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{logAnnotation: logQuiet},
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return fmt.Errorf("question is empty")
			}
			return a.runAsk(cmd, question, checkpoint, asJSON, !noSources && a.cfg.UI.ShowSources)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the final reply as JSON")
	cmd.Flags().StringVar(&checkpoint, "checkpoint", "", "continue the thread with this checkpoint id")
	cmd.Flags().BoolVar(&noSources, "no-sources", false, "do not list search sources")
	return cmd
}

func (a *app) runAsk(cmd *cobra.Command, question, checkpoint string, asJSON, showSources bool) error {
	ctx, stop := interruptContext(cmd.Context())
	defer stop()

	conv := session.NewConversation()
	if checkpoint != "" {
		conv.Checkpoint.Set(checkpoint)
	}

	f := newFeed()
	ctrl := a.newController(conv, f.observe)
	defer func() {
		f.close()
		ctrl.Shutdown()
	}()

	// Rendered markdown replaces streaming only on a terminal.
	render := !asJSON && a.cfg.UI.Markdown && isTerminalWriter(a.out)
	var printer *streamPrinter
	if !asJSON {
		printer = newStreamPrinter(a.out, !render)
	}

	ctrl.Submit(question)
	final, err := f.waitTurn(ctx, 1, ctrl.Cancel, func(s session.Snapshot) {
		if printer != nil {
			printer.update(s)
		}
	})
	if err != nil {
		return err
	}
	a.logger.Debug("ask finished", zap.Stringer("state", final.State))

	reply, extra := turnReplies(final.Messages)
	switch {
	case asJSON:
		if err := writeAskJSON(a.out, question, final, reply, extra); err != nil {
			return err
		}
	case render:
		printer.finish(final, false)
		if reply != nil {
			md := components.NewMarkdown(GetTerminalWidth())
			fmt.Fprintln(a.out, md.Render(reply.Content))
		}
		if showSources {
			printer.writeSources(replyInfo(reply))
		}
	default:
		printer.finish(final, showSources)
	}

	if final.State != session.TurnCompleted {
		return fmt.Errorf("reply %s", strings.ReplaceAll(final.State.String(), "_", " "))
	}
	return nil
}

func writeAskJSON(w io.Writer, question string, s session.Snapshot, reply *model.Message, extra []model.Message) error {
	out := askResult{
		Question:   question,
		State:      s.State.String(),
		Checkpoint: s.Checkpoint,
	}
	if reply != nil {
		out.Answer = reply.Content
		if !reply.SearchInfo.IsEmpty() {
			out.Search = reply.SearchInfo
		}
	}
	for _, m := range extra {
		out.Notices = append(out.Notices, m.Content)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func replyInfo(m *model.Message) *model.SearchInfo {
	if m == nil {
		return nil
	}
	return m.SearchInfo
}
