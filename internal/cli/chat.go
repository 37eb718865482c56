// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/searchchat/internal/config"
	"github.com/jeranaias/searchchat/internal/model"
	"github.com/jeranaias/searchchat/internal/session"
	"github.com/jeranaias/searchchat/internal/storage"
	"github.com/jeranaias/searchchat/internal/util"
)

// =============================================================================
// LINE INPUT
// =============================================================================

const (
	chatPrompt      = "you> "
	historyFileName = "chat_history"
)

// lineReader reads one line of user input at a time.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// errAborted is returned by a lineReader when the user presses Ctrl+C.
var errAborted = errors.New("prompt aborted")

// linerReader is the terminal line editor with persistent history.
type linerReader struct {
	state   *liner.State
	history string
}

func newLinerReader(logger *zap.Logger) *linerReader {
	st := liner.NewLiner()
	st.SetCtrlCAborts(true)
	st.SetCompleter(completeCommand)

	r := &linerReader{state: st}
	if dir, err := config.Dir(); err == nil {
		r.history = filepath.Join(dir, historyFileName)
		if f, err := os.Open(r.history); err == nil {
			if _, err := st.ReadHistory(f); err != nil {
				logger.Debug("read chat history", zap.Error(err))
			}
			f.Close()
		}
	}
	return r
}

func (r *linerReader) Prompt(prompt string) (string, error) {
	line, err := r.state.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", errAborted
	}
	return line, err
}

func (r *linerReader) AppendHistory(line string) {
	r.state.AppendHistory(line)
}

// Close restores the terminal and writes the history file.
func (r *linerReader) Close() error {
	var buf bytes.Buffer
	_, histErr := r.state.WriteHistory(&buf)
	closeErr := r.state.Close()
	if r.history != "" && histErr == nil {
		if err := util.AtomicWriteFileWithDir(r.history, buf.Bytes(), 0600, 0700); err != nil {
			return err
		}
	}
	return closeErr
}

// scanReader reads lines from a non-terminal input.
type scanReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func newScanReader(in io.Reader, out io.Writer) *scanReader {
	return &scanReader{scanner: bufio.NewScanner(in), out: out}
}

func (r *scanReader) Prompt(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	if !r.scanner.Scan() {
		fmt.Fprintln(r.out)
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *scanReader) AppendHistory(string) {}
func (r *scanReader) Close() error         { return nil }

// =============================================================================
// CHAT COMMAND
// =============================================================================

func (a *app) newChatCmd() *cobra.Command {
	var resume string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat line by line without the full-screen interface",
		Long: `Chat reads questions from the prompt and streams each reply below it.

Commands:
  /new      start a new conversation
  /save     save the conversation to history
  /sources  toggle the source list under replies
  /help     show commands
  /quit     leave (Ctrl+D also works)

Ctrl+C cancels a reply that is still streaming.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{logAnnotation: logToFile},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var r lineReader
			if isTerminalReader(a.in) && isTerminalWriter(a.out) {
				r = newLinerReader(a.logger)
			} else {
				r = newScanReader(a.in, a.out)
			}
			defer func() {
				if err := r.Close(); err != nil {
					a.logger.Warn("close line reader", zap.Error(err))
				}
			}()
			return a.runChat(cmd.Context(), r, resume)
		},
	}
	cmd.Flags().StringVar(&resume, "resume", "", "continue a saved conversation by id or id prefix")
	return cmd
}

// repl is one line-oriented chat session.
type repl struct {
	a      *app
	ctrl   *session.Controller
	feed   *feed
	store  *storage.Store
	out    io.Writer
	turns  int

	transcriptID string
	showSources  bool
}

func (a *app) runChat(ctx context.Context, r lineReader, resume string) error {
	store, err := a.openStore()
	if err != nil {
		a.logger.Warn("history unavailable", zap.Error(err))
		store = nil
	}
	if store != nil {
		defer store.Close()
	}

	s := &repl{a: a, store: store, out: a.out, feed: newFeed(), showSources: a.cfg.UI.ShowSources}

	conv := session.NewConversation()
	if resume != "" {
		if store == nil {
			return fmt.Errorf("cannot resume %s: history is not available", resume)
		}
		t, err := store.Resolve(ctx, resume)
		if err != nil {
			return err
		}
		conv = session.Restore(t.Messages, t.Checkpoint)
		s.transcriptID = t.ID
		fmt.Fprintf(s.out, "Resumed %q (%d messages)\n", t.Title, len(t.Messages))
	}

	s.ctrl = a.newController(conv, s.feed.observe)
	defer func() {
		s.feed.close()
		s.ctrl.Shutdown()
	}()

	if resume == "" {
		fmt.Fprintln(s.out, model.Greeting)
	}
	fmt.Fprintln(s.out, "Type /help for commands.")

	for {
		line, err := r.Prompt(chatPrompt)
		if errors.Is(err, io.EOF) || errors.Is(err, errAborted) {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.AppendHistory(line)

		if strings.HasPrefix(line, "/") {
			if quit := s.command(ctx, line); quit {
				return nil
			}
			continue
		}
		if err := s.ask(ctx, line); err != nil {
			return err
		}
	}
}

// ask submits one question and prints its reply.
func (s *repl) ask(ctx context.Context, question string) error {
	s.feed.drain()
	s.turns++

	turnCtx, stop := interruptContext(ctx)
	defer stop()

	printer := newStreamPrinter(s.out, true)
	s.ctrl.Submit(question)
	final, err := s.feed.waitTurn(turnCtx, s.turns, s.ctrl.Cancel, printer.update)
	if err != nil {
		return err
	}
	printer.finish(final, s.showSources)
	if final.State == session.TurnCancelled {
		fmt.Fprintln(s.out, "(cancelled)")
	}
	// A cancelled parent context ends the session after the turn.
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

var chatCommands = []string{"/new", "/save", "/sources", "/help", "/quit"}

func completeCommand(line string) []string {
	if !strings.HasPrefix(line, "/") {
		return nil
	}
	var out []string
	for _, c := range chatCommands {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	return out
}

// command runs a slash command and reports whether the session should end.
func (s *repl) command(ctx context.Context, line string) bool {
	name := strings.ToLower(strings.Fields(line)[0])
	switch name {
	case "/quit", "/exit", "/q":
		return true
	case "/new", "/clear":
		s.ctrl.Reset()
		s.transcriptID = ""
		fmt.Fprintln(s.out, "Started a new conversation.")
		fmt.Fprintln(s.out, model.Greeting)
	case "/save":
		s.save(ctx)
	case "/sources":
		s.showSources = !s.showSources
		if s.showSources {
			fmt.Fprintln(s.out, "Sources shown.")
		} else {
			fmt.Fprintln(s.out, "Sources hidden.")
		}
	case "/help", "/?":
		fmt.Fprintln(s.out, "Commands: /new, /save, /sources, /help, /quit")
	default:
		fmt.Fprintf(s.out, "Unknown command %s. Type /help for a list.\n", name)
	}
	return false
}

func (s *repl) save(ctx context.Context) {
	if s.store == nil {
		fmt.Fprintln(s.out, "History is not available.")
		return
	}
	conv := s.ctrl.Conversation()
	checkpoint, _ := conv.Checkpoint.Get()
	t := storage.NewTranscript(conv.Store.Snapshot(), checkpoint)
	t.ID = s.transcriptID

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	id, err := s.store.Save(ctx, t)
	if err != nil {
		s.a.logger.Error("save transcript", zap.Error(err))
		fmt.Fprintf(s.out, "Save failed: %v\n", err)
		return
	}
	s.transcriptID = id
	fmt.Fprintf(s.out, "Saved %q (%s).\n", t.Title, shortID(id))
}

// shortID returns the first eight characters of id.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
