// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/searchchat/internal/model"
	"github.com/jeranaias/searchchat/internal/session"
	"github.com/jeranaias/searchchat/internal/storage"
	"github.com/jeranaias/searchchat/internal/ui/components"
	"github.com/jeranaias/searchchat/internal/ui/styles"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Controller is the part of *session.Controller the view drives.
type Controller interface {
	Submit(input string)
	Cancel()
	Reset()
}

// Saver persists conversations. *storage.Store implements it.
type Saver interface {
	Save(ctx context.Context, t *storage.Transcript) (string, error)
}

// saveTimeout bounds one transcript save.
const saveTimeout = 5 * time.Second

// Options configures a chat Model.
type Options struct {
	Controller Controller

	// Saver is optional; without it saving reports an error notice.
	Saver Saver

	// Messages and Checkpoint seed the view, e.g. a resumed transcript.
	// Empty Messages shows the greeting.
	Messages   []model.Message
	Checkpoint string

	// TranscriptID continues saving into an existing transcript.
	TranscriptID string

	// Title is shown in the header.
	Title string

	Markdown    bool
	ShowSources bool

	Theme  *styles.Theme
	Logger *zap.Logger
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the chat view.
type Model struct {
	theme  *styles.Theme
	keys   KeyMap
	ctrl   Controller
	saver  Saver
	logger *zap.Logger

	input     textinput.Model
	viewport  viewport.Model
	spinner   components.Spinner
	statusBar *components.StatusBar
	markdown  *components.Markdown

	title        string
	messages     []model.Message
	state        session.TurnState
	checkpoint   string
	transcriptID string

	showSources bool
	useMarkdown bool
	showHelp    bool
	notice      string
	noticeErr   bool

	width    int
	height   int
	ready    bool
	quitting bool
}

// New creates a chat model.
func New(opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Title == "" {
		opts.Title = "searchchat"
	}
	msgs := opts.Messages
	if len(msgs) == 0 {
		msgs = []model.Message{model.NewAssistantMessage(1, model.Greeting)}
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask anything..."
	ti.CharLimit = 4096
	ti.Focus()

	m := Model{
		theme:        opts.Theme,
		keys:         DefaultKeyMap(),
		ctrl:         opts.Controller,
		saver:        opts.Saver,
		logger:       opts.Logger,
		input:        ti,
		viewport:     viewport.New(80, 20),
		spinner:      components.NewSpinner(opts.Theme),
		statusBar:    components.NewStatusBar(opts.Theme),
		title:        opts.Title,
		messages:     msgs,
		checkpoint:   opts.Checkpoint,
		transcriptID: opts.TranscriptID,
		showSources:  opts.ShowSources,
		useMarkdown:  opts.Markdown,
		width:        80,
		height:       24,
	}
	if opts.Markdown {
		m.markdown = components.NewMarkdown(76)
	}
	m.statusBar.SetShortcuts(shortcuts(m.keys.ShortHelp()))
	return m
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Messages returns the messages currently shown.
func (m Model) Messages() []model.Message {
	return m.messages
}

// State returns the state of the latest turn.
func (m Model) State() session.TurnState {
	return m.state
}

// Checkpoint returns the conversation's checkpoint id, if any.
func (m Model) Checkpoint() string {
	return m.checkpoint
}

// TranscriptID returns the id the conversation is saved under, if saved.
func (m Model) TranscriptID() string {
	return m.transcriptID
}

// Notice returns the current status notice.
func (m Model) Notice() string {
	return m.notice
}

// ShowSources reports whether sources are listed under replies.
func (m Model) ShowSources() bool {
	return m.showSources
}
