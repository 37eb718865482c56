// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/searchchat/internal/config"
	"github.com/jeranaias/searchchat/internal/logging"
	"github.com/jeranaias/searchchat/internal/session"
	"github.com/jeranaias/searchchat/internal/storage"
	"github.com/jeranaias/searchchat/internal/stream"
)

// Version is the searchchat version, set at build time.
var Version = "dev"

// =============================================================================
// LOG DESTINATIONS
// =============================================================================

// logAnnotation selects where a command logs.
const logAnnotation = "searchchat/log"

const (
	// logToFile is for commands that own the terminal.
	logToFile = "file"
	// logToStderr logs at the configured level.
	logToStderr = "stderr"
	// logQuiet logs warnings and errors to stderr unless --verbose is set.
	logQuiet = "quiet"
)

// skipConfigAnnotation marks commands that must run without a valid config.
const skipConfigAnnotation = "searchchat/skip-config"

// =============================================================================
// APPLICATION STATE
// =============================================================================

type globalOptions struct {
	apiURL     string
	configPath string
	verbose    bool
}

// app carries what every command needs once flags are parsed.
type app struct {
	opts   globalOptions
	cfg    *config.Config
	logger *zap.Logger

	out    io.Writer
	errOut io.Writer
	in     io.Reader
}

// NewRootCmd builds the searchchat command tree.
func NewRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "searchchat",
		Short: "Chat with a search-augmented assistant from the terminal",
		Long: `searchchat streams answers from a search-augmented chat backend.

Replies show what the assistant searched for and which sources it read.
Conversations can be saved, searched and exported.

Run without arguments to start the chat interface.

Quick Start:
  searchchat serve &                     # start the demo backend
  searchchat                             # open the chat interface
  searchchat ask "weather in Paris?"     # one-shot question`,
		Version:           Version,
		Annotations:       map[string]string{logAnnotation: logToFile},
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: a.teardown,
		RunE:              a.runTUI,
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	flags := root.PersistentFlags()
	flags.StringVar(&a.opts.apiURL, "api-url", "", "backend base address (overrides api.url)")
	flags.StringVar(&a.opts.configPath, "config", "", "config file (default ~/.searchchat/config.toml)")
	flags.BoolVarP(&a.opts.verbose, "verbose", "v", false, "enable debug logging")
	root.Flags().String("resume", "", "continue a saved conversation by id or id prefix")

	root.AddCommand(
		a.newChatCmd(),
		a.newAskCmd(),
		a.newServeCmd(),
		a.newConfigCmd(),
		a.newHistoryCmd(),
	)
	return root
}

// Execute runs the command line and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// SETUP
// =============================================================================

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.out = cmd.OutOrStdout()
	a.errOut = cmd.ErrOrStderr()
	a.in = cmd.InOrStdin()

	if annotation(cmd, skipConfigAnnotation) != "" {
		a.cfg = config.Default()
		return nil
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := a.buildLogger(annotation(cmd, logAnnotation))
	if err != nil {
		return err
	}
	a.logger = logger
	a.logger.Debug("config loaded", zap.String("api_url", cfg.API.URL), zap.String("command", cmd.CommandPath()))
	return nil
}

func (a *app) teardown(*cobra.Command, []string) {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// loadConfig reads the config file and applies the --api-url flag last.
func (a *app) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if a.opts.configPath != "" {
		cfg, err = config.LoadFromPath(a.opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if a.opts.apiURL != "" {
		cfg.API.URL = strings.TrimSpace(a.opts.apiURL)
	}
	return cfg, nil
}

func (a *app) buildLogger(dest string) (*zap.Logger, error) {
	opts := logging.Options{
		Level:   a.cfg.Log.Level,
		Verbose: a.opts.verbose,
	}
	switch dest {
	case logToFile:
		file, err := a.cfg.LogFile()
		if err != nil {
			return nil, err
		}
		opts.File = file
	case logToStderr:
		opts.Console = true
	default:
		opts.Console = true
		if !a.opts.verbose {
			opts.Level = "warn"
		}
	}
	return logging.New(opts)
}

// annotation returns the nearest value of key on cmd or its parents.
func annotation(cmd *cobra.Command, key string) string {
	for c := cmd; c != nil; c = c.Parent() {
		if v, ok := c.Annotations[key]; ok {
			return v
		}
	}
	return ""
}

// =============================================================================
// SHARED CONSTRUCTION
// =============================================================================

// historyDBName is the transcript database file inside the transcript dir.
const historyDBName = "history.db"

// openStore opens the transcript store.
func (a *app) openStore() (*storage.Store, error) {
	dir, err := a.cfg.TranscriptDir()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(filepath.Join(dir, historyDBName))
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	store.MaxTranscripts = a.cfg.Storage.MaxTranscripts
	return store, nil
}

// newController wires a session controller to the configured backend.
func (a *app) newController(conv *session.Conversation, observer func(session.Snapshot)) *session.Controller {
	opts := session.Options{
		BaseURL:        a.cfg.API.URL,
		ConnectTimeout: a.cfg.API.ConnectTimeout(),
		ConnectGrace:   a.cfg.API.ConnectGrace(),
		Dialer: stream.NewClient(
			stream.WithRetry(a.cfg.API.Retry()),
			stream.WithLogger(a.logger.Named("stream")),
		),
		Logger:   a.logger.Named("session"),
		Observer: observer,
	}
	if a.cfg.API.Probe {
		opts.Prober = stream.NewProber(a.cfg.API.ProbeTimeout(), a.logger.Named("probe"))
	}
	return session.NewController(conv, opts)
}
