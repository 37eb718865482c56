// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/searchchat/internal/export"
	"github.com/jeranaias/searchchat/internal/storage"
	"github.com/jeranaias/searchchat/internal/ui/components"
	"github.com/jeranaias/searchchat/internal/util"
)

// =============================================================================
// HISTORY COMMAND
// =============================================================================

const (
	titleColumnWidth = 40
	dateLayout       = "2006-01-02 15:04"
)

func (a *app) newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"hist"},
		Short:   "List, search and export saved conversations",
		Long: `Saved conversations are written with /save or Ctrl+S in the chat
interface. Any command that takes an id also accepts a unique id prefix.`,
		Annotations: map[string]string{logAnnotation: logQuiet},
	}
	cmd.AddCommand(
		a.newHistoryListCmd(),
		a.newHistorySearchCmd(),
		a.newHistoryShowCmd(),
		a.newHistoryExportCmd(),
		a.newHistoryDeleteCmd(),
	)
	return cmd
}

// withStore opens the store for the duration of fn.
func (a *app) withStore(fn func(*storage.Store) error) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func (a *app) newHistoryListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved conversations, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(func(s *storage.Store) error {
				metas, err := s.List(cmd.Context())
				if err != nil {
					return err
				}
				return writeMetas(a.out, metas, asJSON, "No saved conversations.")
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func (a *app) newHistorySearchCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Find conversations whose title or messages contain text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return a.withStore(func(s *storage.Store) error {
				metas, err := s.Search(cmd.Context(), query)
				if err != nil {
					return err
				}
				return writeMetas(a.out, metas, asJSON, fmt.Sprintf("No conversations match %q.", query))
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func (a *app) newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *storage.Store) error {
				t, err := s.Resolve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				opts := export.DefaultOptions()
				opts.IncludeMetadata = false
				opts.IncludeSources = a.cfg.UI.ShowSources
				content, err := export.NewMarkdownExporter(opts).Export(t)
				if err != nil {
					return err
				}
				if a.cfg.UI.Markdown && isTerminalWriter(a.out) {
					fmt.Fprintln(a.out, components.NewMarkdown(GetTerminalWidth()).Render(string(content)))
					return nil
				}
				_, err = a.out.Write(content)
				return err
			})
		},
	}
}

func (a *app) newHistoryExportCmd() *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a saved conversation to a file",
		Example: `  searchchat history export 7f3c
  searchchat history export 7f3c --format json --output -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exporter, err := export.ForFormat(format, export.DefaultOptions())
			if err != nil {
				return err
			}
			return a.withStore(func(s *storage.Store) error {
				t, err := s.Resolve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if output == "-" {
					content, err := exporter.Export(t)
					if err != nil {
						return err
					}
					_, err = a.out.Write(content)
					return err
				}
				path, err := export.ToFile(t, exporter, output)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Exported to %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "export format ("+strings.Join(export.Formats(), ", ")+")")
	cmd.Flags().StringVarP(&output, "output", "o", ".", "output directory, or - for stdout")
	return cmd
}

func (a *app) newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved conversation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *storage.Store) error {
				t, err := s.Resolve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := s.Delete(cmd.Context(), t.ID); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Deleted %q (%s)\n", t.Title, shortID(t.ID))
				return nil
			})
		},
	}
}

// writeMetas prints transcript metadata as a table or JSON.
func writeMetas(w io.Writer, metas []storage.TranscriptMeta, asJSON bool, empty string) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(metas)
	}
	if len(metas) == 0 {
		fmt.Fprintln(w, empty)
		return nil
	}
	fmt.Fprintf(w, "%-8s  %-16s  %5s  %s\n", "ID", "UPDATED", "MSGS", "TITLE")
	for _, m := range metas {
		fmt.Fprintf(w, "%-8s  %-16s  %5d  %s\n",
			shortID(m.ID),
			m.UpdatedAt.Local().Format(dateLayout),
			m.MessageCount,
			util.TruncateWidth(m.Title, titleColumnWidth),
		)
	}
	return nil
}
