package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robby/dragboard/internal/config"
	"github.com/robby/dragboard/internal/domain"
	"github.com/robby/dragboard/internal/repo"
)

// errNeedsLocal is returned by editing commands on the github backend.
var errNeedsLocal = errors.New("editing boards needs the local backend (--backend local)")

// localRepo opens the SQLite repository, refusing other backends.
func localRepo(app *App) (*repo.Repo, error) {
	if app.cfg.Backend != config.BackendLocal {
		return nil, errNeedsLocal
	}
	return app.openRepo()
}

func newBoardCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Create, list, show, rename and delete boards",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List boards",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				b, err := app.openBackend()
				if err != nil {
					return err
				}
				boards, err := b.ListBoards(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, board := range boards {
					fmt.Fprintf(out, "%s\t%s\n", board.ID, board.Name)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "add <name>",
			Short: "Create a board",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				r, err := localRepo(app)
				if err != nil {
					return err
				}
				b, err := r.CreateBoard(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), b.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <board>",
			Short: "Print a board with its columns and cards",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				b, err := app.openBackend()
				if err != nil {
					return err
				}
				board, err := findBoard(cmd, b, args[0])
				if err != nil {
					return err
				}
				printBoard(cmd.OutOrStdout(), board)
				return nil
			},
		},
		&cobra.Command{
			Use:   "rename <board> <name>",
			Short: "Rename a board",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				r, err := localRepo(app)
				if err != nil {
					return err
				}
				b, err := r.FindBoard(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return r.RenameBoard(cmd.Context(), b.ID, args[1])
			},
		},
		&cobra.Command{
			Use:   "delete <board>",
			Short: "Delete a board with everything on it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				r, err := localRepo(app)
				if err != nil {
					return err
				}
				b, err := r.FindBoard(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return r.DeleteBoard(cmd.Context(), b.ID)
			},
		},
	)
	return cmd
}

func newColumnCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "column",
		Short: "Add, rename and delete columns",
	}

	var color string
	add := &cobra.Command{
		Use:   "add <board> <name>",
		Short: "Append a column to a board",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := localRepo(app)
			if err != nil {
				return err
			}
			b, err := r.FindBoard(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			col, err := r.AddColumn(cmd.Context(), b.ID, args[1], color)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), col.ID)
			return nil
		},
	}
	add.Flags().StringVar(&color, "color", "", "Color tag (name like green, or an ANSI/hex color)")

	cmd.AddCommand(
		add,
		&cobra.Command{
			Use:   "rename <column-id> <name>",
			Short: "Rename a column",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				r, err := localRepo(app)
				if err != nil {
					return err
				}
				return r.RenameColumn(cmd.Context(), args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "delete <column-id>",
			Short: "Delete a column and its cards",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				r, err := localRepo(app)
				if err != nil {
					return err
				}
				return r.DeleteColumn(cmd.Context(), args[0])
			},
		},
	)
	return cmd
}

func newCardCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Add, edit and delete cards",
	}

	var description, color string
	add := &cobra.Command{
		Use:   "add <column-id> <title>",
		Short: "Append a card to a column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := localRepo(app)
			if err != nil {
				return err
			}
			card, err := r.AddCard(cmd.Context(), args[0], domain.Card{Title: args[1], Description: description, Color: color})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), card.ID)
			return nil
		},
	}
	add.Flags().StringVarP(&description, "description", "d", "", "Card description")
	add.Flags().StringVar(&color, "color", "", "Color tag")

	var title, newDescription, newColor string
	edit := &cobra.Command{
		Use:   "edit <card-id>",
		Short: "Change a card's title, description or color",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := localRepo(app)
			if err != nil {
				return err
			}
			card, err := r.GetCard(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("title") {
				card.Title = title
			}
			if flags.Changed("description") {
				card.Description = newDescription
			}
			if flags.Changed("color") {
				card.Color = newColor
			}
			return r.UpdateCard(cmd.Context(), *card)
		},
	}
	edit.Flags().StringVar(&title, "title", "", "New title")
	edit.Flags().StringVarP(&newDescription, "description", "d", "", "New description")
	edit.Flags().StringVar(&newColor, "color", "", "New color tag")

	cmd.AddCommand(
		add,
		edit,
		&cobra.Command{
			Use:   "delete <card-id>",
			Short: "Delete a card",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				r, err := localRepo(app)
				if err != nil {
					return err
				}
				return r.DeleteCard(cmd.Context(), args[0])
			},
		},
	)
	return cmd
}

func newChecklistCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checklist",
		Short: "Edit card checklists",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <card-id> <text>",
			Short: "Append a checklist item",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				r, err := localRepo(app)
				if err != nil {
					return err
				}
				item, err := r.AddChecklistItem(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), item.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "toggle <item-id>",
			Short: "Check or uncheck an item",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				r, err := localRepo(app)
				if err != nil {
					return err
				}
				return r.ToggleChecklistItem(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "delete <item-id>",
			Short: "Delete an item",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				r, err := localRepo(app)
				if err != nil {
					return err
				}
				return r.DeleteChecklistItem(cmd.Context(), args[0])
			},
		},
	)
	return cmd
}

func newLabelCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "label",
		Short: "Tag cards with labels",
	}

	var color string
	add := &cobra.Command{
		Use:   "add <card-id> <name>",
		Short: "Attach a label, creating it when needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := localRepo(app)
			if err != nil {
				return err
			}
			l, err := r.EnsureLabel(cmd.Context(), args[1], color)
			if err != nil {
				return err
			}
			return r.AttachLabel(cmd.Context(), args[0], l.ID)
		},
	}
	add.Flags().StringVar(&color, "color", "", "Color of a new label")

	cmd.AddCommand(
		add,
		&cobra.Command{
			Use:   "remove <card-id> <name>",
			Short: "Detach a label from a card",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				r, err := localRepo(app)
				if err != nil {
					return err
				}
				labels, err := r.ListLabels(cmd.Context())
				if err != nil {
					return err
				}
				for _, l := range labels {
					if strings.EqualFold(l.Name, args[1]) {
						return r.DetachLabel(cmd.Context(), args[0], l.ID)
					}
				}
				return fmt.Errorf("label %s: %w", args[1], repo.ErrNotFound)
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List labels",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				r, err := localRepo(app)
				if err != nil {
					return err
				}
				labels, err := r.ListLabels(cmd.Context())
				if err != nil {
					return err
				}
				for _, l := range labels {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", l.Name, l.Color)
				}
				return nil
			},
		},
	)
	return cmd
}

func newAttachmentCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attachment",
		Short: "Attach links to cards",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <card-id> <url> [name]",
			Short: "Attach a link",
			Args:  cobra.RangeArgs(2, 3),
			RunE: func(cmd *cobra.Command, args []string) error {
				r, err := localRepo(app)
				if err != nil {
					return err
				}
				name := args[1]
				if len(args) == 3 {
					name = args[2]
				}
				a, err := r.AddAttachment(cmd.Context(), args[0], name, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), a.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <attachment-id>",
			Short: "Remove an attachment",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				r, err := localRepo(app)
				if err != nil {
					return err
				}
				return r.DeleteAttachment(cmd.Context(), args[0])
			},
		},
	)
	return cmd
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or write the configuration file",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Write the effective configuration to the config file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := config.Save(app.ConfigPath, app.cfg); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), app.ConfigPath)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				c := app.cfg
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "backend: %s\n", c.Backend)
				fmt.Fprintf(out, "storage.path: %s\n", c.Storage.Path)
				fmt.Fprintf(out, "log.level: %s\n", c.Log.Level)
				fmt.Fprintf(out, "log.file: %s\n", c.Log.File)
				fmt.Fprintf(out, "drag.threshold: %g\n", c.Drag.Threshold)
				fmt.Fprintf(out, "resolver.edge_band: %g\n", c.Resolver.EdgeBand)
				fmt.Fprintf(out, "resolver.max_scroll_step: %g\n", c.Resolver.MaxScrollStep)
				fmt.Fprintf(out, "resolver.stale_after: %s\n", c.Resolver.StaleAfter)
				fmt.Fprintf(out, "reorder.timeout: %s\n", c.Reorder.Timeout)
				fmt.Fprintf(out, "github.owner: %s\n", c.GitHub.Owner)
				fmt.Fprintf(out, "github.project: %s\n", c.GitHub.Project)
				fmt.Fprintf(out, "github.group_field: %s\n", c.GitHub.GroupField)
				fmt.Fprintf(out, "github.token_env: %s\n", c.GitHub.TokenEnv)
			},
		},
	)
	return cmd
}

// findBoard resolves ref by ID or case-insensitive name and loads it.
func findBoard(cmd *cobra.Command, b backend, ref string) (*domain.Board, error) {
	boards, err := b.ListBoards(cmd.Context())
	if err != nil {
		return nil, err
	}
	id := ""
	for _, board := range boards {
		if board.ID == ref {
			id = board.ID
			break
		}
		if id == "" && strings.EqualFold(board.Name, ref) {
			id = board.ID
		}
	}
	if id == "" {
		return nil, fmt.Errorf("board %s: %w", ref, repo.ErrNotFound)
	}
	return b.LoadBoard(cmd.Context(), id)
}

func printBoard(w io.Writer, b *domain.Board) {
	fmt.Fprintf(w, "%s (%s)\n", b.Name, b.ID)
	for _, col := range b.Columns {
		fmt.Fprintf(w, "  [%d] %s (%s)\n", col.Position, col.Name, col.ID)
		for _, card := range col.Cards {
			line := fmt.Sprintf("      %d. %s (%s)", card.Position, card.Title, card.ID)
			if n := len(card.Checklist); n > 0 {
				done := 0
				for _, it := range card.Checklist {
					if it.Checked {
						done++
					}
				}
				line += fmt.Sprintf(" [%d/%d]", done, n)
			}
			for _, l := range card.Labels {
				line += " #" + l.Name
			}
			fmt.Fprintln(w, line)
		}
	}
}
