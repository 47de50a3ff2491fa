package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/robby/dragboard/internal/domain"
	"github.com/robby/dragboard/internal/reorder"
	"github.com/robby/dragboard/internal/store"
)

func newMoveCmd(app *App) *cobra.Command {
	var boardRef string

	cmd := &cobra.Command{
		Use:   "move",
		Short: "Reorder cards and columns without the TUI",
		Long: `Move a card or a column the same way a drop in the TUI does: the move
is validated against the current board, applied, then saved. A failed save
is reported and the command exits non-zero.`,
	}
	cmd.PersistentFlags().StringVarP(&boardRef, "board", "b", "", "Board ID or name (required)")
	_ = cmd.MarkPersistentFlagRequired("board")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "card <card-id> <column-id> <index>",
			Short: "Move a card to a column at a 0-based index",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				index, err := strconv.Atoi(args[2])
				if err != nil {
					return fmt.Errorf("index %q: %w", args[2], err)
				}
				return runMove(cmd, app, boardRef, func(b *domain.Board) (domain.Move, error) {
					_, col, from := b.Card(args[0])
					if col == nil {
						return domain.Move{}, fmt.Errorf("card %s is not on board %s", args[0], b.Name)
					}
					return domain.Move{
						BoardID:    b.ID,
						Kind:       domain.KindCard,
						ItemID:     args[0],
						FromParent: col.ID,
						FromIndex:  from,
						ToParent:   args[1],
						ToIndex:    index,
					}, nil
				})
			},
		},
		&cobra.Command{
			Use:   "column <column-id> <index>",
			Short: "Move a column to a 0-based index",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				index, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("index %q: %w", args[1], err)
				}
				return runMove(cmd, app, boardRef, func(b *domain.Board) (domain.Move, error) {
					col, from := b.Column(args[0])
					if col == nil {
						return domain.Move{}, fmt.Errorf("column %s is not on board %s", args[0], b.Name)
					}
					return domain.Move{
						BoardID:    b.ID,
						Kind:       domain.KindColumn,
						ItemID:     col.ID,
						FromParent: b.ID,
						FromIndex:  from,
						ToParent:   b.ID,
						ToIndex:    index,
					}, nil
				})
			},
		},
	)
	return cmd
}

// runMove loads the board into a store, submits the move built by plan and
// waits for it to be saved.
func runMove(cmd *cobra.Command, app *App, boardRef string, plan func(*domain.Board) (domain.Move, error)) error {
	b, err := app.openBackend()
	if err != nil {
		return err
	}
	board, err := findBoard(cmd, b, boardRef)
	if err != nil {
		return err
	}

	st := store.New()
	st.SetBoard(board)

	m, err := plan(board)
	if err != nil {
		return err
	}

	rec := &reorder.Recorder{}
	exec := reorder.New(cmd.Context(), st, b, reorder.Options{
		Sink:    reorder.MultiSink{reorder.LogSink{Logger: app.logger}, rec},
		Logger:  app.logger,
		Timeout: app.cfg.Reorder.Timeout,
	})
	defer exec.Close()

	if err := exec.Submit(m); err != nil {
		return err
	}
	exec.Wait()

	if failures := rec.Failures(); len(failures) > 0 {
		errs := make([]error, 0, len(failures))
		for _, f := range failures {
			errs = append(errs, f)
		}
		return errors.Join(errs...)
	}

	after, err := st.Board(board.ID)
	if err != nil {
		return err
	}
	printBoard(cmd.OutOrStdout(), after)
	return nil
}
