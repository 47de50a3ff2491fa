// Package tui provides the Bubble Tea models of the interactive board.
package tui

import (
	"github.com/robby/dragboard/internal/domain"
	"github.com/robby/dragboard/internal/reorder"
	"github.com/robby/dragboard/internal/store"
)

// BoardSelectedMsg is emitted when the user picks a board.
type BoardSelectedMsg struct {
	Board *domain.Board
}

// ErrorMsg is emitted when an error occurs.
type ErrorMsg struct {
	Err error
}

// QuitMsg is emitted when the user requests to quit.
type QuitMsg struct{}

// Internal messages.
type (
	boardsLoadedMsg struct {
		boards []*domain.Board
	}

	boardLoadedMsg struct {
		boardID string
	}

	// storeUpdateMsg carries one entry of the board snapshot stream.
	storeUpdateMsg struct {
		update store.Update
	}

	// failureMsg carries one reorder failure.
	failureMsg struct {
		failure reorder.Failure
	}

	autoScrollMsg struct{}

	openDetailMsg struct {
		card   *domain.Card
		column string
	}

	closeDetailMsg struct {
		changed bool
	}

	reloadBoardMsg struct{}
	showPickerMsg  struct{}
)
