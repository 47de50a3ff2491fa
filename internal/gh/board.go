package gh

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/robby/dragboard/internal/domain"
	"github.com/robby/dragboard/internal/ordered"
)

// NoStatusName is the display name of the column holding items whose
// grouping field is unset.
const NoStatusName = "No Status"

// ErrColumnMoveUnsupported is returned by MoveColumn: a project's column
// order is the option order of its grouping field.
var ErrColumnMoveUnsupported = errors.New("column order of a GitHub project cannot be changed")

// NoStatusColumnID returns the column ID used for unset field values.
func NoStatusColumnID(projectID string) string {
	return projectID + "/_no_status_"
}

// BackendOptions configures a Backend.
type BackendOptions struct {
	// Owner limits ListBoards to one user or organization login. Empty
	// lists the viewer's projects and those of their organizations.
	Owner string
	// GroupField names the SINGLE_SELECT field whose options become
	// columns. Empty picks one with SelectGroupField.
	GroupField string
	Logger     *log.Logger
}

// Backend exposes GitHub Projects v2 as boards. It implements the
// reorder gateway: card moves set the grouping field and the item's
// position in the project.
type Backend struct {
	client *Client
	opts   BackendOptions
	logger *log.Logger

	mu       sync.Mutex
	projects map[string]*projectState
	cards    map[string]*projectState
}

type projectState struct {
	mu      sync.Mutex
	project Project
	field   Field
	columns map[string][]*itemRef
	cardCol map[string]string
}

// itemRef mirrors the position of an item inside its column so moves can
// compute the afterId GitHub expects.
type itemRef struct {
	ID       string
	Position int
}

func (r *itemRef) Key() string         { return r.ID }
func (r *itemRef) SetPosition(pos int) { r.Position = pos }

// NewBackend creates a backend on top of client.
func NewBackend(client *Client, opts BackendOptions) *Backend {
	logger := opts.Logger
	if logger == nil {
		logger = log.New()
	}
	return &Backend{
		client:   client,
		opts:     opts,
		logger:   logger,
		projects: make(map[string]*projectState),
		cards:    make(map[string]*projectState),
	}
}

// ListBoards lists the accessible projects as boards without columns.
func (b *Backend) ListBoards(ctx context.Context) ([]*domain.Board, error) {
	var owners []Owner
	if b.opts.Owner != "" {
		owner, err := b.client.ResolveOwner(ctx, b.opts.Owner)
		if err != nil {
			return nil, err
		}
		owners = []Owner{owner}
	} else {
		var err error
		owners, err = b.client.GetViewerAndOrgs(ctx)
		if err != nil {
			return nil, err
		}
	}

	var boards []*domain.Board
	for _, owner := range owners {
		projects, err := b.client.ListProjects(ctx, owner)
		if err != nil {
			return nil, err
		}
		for _, p := range projects {
			boards = append(boards, &domain.Board{
				ID:       p.ID,
				Name:     fmt.Sprintf("%s/%d %s", p.Owner, p.Number, p.Title),
				Position: len(boards),
			})
		}
	}
	return boards, nil
}

// LoadBoard fetches a project with all its items. Columns follow the
// grouping field's options; the "No Status" column comes last.
func (b *Backend) LoadBoard(ctx context.Context, projectID string) (*domain.Board, error) {
	project, err := b.client.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	fields, err := b.client.GetProjectFields(ctx, projectID)
	if err != nil {
		return nil, err
	}
	field, err := b.groupField(fields)
	if err != nil {
		return nil, err
	}
	items, err := b.client.GetAllItems(ctx, projectID, field.Name)
	if err != nil {
		return nil, err
	}

	board := &domain.Board{ID: project.ID, Name: project.Title}
	byID := make(map[string]*domain.Column, len(field.Options)+1)
	for _, opt := range field.Options {
		col := &domain.Column{ID: opt.ID, BoardID: project.ID, Name: opt.Name, Color: strings.ToLower(opt.Color), Position: len(board.Columns)}
		board.Columns = append(board.Columns, col)
		byID[col.ID] = col
	}
	noStatus := &domain.Column{ID: NoStatusColumnID(project.ID), BoardID: project.ID, Name: NoStatusName, Position: len(board.Columns)}
	board.Columns = append(board.Columns, noStatus)

	state := &projectState{
		project: project,
		field:   *field,
		columns: make(map[string][]*itemRef, len(board.Columns)),
		cardCol: make(map[string]string, len(items)),
	}

	for _, item := range items {
		col, ok := byID[item.OptionID]
		if !ok {
			col = noStatus
		}
		card := itemToCard(item)
		card.ColumnID = col.ID
		card.Position = len(col.Cards)
		col.Cards = append(col.Cards, card)
		state.columns[col.ID] = append(state.columns[col.ID], &itemRef{ID: item.ID, Position: card.Position})
		state.cardCol[item.ID] = col.ID
	}
	for _, col := range board.Columns {
		if _, ok := state.columns[col.ID]; !ok {
			state.columns[col.ID] = nil
		}
	}

	b.mu.Lock()
	if old, ok := b.projects[projectID]; ok {
		for id := range old.cardCol {
			delete(b.cards, id)
		}
	}
	b.projects[projectID] = state
	for id := range state.cardCol {
		b.cards[id] = state
	}
	b.mu.Unlock()

	b.logger.WithFields(log.Fields{
		"project": project.ID,
		"field":   field.Name,
		"items":   len(items),
	}).Debug("Project loaded")
	return board, nil
}

func (b *Backend) groupField(fields []Field) (*Field, error) {
	if b.opts.GroupField != "" {
		return FieldByName(fields, b.opts.GroupField)
	}
	selected, candidates, err := SelectGroupField(fields)
	if err != nil {
		return nil, err
	}
	if selected == nil {
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.Name
		}
		return nil, fmt.Errorf("several SINGLE_SELECT fields found (%s), set github.group_field", strings.Join(names, ", "))
	}
	return selected, nil
}

// MoveCard sets the grouping field of an item to the destination column
// and positions it right after the card preceding destIndex.
func (b *Backend) MoveCard(ctx context.Context, cardID, destColumnID string, destIndex int) error {
	b.mu.Lock()
	state, ok := b.cards[cardID]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: item %s is not on a loaded project", domain.ErrInvalidMove, cardID)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	srcColumnID := state.cardCol[cardID]
	if _, ok := state.columns[destColumnID]; !ok {
		return fmt.Errorf("%w: column %s is not part of project %s", domain.ErrInvalidMove, destColumnID, state.project.ID)
	}

	// Work on copies so a failed call leaves the mirror intact.
	src := ordered.From(cloneRefs(state.columns[srcColumnID]))
	dst := src
	if destColumnID != srcColumnID {
		dst = ordered.From(cloneRefs(state.columns[destColumnID]))
		if err := ordered.MoveAcrossParents(src, dst, cardID, destIndex); err != nil {
			return err
		}
	} else if _, err := src.MoveWithinParent(cardID, destIndex); err != nil {
		return err
	}

	projectID := state.project.ID
	if destColumnID != srcColumnID {
		if err := b.setStatus(ctx, state, cardID, destColumnID); err != nil {
			return err
		}
	}

	afterID := ""
	if destIndex > 0 {
		afterID = dst.Items()[destIndex-1].ID
	}
	if err := b.client.UpdateItemPosition(ctx, projectID, cardID, afterID); err != nil {
		if destColumnID == srcColumnID {
			return err
		}
		// Put the item back in its old column so the project matches the mirror.
		revertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), revertTimeout)
		defer cancel()
		if rerr := b.setStatus(revertCtx, state, cardID, srcColumnID); rerr != nil {
			b.logger.WithError(rerr).WithFields(log.Fields{
				"item":   cardID,
				"column": srcColumnID,
			}).Error("Failed to restore project item status")
			return errors.Join(err, fmt.Errorf("restoring status of %s: %w", cardID, rerr))
		}
		return err
	}

	state.columns[srcColumnID] = src.Items()
	state.columns[destColumnID] = dst.Items()
	state.cardCol[cardID] = destColumnID

	b.logger.WithFields(log.Fields{
		"item":   cardID,
		"column": destColumnID,
		"after":  afterID,
	}).Debug("Project item moved")
	return nil
}

// revertTimeout bounds the call that undoes a half-applied move.
const revertTimeout = 10 * time.Second

// setStatus points the item's grouping field at columnID, clearing it for
// the No Status column. state.mu must be held.
func (b *Backend) setStatus(ctx context.Context, state *projectState, itemID, columnID string) error {
	projectID := state.project.ID
	if columnID == NoStatusColumnID(projectID) {
		return b.client.ClearItemField(ctx, projectID, itemID, state.field.ID)
	}
	return b.client.UpdateItemField(ctx, projectID, itemID, state.field.ID, columnID)
}

// MoveColumn always fails with ErrColumnMoveUnsupported.
func (b *Backend) MoveColumn(ctx context.Context, columnID string, destIndex int) error {
	return ErrColumnMoveUnsupported
}

func cloneRefs(refs []*itemRef) []*itemRef {
	out := make([]*itemRef, len(refs))
	for i, r := range refs {
		c := *r
		out[i] = &c
	}
	return out
}

func itemToCard(item Item) *domain.Card {
	card := &domain.Card{
		ID:          item.ID,
		Title:       item.Title,
		Description: item.Body,
	}
	if t, err := time.Parse(time.RFC3339, item.CreatedAt); err == nil {
		card.CreatedAt = t
		card.UpdatedAt = t
	}
	for _, name := range item.Labels {
		card.Labels = append(card.Labels, domain.Label{Name: name})
	}
	if item.URL != "" {
		name := item.URL
		if item.Repo != "" && item.Number > 0 {
			name = fmt.Sprintf("%s#%d", item.Repo, item.Number)
		}
		card.Attachments = append(card.Attachments, domain.Attachment{CardID: item.ID, Name: name, URL: item.URL})
	}
	return card
}
