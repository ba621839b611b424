// Package canvas holds the ordered block list of a page during an editing
// session, together with the selection and drag state of the builder.
// Selection and drag state are view state only and are never part of the
// persisted page document.
package canvas

import (
	"encoding/json"
	"errors"
	"fmt"

	"go-storefront/internal/block"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an operation names a block id or index that
// is not on the canvas.
var ErrNotFound = errors.New("block not found")

// IDFunc generates a new block id.
type IDFunc func() string

// NewBlockID returns a collision-resistant block id.
func NewBlockID() string {
	return "block-" + uuid.NewString()
}

// Canvas is the in-memory ordered block list of one page.
// It is not safe for concurrent use; an editing session has one writer.
type Canvas struct {
	registry *block.Registry
	newID    IDFunc
	blocks   []block.Block
	selected string
	dragging string
}

// Option configures a Canvas.
type Option func(*Canvas)

// WithIDFunc overrides block id generation.
func WithIDFunc(f IDFunc) Option {
	return func(c *Canvas) { c.newID = f }
}

// New creates a canvas over a copy of blocks. Blocks without an id, or
// whose id repeats an earlier block's, get a fresh id so ids are unique.
func New(reg *block.Registry, blocks []block.Block, opts ...Option) *Canvas {
	c := &Canvas{registry: reg, newID: NewBlockID}
	for _, opt := range opts {
		opt(c)
	}
	c.blocks = block.CloneAll(blocks)
	seen := make(map[string]struct{}, len(c.blocks))
	for i := range c.blocks {
		if _, dup := seen[c.blocks[i].ID]; dup || c.blocks[i].ID == "" {
			c.blocks[i].ID = c.uniqueID(seen)
		}
		seen[c.blocks[i].ID] = struct{}{}
	}
	return c
}

func (c *Canvas) uniqueID(taken map[string]struct{}) string {
	for {
		id := c.newID()
		if _, ok := taken[id]; !ok && id != "" {
			return id
		}
	}
}

func (c *Canvas) ids() map[string]struct{} {
	m := make(map[string]struct{}, len(c.blocks))
	for _, b := range c.blocks {
		m[b.ID] = struct{}{}
	}
	return m
}

// Blocks returns a copy of the ordered block list.
func (c *Canvas) Blocks() []block.Block {
	return block.CloneAll(c.blocks)
}

// Len returns the number of blocks.
func (c *Canvas) Len() int { return len(c.blocks) }

// Index returns the position of the block with id, or -1.
func (c *Canvas) Index(id string) int {
	for i, b := range c.blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// Block returns a copy of the block with id.
func (c *Canvas) Block(id string) (block.Block, error) {
	i := c.Index(id)
	if i < 0 {
		return block.Block{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.blocks[i].Clone(), nil
}

// AddBlock appends a new block of type t with registry defaults.
func (c *Canvas) AddBlock(t block.Type) (block.Block, error) {
	content, err := c.registry.Defaults(t)
	if err != nil {
		return block.Block{}, err
	}
	b := block.Block{ID: c.uniqueID(c.ids()), Type: t, Content: content}
	c.blocks = append(c.blocks, b)
	return b.Clone(), nil
}

// UpdateContent replaces the content of the block with id in place.
// The content is normalized through the registry when the type is known.
func (c *Canvas) UpdateContent(id string, content json.RawMessage) error {
	i := c.Index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	updated := c.blocks[i].Clone()
	updated.Content = append(json.RawMessage(nil), content...)
	if normalized, err := c.registry.Normalize(updated); err == nil {
		updated = normalized
	}
	c.blocks[i] = updated
	return nil
}

// ReplaceBlock swaps in b for the block with the same id, keeping its
// position. The type of the stored block is kept.
func (c *Canvas) ReplaceBlock(b block.Block) error {
	i := c.Index(b.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, b.ID)
	}
	if b.Type != c.blocks[i].Type {
		return fmt.Errorf("replace block %s: type %q does not match %q", b.ID, b.Type, c.blocks[i].Type)
	}
	c.blocks[i] = b.Clone()
	return nil
}

// DeleteBlock removes the block with id and reports whether it existed.
// Deleting the selected block clears the selection.
func (c *Canvas) DeleteBlock(id string) bool {
	i := c.Index(id)
	if i < 0 {
		return false
	}
	c.blocks = append(c.blocks[:i], c.blocks[i+1:]...)
	if c.selected == id {
		c.selected = ""
	}
	if c.dragging == id {
		c.dragging = ""
	}
	return true
}

// Reorder moves the block at from to position to: it is removed at from
// and inserted at to in the shorter list, so all other blocks keep their
// relative order. A to past the end appends. from == to is a no-op.
func (c *Canvas) Reorder(from, to int) error {
	if from < 0 || from >= len(c.blocks) {
		return fmt.Errorf("%w: index %d", ErrNotFound, from)
	}
	if to < 0 {
		to = 0
	}
	if to > len(c.blocks)-1 {
		to = len(c.blocks) - 1
	}
	if from == to {
		return nil
	}
	moved := c.blocks[from]
	rest := append(c.blocks[:from:from], c.blocks[from+1:]...)
	out := make([]block.Block, 0, len(c.blocks))
	out = append(out, rest[:to]...)
	out = append(out, moved)
	out = append(out, rest[to:]...)
	c.blocks = out
	return nil
}

// Move drops the block activeID onto the position of overID, as a drag
// and drop between two blocks does. Dropping a block onto itself is a no-op.
func (c *Canvas) Move(activeID, overID string) error {
	from := c.Index(activeID)
	if from < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, activeID)
	}
	to := c.Index(overID)
	if to < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, overID)
	}
	return c.Reorder(from, to)
}

// Select marks the block with id as being edited.
func (c *Canvas) Select(id string) error {
	if c.Index(id) < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	c.selected = id
	return nil
}

// ClearSelection deselects any block.
func (c *Canvas) ClearSelection() { c.selected = "" }

// Selected returns the selected block id, or "".
func (c *Canvas) Selected() string { return c.selected }

// BeginDrag records the block being dragged.
func (c *Canvas) BeginDrag(id string) error {
	if c.Index(id) < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	c.dragging = id
	return nil
}

// EndDrag drops the dragged block onto overID. An empty overID cancels
// the drag without moving anything.
func (c *Canvas) EndDrag(overID string) error {
	active := c.dragging
	c.dragging = ""
	if active == "" || overID == "" || overID == active {
		return nil
	}
	return c.Move(active, overID)
}

// Dragging returns the id of the block being dragged, or "".
func (c *Canvas) Dragging() string { return c.dragging }

// Document returns the persistable content of the canvas.
func (c *Canvas) Document() block.Document {
	return block.Document{Blocks: c.Blocks()}
}
