package core

import (
	"context"
)

type (
	// Grid is the content of a canvas: rows of color tokens, indexed [y][x].
	Grid [][]string

	// Pixel assigns a color to the cell at column X, row Y.
	Pixel struct {
		X     int    `json:"x"`
		Y     int    `json:"y"`
		Color string `json:"color"`
	}

	// Canvas is a grid of color tokens identified by a unique id.
	Canvas struct {
		ID      uint32 `json:"id"`
		Content Grid   `json:"content"`
	}

	// Collection is the unit of persistence: every canvas, loaded and saved as one document.
	Collection struct {
		Canvases []Canvas `json:"canvases"`
	}

	// CollectionStore persists the whole Collection. Load returns ErrStorageUnavailable or
	// ErrStorageCorrupt (wrapped); Save must never leave a partially written document behind.
	CollectionStore interface {
		Load(ctx context.Context) (*Collection, error)
		Save(ctx context.Context, collection *Collection) error
	}

	// IDGenerator yields candidate canvas ids. Candidates may collide; callers check.
	IDGenerator interface {
		Next() uint32
	}
)

// Index returns the position of the canvas with the given id, or -1.
func (c *Collection) Index(id uint32) int {
	for i := range c.Canvases {
		if c.Canvases[i].ID == id {
			return i
		}
	}
	return -1
}

// Contains reports whether a canvas with the given id exists.
func (c *Collection) Contains(id uint32) bool {
	return c.Index(id) >= 0
}

// Clone returns a deep copy of the grid.
func (g Grid) Clone() Grid {
	if g == nil {
		return nil
	}
	out := make(Grid, len(g))
	for y, row := range g {
		out[y] = append([]string(nil), row...)
	}
	return out
}

// InBounds reports whether (x, y) addresses an existing cell. The row length of y is used,
// so a ragged grid loaded from a damaged document is still safe to index.
func (g Grid) InBounds(x, y int) bool {
	if y < 0 || y >= len(g) {
		return false
	}
	return x >= 0 && x < len(g[y])
}
