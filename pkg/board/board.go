// Package board owns the whiteboard scene graph: an ordered registry of
// drawable elements built from board actions, with zone-based layout and
// animation-addressable display properties.
package board

import (
	"fmt"
	"sync"

	"tutorgo/pkg/model"
)

// Primitive is one flat drawing instruction. Elements compile to a list of
// primitives at build time; animation mutates the owning element's display
// properties, never the primitives themselves.
type Primitive struct {
	Kind PrimitiveKind

	// Geometry, in board coordinates relative to the element base position.
	X, Y, W, H float64
	Points     []model.Point

	// Presentation.
	Fill     string
	Stroke   string
	StrokeW  float64
	Text     string
	FontSize float64
	Bold     bool
	Mono     bool
}

// PrimitiveKind discriminates Primitive geometry.
type PrimitiveKind string

const (
	PrimRect     PrimitiveKind = "rect"
	PrimCircle   PrimitiveKind = "circle"
	PrimLine     PrimitiveKind = "line"
	PrimPolyline PrimitiveKind = "polyline"
	PrimText     PrimitiveKind = "text"
)

// Element is one board element instance: compiled primitives plus the
// mutable display state that tweens operate on.
type Element struct {
	ID   string
	Kind model.ElementType
	Base model.Position // zone-resolved board position

	Prims []Primitive

	// Display state, mutated by the animation engine.
	Opacity        float64
	OffsetX        float64
	OffsetY        float64
	ScaleX         float64
	ScaleY         float64
	RevealedChars  int // -1 means fully revealed
	totalTextChars int
}

// TotalTextChars returns the character count of all text primitives,
// used by the typewriter entrance.
func (e *Element) TotalTextChars() int { return e.totalTextChars }

// Board is the rendering surface's element registry. One Board instance
// backs one renderer; callers synchronize through the renderer.
type Board struct {
	mu     sync.RWMutex
	width  int
	height int

	elems map[string]*Element
	order []string
}

// New creates an empty board of the given pixel dimensions.
func New(width, height int) *Board {
	return &Board{
		width:  width,
		height: height,
		elems:  make(map[string]*Element),
	}
}

// Size returns the board dimensions.
func (b *Board) Size() (w, h int) { return b.width, b.height }

// zoneOffset computes the horizontal origin for a layout zone.
func (b *Board) zoneOffset(zone model.Zone) float64 {
	switch zone {
	case model.ZoneLeft, model.ZoneFull:
		return 0
	case model.ZoneRight:
		return float64(b.width) * 2 / 3
	case model.ZoneCenter:
		return float64(b.width) / 3
	default:
		// Unknown zones fall back to center, same as a missing zone.
		return float64(b.width) / 3
	}
}

// Add builds the element and registers it under its id. An element with a
// duplicate id replaces the prior one in place, keeping its paint order.
func (b *Board) Add(el model.BoardElement, zone model.Zone) (*Element, error) {
	prims, err := buildPrimitives(el)
	if err != nil {
		return nil, fmt.Errorf("build element %q: %w", el.ID, err)
	}

	base := el.Position
	base.X += b.zoneOffset(zone)

	e := &Element{
		ID:            el.ID,
		Kind:          el.Type,
		Base:          base,
		Prims:         prims,
		Opacity:       1,
		ScaleX:        1,
		ScaleY:        1,
		RevealedChars: -1,
	}
	for i := range prims {
		if prims[i].Kind == PrimText {
			e.totalTextChars += len([]rune(prims[i].Text))
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.elems[el.ID]; !exists {
		b.order = append(b.order, el.ID)
	}
	b.elems[el.ID] = e
	return e, nil
}

// Get looks up an element by id.
func (b *Board) Get(id string) (*Element, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.elems[id]
	return e, ok
}

// Elements returns all elements in paint order.
func (b *Board) Elements() []*Element {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Element, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.elems[id])
	}
	return out
}

// Snapshot returns value copies of all elements in paint order. Tweens keep
// mutating the live display state under the board lock, so readers that
// outlive the lock must work on copies.
func (b *Board) Snapshot() []Element {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Element, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.elems[id])
	}
	return out
}

// Len returns the number of registered elements.
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.elems)
}

// Clear removes every element. There is no per-element removal; the board
// is cleared en masse at scene boundaries and on explicit clear actions.
func (b *Board) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.elems = make(map[string]*Element)
	b.order = nil
}

// Mutate runs fn under the board lock. All writes to element display state
// (tween steps, reveals) must go through here so rasterization never
// observes a half-applied frame.
func (b *Board) Mutate(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn()
}
