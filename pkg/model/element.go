package model

import (
	"encoding/json"
	"fmt"
)

// ElementType identifies the kind of a board element.
type ElementType string

const (
	ElementText     ElementType = "text"
	ElementEquation ElementType = "equation"
	ElementShape    ElementType = "shape"
	ElementDiagram  ElementType = "diagram"
	ElementCode     ElementType = "code"
)

// Zone is a horizontal layout region of the board.
type Zone string

const (
	ZoneLeft   Zone = "left"
	ZoneCenter Zone = "center"
	ZoneRight  Zone = "right"
	ZoneFull   Zone = "full"
)

// Position places an element relative to its zone.
type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// Style holds optional presentation properties. Zero values mean
// "renderer default".
type Style struct {
	Fill        string  `json:"fill,omitempty"`
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	FontSize    float64 `json:"fontSize,omitempty"`
	FontWeight  string  `json:"fontWeight,omitempty"`
	FontFamily  string  `json:"fontFamily,omitempty"`
	TextAlign   string  `json:"textAlign,omitempty"`
}

// EntranceType identifies a one-shot entrance animation.
type EntranceType string

const (
	EntranceFadeIn     EntranceType = "fadeIn"
	EntranceSlideIn    EntranceType = "slideIn"
	EntrancePop        EntranceType = "pop"
	EntranceTypewriter EntranceType = "typewriter"
	EntranceDraw       EntranceType = "draw"
)

// Entrance describes how an element appears on the board.
type Entrance struct {
	Type EntranceType `json:"type"`
	// DurationMs is the tween length in milliseconds. 0 means default.
	DurationMs float64 `json:"duration,omitempty"`
	// Direction applies to slideIn: left, right, top, bottom.
	Direction string `json:"direction,omitempty"`
}

// TextContent is the payload of a text element.
type TextContent struct {
	Text  string   `json:"text,omitempty"`
	Lines []string `json:"lines,omitempty"`
}

// Value returns the effective text, joining Lines when Text is empty.
func (c TextContent) Value() string {
	if c.Text != "" {
		return c.Text
	}
	out := ""
	for i, l := range c.Lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

// EquationContent is the payload of an equation element.
type EquationContent struct {
	LaTeX string `json:"latex"`
}

// Point is a 2D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ShapeContent is the payload of a shape element.
type ShapeContent struct {
	Shape  string  `json:"shape"` // rectangle, circle, line, arrow, polygon
	Points []Point `json:"points,omitempty"`
}

// DiagramNode is one labeled node in a diagram.
type DiagramNode struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Position Position `json:"position"`
	Style    *Style   `json:"style,omitempty"`
}

// DiagramEdge connects two diagram nodes.
type DiagramEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
	Style *Style `json:"style,omitempty"`
}

// DiagramContent is the payload of a diagram element.
type DiagramContent struct {
	DiagramType string        `json:"diagramType,omitempty"`
	Nodes       []DiagramNode `json:"nodes"`
	Edges       []DiagramEdge `json:"edges,omitempty"`
}

// CodeContent is the payload of a code element.
type CodeContent struct {
	Code           string `json:"code"`
	Language       string `json:"language,omitempty"`
	HighlightLines []int  `json:"highlightLines,omitempty"`
}

// BoardElement is one persistent visual object on the whiteboard. Exactly
// one of the typed content fields is set, matching Type.
type BoardElement struct {
	ID       string      `json:"id"`
	Type     ElementType `json:"type"`
	Position Position    `json:"position"`
	Style    *Style      `json:"style,omitempty"`
	Entrance *Entrance   `json:"animation,omitempty"`

	Text     *TextContent     `json:"-"`
	Equation *EquationContent `json:"-"`
	Shape    *ShapeContent    `json:"-"`
	Diagram  *DiagramContent  `json:"-"`
	Code     *CodeContent     `json:"-"`
}

// elementWire mirrors the JSON shape with a raw content payload.
type elementWire struct {
	ID        string          `json:"id"`
	Type      ElementType     `json:"type"`
	Position  Position        `json:"position"`
	Style     *Style          `json:"style,omitempty"`
	Animation *Entrance       `json:"animation,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
}

// UnmarshalJSON decodes the type-discriminated content payload. Unknown
// element types keep their Type tag and carry no payload; the renderer
// decides how to degrade.
func (e *BoardElement) UnmarshalJSON(data []byte) error {
	var w elementWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.ID = w.ID
	e.Type = w.Type
	e.Position = w.Position
	e.Style = w.Style
	e.Entrance = w.Animation

	if len(w.Content) == 0 {
		return nil
	}

	switch w.Type {
	case ElementText:
		e.Text = &TextContent{}
		return json.Unmarshal(w.Content, e.Text)
	case ElementEquation:
		e.Equation = &EquationContent{}
		return json.Unmarshal(w.Content, e.Equation)
	case ElementShape:
		e.Shape = &ShapeContent{}
		return json.Unmarshal(w.Content, e.Shape)
	case ElementDiagram:
		e.Diagram = &DiagramContent{}
		return json.Unmarshal(w.Content, e.Diagram)
	case ElementCode:
		e.Code = &CodeContent{}
		return json.Unmarshal(w.Content, e.Code)
	default:
		// Tolerated here; flagged by the renderer.
		return nil
	}
}

// MarshalJSON re-encodes the element in its wire shape.
func (e BoardElement) MarshalJSON() ([]byte, error) {
	w := elementWire{
		ID:        e.ID,
		Type:      e.Type,
		Position:  e.Position,
		Style:     e.Style,
		Animation: e.Entrance,
	}

	var content any
	switch e.Type {
	case ElementText:
		content = e.Text
	case ElementEquation:
		content = e.Equation
	case ElementShape:
		content = e.Shape
	case ElementDiagram:
		content = e.Diagram
	case ElementCode:
		content = e.Code
	}
	if content != nil {
		raw, err := json.Marshal(content)
		if err != nil {
			return nil, fmt.Errorf("marshal %s content: %w", e.Type, err)
		}
		w.Content = raw
	}
	return json.Marshal(w)
}
