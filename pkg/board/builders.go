package board

import (
	"strings"

	"tutorgo/pkg/model"
)

// Default palette, matching the dark board theme.
const (
	colorAccent = "#135bec"
	colorText   = "#ffffff"
	colorCode   = "#e5e5e5"
	colorCodeHi = "#fbbf24"
)

const codeLineHeight = 20.0

// buildPrimitives compiles a board element into flat drawing instructions.
// Builders are pure given (content, style, position); they never fail hard:
// malformed content degrades to a safe default shape or plain text.
func buildPrimitives(el model.BoardElement) ([]Primitive, error) {
	switch el.Type {
	case model.ElementText:
		return buildText(el), nil
	case model.ElementEquation:
		return buildEquation(el), nil
	case model.ElementShape:
		return buildShape(el), nil
	case model.ElementDiagram:
		return buildDiagram(el), nil
	case model.ElementCode:
		return buildCode(el), nil
	default:
		// Unknown element types degrade to a default rectangle outline.
		return []Primitive{defaultRect(0, 0)}, nil
	}
}

func styleOf(el model.BoardElement) model.Style {
	if el.Style != nil {
		return *el.Style
	}
	return model.Style{}
}

func orDefault(s, def string) string {
	if s != "" {
		return s
	}
	return def
}

func orDefaultF(v, def float64) float64 {
	if v != 0 {
		return v
	}
	return def
}

func buildText(el model.BoardElement) []Primitive {
	st := styleOf(el)
	text := ""
	if el.Text != nil {
		text = el.Text.Value()
	}
	return []Primitive{{
		Kind:     PrimText,
		Text:     text,
		Fill:     orDefault(st.Fill, colorText),
		FontSize: orDefaultF(st.FontSize, 18),
		Bold:     st.FontWeight == "bold",
	}}
}

func buildEquation(el model.BoardElement) []Primitive {
	st := styleOf(el)
	src := ""
	if el.Equation != nil {
		src = el.Equation.LaTeX
	}
	// Typeset to plain glyphs; malformed input comes back as raw source.
	rendered := RenderLaTeX(src)
	return []Primitive{{
		Kind:     PrimText,
		Text:     rendered,
		Fill:     orDefault(st.Fill, colorText),
		FontSize: orDefaultF(st.FontSize, 24),
	}}
}

func defaultRect(x, y float64) Primitive {
	return Primitive{Kind: PrimRect, X: x, Y: y, W: 50, H: 50, Stroke: colorAccent, StrokeW: 2}
}

func buildShape(el model.BoardElement) []Primitive {
	st := styleOf(el)
	stroke := orDefault(st.Stroke, colorAccent)
	strokeW := orDefaultF(st.StrokeWidth, 2)
	pos := el.Position

	var content model.ShapeContent
	if el.Shape != nil {
		content = *el.Shape
	}

	switch content.Shape {
	case "rectangle":
		return []Primitive{{
			Kind: PrimRect,
			W:    orDefaultF(pos.Width, 100), H: orDefaultF(pos.Height, 50),
			Fill: st.Fill, Stroke: stroke, StrokeW: strokeW,
		}}

	case "circle":
		return []Primitive{{
			Kind: PrimCircle,
			W:    orDefaultF(pos.Width, 50), // diameter
			Fill: st.Fill, Stroke: stroke, StrokeW: strokeW,
		}}

	case "line":
		return []Primitive{{
			Kind: PrimLine,
			W:    orDefaultF(pos.Width, 100), H: pos.Height,
			Stroke: stroke, StrokeW: strokeW,
		}}

	case "arrow":
		return buildArrow(pos, stroke, strokeW)

	case "polygon":
		if len(content.Points) > 0 {
			return []Primitive{{
				Kind:   PrimPolyline,
				Points: closeRing(content.Points),
				Fill:   st.Fill, Stroke: stroke, StrokeW: strokeW,
			}}
		}
		return []Primitive{defaultRect(0, 0)}

	default:
		// Unknown shape kinds degrade to a default rectangle outline.
		return []Primitive{defaultRect(0, 0)}
	}
}

func closeRing(pts []model.Point) []model.Point {
	if len(pts) > 1 && pts[0] != pts[len(pts)-1] {
		return append(append([]model.Point{}, pts...), pts[0])
	}
	return pts
}

func buildArrow(pos model.Position, stroke string, strokeW float64) []Primitive {
	endX := orDefaultF(pos.Width, 100)
	endY := pos.Height

	// Shaft plus a two-stroke head.
	head := arrowHead(endX, endY)
	return []Primitive{
		{Kind: PrimLine, W: endX, H: endY, Stroke: stroke, StrokeW: strokeW},
		{Kind: PrimPolyline, Points: head[0], Stroke: stroke, StrokeW: strokeW},
		{Kind: PrimPolyline, Points: head[1], Stroke: stroke, StrokeW: strokeW},
	}
}

func buildDiagram(el model.BoardElement) []Primitive {
	var content model.DiagramContent
	if el.Diagram != nil {
		content = *el.Diagram
	}

	const nodeRadius = 30.0

	// Edges paint first so nodes sit on top.
	var prims []Primitive
	nodePos := make(map[string]model.Point, len(content.Nodes))
	for _, n := range content.Nodes {
		nodePos[n.ID] = model.Point{X: n.Position.X, Y: n.Position.Y}
	}
	for _, e := range content.Edges {
		from, okF := nodePos[e.From]
		to, okT := nodePos[e.To]
		if !okF || !okT {
			continue
		}
		stroke := "rgba(255,255,255,0.3)"
		strokeW := 1.0
		if e.Style != nil {
			stroke = orDefault(e.Style.Stroke, stroke)
			strokeW = orDefaultF(e.Style.StrokeWidth, strokeW)
		}
		prims = append(prims, Primitive{
			Kind: PrimLine,
			X:    from.X, Y: from.Y,
			W: to.X - from.X, H: to.Y - from.Y,
			Stroke: stroke, StrokeW: strokeW,
		})
	}

	for _, n := range content.Nodes {
		fill := "rgba(19,91,236,0.2)"
		stroke := colorAccent
		if n.Style != nil {
			fill = orDefault(n.Style.Fill, fill)
			stroke = orDefault(n.Style.Stroke, stroke)
		}
		prims = append(prims, Primitive{
			Kind: PrimCircle,
			X:    n.Position.X - nodeRadius, Y: n.Position.Y - nodeRadius,
			W:    nodeRadius * 2,
			Fill: fill, Stroke: stroke, StrokeW: 2,
		})
		prims = append(prims, Primitive{
			Kind: PrimText,
			X:    n.Position.X, Y: n.Position.Y,
			Text: n.Label, Fill: colorText, FontSize: 14,
		})
	}
	return prims
}

func buildCode(el model.BoardElement) []Primitive {
	var content model.CodeContent
	if el.Code != nil {
		content = *el.Code
	}
	lines := strings.Split(content.Code, "\n")
	width := orDefaultF(el.Position.Width, 400)

	highlighted := make(map[int]bool, len(content.HighlightLines))
	for _, n := range content.HighlightLines {
		highlighted[n] = true
	}

	prims := []Primitive{{
		Kind: PrimRect,
		X:    -10, Y: -10,
		W: width + 20, H: float64(len(lines))*codeLineHeight + 20,
		Fill: "rgba(0,0,0,0.5)",
	}}

	for i, line := range lines {
		y := float64(i) * codeLineHeight
		fill := colorCode
		if highlighted[i+1] {
			fill = colorCodeHi
			prims = append(prims, Primitive{
				Kind: PrimRect,
				X:    -5, Y: y - 2,
				W: width + 10, H: codeLineHeight + 4,
				Fill: "rgba(19,91,236,0.2)",
			})
		}
		prims = append(prims, Primitive{
			Kind: PrimText,
			Y:    y,
			Text: line, Fill: fill, FontSize: 14, Mono: true,
		})
	}
	return prims
}
