package board

import (
	"encoding/json"
	"testing"

	"tutorgo/pkg/model"
)

func elem(t *testing.T, raw string) model.BoardElement {
	t.Helper()
	var el model.BoardElement
	if err := json.Unmarshal([]byte(raw), &el); err != nil {
		t.Fatalf("unmarshal element: %v", err)
	}
	return el
}

func TestAddAndClear(t *testing.T) {
	b := New(1200, 700)

	el := elem(t, `{"id": "t1", "type": "text", "position": {"x": 10, "y": 20}, "content": {"text": "Hello"}}`)
	if _, err := b.Add(el, model.ZoneLeft); err != nil {
		t.Fatalf("add: %v", err)
	}
	if b.Len() != 1 {
		t.Fatalf("expected 1 element, got %d", b.Len())
	}
	got, ok := b.Get("t1")
	if !ok {
		t.Fatal("element not registered")
	}
	if got.Base.X != 10 {
		t.Errorf("left zone offset should be 0, base X = %g", got.Base.X)
	}

	b.Clear()
	if b.Len() != 0 {
		t.Error("clear must remove all elements")
	}
}

func TestZoneOffsets(t *testing.T) {
	b := New(1200, 700)
	cases := []struct {
		zone model.Zone
		want float64
	}{
		{model.ZoneLeft, 0},
		{model.ZoneFull, 0},
		{model.ZoneCenter, 400},
		{model.ZoneRight, 800},
		{model.Zone("bogus"), 400}, // unknown behaves like center
	}
	for _, tc := range cases {
		if got := b.zoneOffset(tc.zone); got != tc.want {
			t.Errorf("zone %q: offset %g, want %g", tc.zone, got, tc.want)
		}
	}
}

func TestDuplicateIDReplaces(t *testing.T) {
	b := New(800, 600)
	b.Add(elem(t, `{"id": "x", "type": "text", "position": {"x": 0, "y": 0}, "content": {"text": "one"}}`), model.ZoneLeft)
	b.Add(elem(t, `{"id": "x", "type": "text", "position": {"x": 5, "y": 5}, "content": {"text": "two"}}`), model.ZoneLeft)

	if b.Len() != 1 {
		t.Fatalf("expected replacement, got %d elements", b.Len())
	}
	e, _ := b.Get("x")
	if e.Prims[0].Text != "two" {
		t.Error("replacement did not take effect")
	}
}

func TestEquationDegradesOnBadLaTeX(t *testing.T) {
	b := New(800, 600)
	el := elem(t, `{"id": "eq", "type": "equation", "position": {"x": 0, "y": 0}, "content": {"latex": "\\frac{a}{unclosed"}}`)
	if _, err := b.Add(el, model.ZoneCenter); err != nil {
		t.Fatalf("invalid latex must not fail the element: %v", err)
	}
	e, ok := b.Get("eq")
	if !ok {
		t.Fatal("registry missing element after degrade")
	}
	if e.Prims[0].Text != `\frac{a}{unclosed` {
		t.Errorf("expected raw source fallback, got %q", e.Prims[0].Text)
	}
}

func TestRenderLaTeX(t *testing.T) {
	cases := []struct{ in, want string }{
		{`E = mc^2`, "E = mc²"},
		{`\frac{a}{b}`, "a/b"},
		{`\sqrt{x}`, "√(x)"},
		{`\pi r^2`, "π r²"},
		{`x_{1} + x_2`, "x_1 + x_2"},
		{`a \times b \leq c`, "a × b ≤ c"},
		{``, ""},
	}
	for _, tc := range cases {
		if got := RenderLaTeX(tc.in); got != tc.want {
			t.Errorf("RenderLaTeX(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestUnknownShapeDegrades(t *testing.T) {
	b := New(800, 600)
	el := elem(t, `{"id": "s", "type": "shape", "position": {"x": 0, "y": 0}, "content": {"shape": "dodecahedron"}}`)
	if _, err := b.Add(el, model.ZoneLeft); err != nil {
		t.Fatalf("unknown shape must degrade: %v", err)
	}
	e, _ := b.Get("s")
	if e.Prims[0].Kind != PrimRect {
		t.Errorf("expected rectangle outline fallback, got %s", e.Prims[0].Kind)
	}
}

func TestCodeHighlightLines(t *testing.T) {
	b := New(800, 600)
	el := elem(t, `{"id": "c", "type": "code", "position": {"x": 0, "y": 0, "width": 300},
		"content": {"code": "a\nb\nc", "language": "go", "highlightLines": [2]}}`)
	b.Add(el, model.ZoneLeft)
	e, _ := b.Get("c")

	var textPrims, highlightRects int
	for _, p := range e.Prims {
		switch {
		case p.Kind == PrimText:
			textPrims++
		case p.Kind == PrimRect && p.Fill == "rgba(19,91,236,0.2)":
			highlightRects++
		}
	}
	if textPrims != 3 {
		t.Errorf("expected 3 code lines, got %d", textPrims)
	}
	if highlightRects != 1 {
		t.Errorf("expected 1 highlight rect, got %d", highlightRects)
	}
}

func TestDiagramEdgesBehindNodes(t *testing.T) {
	b := New(800, 600)
	el := elem(t, `{"id": "d", "type": "diagram", "position": {"x": 100, "y": 100}, "content": {
		"nodes": [
			{"id": "a", "label": "A", "position": {"x": 0, "y": 0}},
			{"id": "b", "label": "B", "position": {"x": 120, "y": 0}}
		],
		"edges": [{"from": "a", "to": "b"}, {"from": "a", "to": "missing"}]
	}}`)
	b.Add(el, model.ZoneLeft)
	e, _ := b.Get("d")

	// One resolvable edge, then two circles and two labels.
	if e.Prims[0].Kind != PrimLine {
		t.Error("edge must paint before nodes")
	}
	if len(e.Prims) != 5 {
		t.Errorf("expected 5 primitives (1 edge, 2 nodes, 2 labels), got %d", len(e.Prims))
	}
}

func TestRasterizeProducesFrame(t *testing.T) {
	b := New(200, 150)
	b.Add(elem(t, `{"id": "r", "type": "shape", "position": {"x": 10, "y": 10, "width": 50, "height": 30},
		"content": {"shape": "rectangle"}, "style": {"fill": "#135bec"}}`), model.ZoneLeft)

	img := b.Rasterize()
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 150 {
		t.Fatalf("unexpected frame size %v", img.Bounds())
	}
	// The filled rect center must not be the background color.
	c := img.RGBAAt(35, 25)
	if c == colorBackground {
		t.Error("filled rectangle not painted")
	}
}

func TestSnapshotSafeDuringMutation(t *testing.T) {
	// State snapshots are served over HTTP while the animation engine is
	// stepping tweens; readers must get copies, not live display state.
	b := New(200, 150)
	e, err := b.Add(elem(t, `{"id": "t", "type": "text", "position": {"x": 10, "y": 10},
		"content": {"text": "Hello"}}`), model.ZoneLeft)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			b.Mutate(func() {
				e.Opacity = float64(i%100) / 100
				e.OffsetX++
			})
		}
	}()
	for i := 0; i < 500; i++ {
		for _, s := range b.Snapshot() {
			_ = s.Opacity + s.OffsetX
		}
	}
	<-done
}

func TestRasterizeConcavePolygonFill(t *testing.T) {
	// Square with a V notch cut into the top edge. The notch interior must
	// stay background while both lobes and the body are filled.
	b := New(100, 100)
	b.Add(elem(t, `{"id": "p", "type": "shape", "position": {"x": 10, "y": 10},
		"content": {"shape": "polygon", "points": [
			{"x": 0, "y": 0}, {"x": 16, "y": 16}, {"x": 32, "y": 0},
			{"x": 32, "y": 32}, {"x": 0, "y": 32}]},
		"style": {"fill": "#135bec"}}`), model.ZoneLeft)

	img := b.Rasterize()
	if c := img.RGBAAt(14, 18); c == colorBackground {
		t.Error("left lobe not filled")
	}
	if c := img.RGBAAt(36, 18); c == colorBackground {
		t.Error("right lobe not filled")
	}
	if c := img.RGBAAt(26, 38); c == colorBackground {
		t.Error("body not filled")
	}
	if c := img.RGBAAt(26, 18); c != colorBackground {
		t.Errorf("notch interior painted: %+v", c)
	}
}

func TestParseColor(t *testing.T) {
	c := parseColor("#135bec", 1)
	if c.R != 0x13 || c.G != 0x5b || c.B != 0xec || c.A != 0xff {
		t.Errorf("hex parse wrong: %+v", c)
	}
	c = parseColor("rgba(255,255,255,0.5)", 1)
	if c.A != 127 {
		t.Errorf("rgba alpha wrong: %d", c.A)
	}
	if parseColor("", 1).A != 0 {
		t.Error("empty color must be transparent")
	}
	if parseColor("bogus", 1).A != 0 {
		t.Error("garbage color must be transparent")
	}
}
