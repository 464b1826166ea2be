package board

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"
	"strconv"
	"strings"

	"tutorgo/pkg/model"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Background and grid, matching the dark board theme.
var (
	colorBackground = color.RGBA{R: 0x1a, G: 0x1c, B: 0x23, A: 0xff}
	colorGrid       = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0x08}
)

const gridSize = 40

// Rasterize draws the current board state to an RGBA frame: themed
// background, grid, then every element in paint order with its display
// state (opacity, offsets, typewriter reveal) applied. Used for board
// snapshots; live clients consume the scene graph directly.
func (b *Board) Rasterize() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, b.width, b.height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: colorBackground}, image.Point{}, draw.Src)

	for x := 0; x < b.width; x += gridSize {
		drawLine(img, float64(x), 0, float64(x), float64(b.height), colorGrid, 1)
	}
	for y := 0; y < b.height; y += gridSize {
		drawLine(img, 0, float64(y), float64(b.width), float64(y), colorGrid, 1)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, id := range b.order {
		drawElement(img, b.elems[id])
	}
	return img
}

func drawElement(img *image.RGBA, e *Element) {
	if e.Opacity <= 0 {
		return
	}
	ox := e.Base.X + e.OffsetX
	oy := e.Base.Y + e.OffsetY

	revealBudget := e.RevealedChars
	for _, p := range e.Prims {
		x := ox + p.X
		y := oy + p.Y
		switch p.Kind {
		case PrimRect:
			drawRect(img, x, y, p.W, p.H, parseColor(p.Fill, e.Opacity), parseColor(p.Stroke, e.Opacity), p.StrokeW)
		case PrimCircle:
			drawCircle(img, x+p.W/2, y+p.W/2, p.W/2, parseColor(p.Fill, e.Opacity), parseColor(p.Stroke, e.Opacity), p.StrokeW)
		case PrimLine:
			drawLine(img, x, y, x+p.W, y+p.H, parseColor(p.Stroke, e.Opacity), p.StrokeW)
		case PrimPolyline:
			for i := 1; i < len(p.Points); i++ {
				drawLine(img,
					ox+p.Points[i-1].X, oy+p.Points[i-1].Y,
					ox+p.Points[i].X, oy+p.Points[i].Y,
					parseColor(p.Stroke, e.Opacity), p.StrokeW)
			}
			if c := parseColor(p.Fill, e.Opacity); c.A > 0 && len(p.Points) > 2 {
				fillPolygon(img, ox, oy, p.Points, c)
			}
		case PrimText:
			text := p.Text
			if revealBudget >= 0 {
				runes := []rune(text)
				n := revealBudget
				if n > len(runes) {
					n = len(runes)
				}
				text = string(runes[:n])
				revealBudget -= len(runes)
				if revealBudget < 0 {
					revealBudget = 0
				}
			}
			drawText(img, x, y, text, parseColor(p.Fill, e.Opacity))
		}
	}
}

// parseColor understands #rgb, #rrggbb, rgba(r,g,b,a), and the empty
// string (fully transparent). Unparseable values come back transparent so
// a bad style never fails a frame.
func parseColor(s string, opacity float64) color.RGBA {
	s = strings.TrimSpace(s)
	var c color.RGBA
	switch {
	case s == "" || s == "transparent":
		return color.RGBA{}
	case strings.HasPrefix(s, "#"):
		c = parseHex(s)
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		c = parseRGBA(s[5 : len(s)-1])
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		c = parseRGBA(s[4 : len(s)-1])
	default:
		return color.RGBA{}
	}
	if opacity < 1 {
		c.A = uint8(float64(c.A) * math.Max(opacity, 0))
	}
	return c
}

func parseHex(s string) color.RGBA {
	h := s[1:]
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.RGBA{}
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

func parseRGBA(inner string) color.RGBA {
	parts := strings.Split(inner, ",")
	if len(parts) < 3 {
		return color.RGBA{}
	}
	to8 := func(s string) uint8 {
		f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if f < 0 {
			f = 0
		}
		if f > 255 {
			f = 255
		}
		return uint8(f)
	}
	c := color.RGBA{R: to8(parts[0]), G: to8(parts[1]), B: to8(parts[2]), A: 0xff}
	if len(parts) == 4 {
		a, _ := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if a < 0 {
			a = 0
		}
		if a > 1 {
			a = 1
		}
		c.A = uint8(a * 255)
	}
	return c
}

func blend(img *image.RGBA, x, y int, c color.RGBA) {
	if c.A == 0 || !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}
	if c.A == 0xff {
		img.SetRGBA(x, y, c)
		return
	}
	dst := img.RGBAAt(x, y)
	a := float64(c.A) / 255
	mix := func(s, d uint8) uint8 {
		return uint8(float64(s)*a + float64(d)*(1-a))
	}
	img.SetRGBA(x, y, color.RGBA{R: mix(c.R, dst.R), G: mix(c.G, dst.G), B: mix(c.B, dst.B), A: 0xff})
}

func drawLine(img *image.RGBA, x0, y0, x1, y1 float64, c color.RGBA, width float64) {
	if c.A == 0 {
		return
	}
	if width < 1 {
		width = 1
	}
	dx := x1 - x0
	dy := y1 - y0
	steps := int(math.Max(math.Abs(dx), math.Abs(dy)))
	if steps == 0 {
		steps = 1
	}
	half := int(width / 2)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		px := int(x0 + dx*t)
		py := int(y0 + dy*t)
		for wx := -half; wx <= half; wx++ {
			for wy := -half; wy <= half; wy++ {
				blend(img, px+wx, py+wy, c)
			}
		}
	}
}

func drawRect(img *image.RGBA, x, y, w, h float64, fill, stroke color.RGBA, strokeW float64) {
	if fill.A > 0 {
		for px := int(x); px < int(x+w); px++ {
			for py := int(y); py < int(y+h); py++ {
				blend(img, px, py, fill)
			}
		}
	}
	if stroke.A > 0 {
		drawLine(img, x, y, x+w, y, stroke, strokeW)
		drawLine(img, x+w, y, x+w, y+h, stroke, strokeW)
		drawLine(img, x+w, y+h, x, y+h, stroke, strokeW)
		drawLine(img, x, y+h, x, y, stroke, strokeW)
	}
}

func drawCircle(img *image.RGBA, cx, cy, r float64, fill, stroke color.RGBA, strokeW float64) {
	if r <= 0 {
		return
	}
	r2 := r * r
	inner := (r - math.Max(strokeW, 1)) * (r - math.Max(strokeW, 1))
	for px := int(cx - r); px <= int(cx+r); px++ {
		for py := int(cy - r); py <= int(cy+r); py++ {
			d2 := (float64(px)-cx)*(float64(px)-cx) + (float64(py)-cy)*(float64(py)-cy)
			if d2 > r2 {
				continue
			}
			if d2 >= inner && stroke.A > 0 {
				blend(img, px, py, stroke)
			} else if fill.A > 0 {
				blend(img, px, py, fill)
			}
		}
	}
}

func fillPolygon(img *image.RGBA, ox, oy float64, pts []model.Point, c color.RGBA) {
	// Even-odd scanline fill over the polygon's bounding box.
	minY, maxY := pts[0].Y, pts[0].Y
	for _, p := range pts {
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	for y := int(minY); y <= int(maxY); y++ {
		fy := float64(y)
		var xs []float64
		for i := 0; i < len(pts); i++ {
			a := pts[i]
			b := pts[(i+1)%len(pts)]
			if (a.Y <= fy && b.Y > fy) || (b.Y <= fy && a.Y > fy) {
				xs = append(xs, a.X+(fy-a.Y)/(b.Y-a.Y)*(b.X-a.X))
			}
		}
		// Crossings must be paired in left-to-right order or concave
		// polygons fill the gaps between their lobes.
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			lo, hi := xs[i], xs[i+1]
			for x := int(lo); x <= int(hi); x++ {
				blend(img, int(ox)+x, int(oy)+y, c)
			}
		}
	}
}

// drawText renders text line by line with the basic 7x13 face. Board
// snapshots favor determinism over typographic fidelity.
func drawText(img *image.RGBA, x, y float64, text string, c color.RGBA) {
	if c.A == 0 || text == "" {
		return
	}
	face := basicfont.Face7x13
	lineHeight := face.Metrics().Height.Ceil() + 2
	for i, line := range strings.Split(text, "\n") {
		d := font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(c),
			Face: face,
			Dot: fixed.P(
				int(x),
				int(y)+face.Metrics().Ascent.Ceil()+i*lineHeight,
			),
		}
		d.DrawString(line)
	}
}
