package board

import (
	"math"
	"strings"

	"tutorgo/pkg/model"
)

// arrowHead returns the two head strokes of an arrow ending at (x, y),
// angled 30 degrees off the shaft.
func arrowHead(x, y float64) [2][]model.Point {
	const headLength = 15.0
	angle := math.Atan2(y, x)
	left := model.Point{
		X: x - headLength*math.Cos(angle-math.Pi/6),
		Y: y - headLength*math.Sin(angle-math.Pi/6),
	}
	right := model.Point{
		X: x - headLength*math.Cos(angle+math.Pi/6),
		Y: y - headLength*math.Sin(angle+math.Pi/6),
	}
	tip := model.Point{X: x, Y: y}
	return [2][]model.Point{{tip, left}, {tip, right}}
}

// latexReplacer rewrites common commands to unicode glyph equivalents.
var latexReplacer = strings.NewReplacer(
	`\times`, "×",
	`\cdot`, "·",
	`\pm`, "±",
	`\leq`, "≤",
	`\geq`, "≥",
	`\neq`, "≠",
	`\approx`, "≈",
	`\infty`, "∞",
	`\pi`, "π",
	`\alpha`, "α",
	`\beta`, "β",
	`\gamma`, "γ",
	`\delta`, "δ",
	`\theta`, "θ",
	`\lambda`, "λ",
	`\mu`, "μ",
	`\sigma`, "σ",
	`\phi`, "φ",
	`\omega`, "ω",
	`\sum`, "Σ",
	`\int`, "∫",
	`\rightarrow`, "→",
	`\to`, "→",
	`\left`, "",
	`\right`, "",
)

// RenderLaTeX typesets a LaTeX source string to plain glyphs for board
// display. Only the constructs the lesson generator actually emits are
// handled (fractions, roots, sub/superscripts, common symbols); anything
// the walker cannot resolve renders as the raw source text, so malformed
// input degrades silently instead of failing the element.
func RenderLaTeX(src string) string {
	if src == "" {
		return ""
	}
	out, ok := renderLaTeX(src)
	if !ok {
		return src
	}
	return out
}

func renderLaTeX(src string) (string, bool) {
	s := latexReplacer.Replace(src)

	var b strings.Builder
	runes := []rune(s)
	i := 0
	for i < len(runes) {
		c := runes[i]
		switch c {
		case '\\':
			cmd, rest, ok := readCommand(runes, i)
			if !ok {
				return "", false
			}
			i = rest
			switch cmd {
			case "frac":
				num, j, ok1 := readGroup(runes, i)
				if !ok1 {
					return "", false
				}
				den, k, ok2 := readGroup(runes, j)
				if !ok2 {
					return "", false
				}
				numR, okN := renderLaTeX(num)
				denR, okD := renderLaTeX(den)
				if !okN || !okD {
					return "", false
				}
				b.WriteString(numR + "/" + denR)
				i = k
			case "sqrt":
				arg, j, ok1 := readGroup(runes, i)
				if !ok1 {
					return "", false
				}
				argR, okA := renderLaTeX(arg)
				if !okA {
					return "", false
				}
				b.WriteString("√(" + argR + ")")
				i = j
			case "text", "mathrm":
				arg, j, ok1 := readGroup(runes, i)
				if !ok1 {
					return "", false
				}
				b.WriteString(arg)
				i = j
			default:
				// Unknown command: keep its name as plain text.
				b.WriteString(cmd)
			}
		case '^', '_':
			arg, j, ok := readScript(runes, i+1)
			if !ok {
				return "", false
			}
			argR, okA := renderLaTeX(arg)
			if !okA {
				return "", false
			}
			if c == '^' {
				b.WriteString(superscript(argR))
			} else {
				b.WriteString("_" + argR)
			}
			i = j
		case '{', '}':
			i++
		default:
			b.WriteRune(c)
			i++
		}
	}
	return b.String(), true
}

// readCommand reads a backslash command name starting at runes[i] == '\\'.
func readCommand(runes []rune, i int) (cmd string, next int, ok bool) {
	j := i + 1
	for j < len(runes) && isLetter(runes[j]) {
		j++
	}
	if j == i+1 {
		// Escaped single character like \{.
		if j < len(runes) {
			return string(runes[j]), j + 1, true
		}
		return "", 0, false
	}
	return string(runes[i+1 : j]), j, true
}

// readGroup reads a {...} group starting at runes[i], handling nesting.
func readGroup(runes []rune, i int) (content string, next int, ok bool) {
	if i >= len(runes) || runes[i] != '{' {
		return "", 0, false
	}
	depth := 0
	for j := i; j < len(runes); j++ {
		switch runes[j] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return string(runes[i+1 : j]), j + 1, true
			}
		}
	}
	return "", 0, false
}

// readScript reads a sub/superscript argument: either a braced group or a
// single character.
func readScript(runes []rune, i int) (content string, next int, ok bool) {
	if i >= len(runes) {
		return "", 0, false
	}
	if runes[i] == '{' {
		return readGroup(runes, i)
	}
	return string(runes[i]), i + 1, true
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

var superscripts = map[rune]rune{
	'0': '⁰', '1': '¹', '2': '²', '3': '³', '4': '⁴',
	'5': '⁵', '6': '⁶', '7': '⁷', '8': '⁸', '9': '⁹',
	'n': 'ⁿ', 'i': 'ⁱ', '+': '⁺', '-': '⁻',
}

func superscript(s string) string {
	var b strings.Builder
	for _, r := range s {
		if sup, ok := superscripts[r]; ok {
			b.WriteRune(sup)
		} else {
			b.WriteString("^" + string(r))
		}
	}
	return b.String()
}
