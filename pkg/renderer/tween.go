package renderer

import (
	"math"
	"time"

	"tutorgo/pkg/board"
	"tutorgo/pkg/model"
)

// Tween defaults, in milliseconds.
const (
	defaultEntranceMs  = 500
	defaultAnimationMs = 1000
	tweenFrameInterval = 33 * time.Millisecond
	slideDistance      = 60
)

// easeOutCubic maps linear progress to a decelerating curve.
func easeOutCubic(t float64) float64 {
	u := 1 - t
	return 1 - u*u*u
}

// runTween steps progress from 0 to 1 over dur, applying each step through
// the board mutex so rasterization never sees a torn frame. Concurrent
// tweens on the same property are last-writer-wins.
func (r *Renderer) runTween(dur time.Duration, apply func(progress float64)) {
	go func() {
		start := time.Now()
		ticker := time.NewTicker(tweenFrameInterval)
		defer ticker.Stop()
		for now := range ticker.C {
			p := float64(now.Sub(start)) / float64(dur)
			if p >= 1 {
				break
			}
			r.board.Mutate(func() { apply(easeOutCubic(p)) })
		}
		r.board.Mutate(func() { apply(1) })
	}()
}

// revealInstantly puts an element straight into its settled state, used for
// seek replays.
func (r *Renderer) revealInstantly(el *board.Element) {
	r.board.Mutate(func() {
		el.Opacity = 1
		el.OffsetX, el.OffsetY = 0, 0
		el.ScaleX, el.ScaleY = 1, 1
		el.RevealedChars = -1
	})
}

// runEntrance animates an element's appearance. A nil entrance fades in.
func (r *Renderer) runEntrance(el *board.Element, ent *model.Entrance) {
	typ := model.EntranceFadeIn
	var durMs float64
	if ent != nil {
		typ = ent.Type
		durMs = ent.DurationMs
	}
	if durMs <= 0 {
		durMs = defaultEntranceMs
	}
	dur := time.Duration(durMs * float64(time.Millisecond))

	switch typ {
	case model.EntranceSlideIn:
		dx, dy := slideOrigin(ent)
		r.board.Mutate(func() {
			el.Opacity = 0
			el.OffsetX, el.OffsetY = dx, dy
		})
		r.runTween(dur, func(p float64) {
			el.Opacity = p
			el.OffsetX = dx * (1 - p)
			el.OffsetY = dy * (1 - p)
		})
	case model.EntrancePop:
		r.board.Mutate(func() {
			el.Opacity = 0
			el.ScaleX, el.ScaleY = 0.5, 0.5
		})
		r.runTween(dur, func(p float64) {
			el.Opacity = p
			// Overshoot to 1.1 at the midpoint, settle back to 1.
			s := 0.5 + 0.6*p
			if p > 0.5 {
				s = 1.1 - 0.2*(p-0.5)
			}
			el.ScaleX, el.ScaleY = s, s
		})
	case model.EntranceTypewriter, model.EntranceDraw:
		total := el.TotalTextChars()
		if total == 0 {
			r.revealInstantly(el)
			return
		}
		r.board.Mutate(func() {
			el.Opacity = 1
			el.RevealedChars = 0
		})
		r.runTween(dur, func(p float64) {
			el.RevealedChars = int(p * float64(total))
			if p >= 1 {
				el.RevealedChars = -1
			}
		})
	default: // fadeIn and anything unrecognized
		r.board.Mutate(func() { el.Opacity = 0 })
		r.runTween(dur, func(p float64) { el.Opacity = p })
	}
}

// slideOrigin returns the starting offset for a slide entrance.
func slideOrigin(ent *model.Entrance) (dx, dy float64) {
	dir := ""
	if ent != nil {
		dir = ent.Direction
	}
	switch dir {
	case "right":
		return slideDistance, 0
	case "top":
		return 0, -slideDistance
	case "bottom":
		return 0, slideDistance
	default: // left
		return -slideDistance, 0
	}
}

// animateElement runs an ongoing animation on a settled element.
func (r *Renderer) animateElement(el *board.Element, anim model.Animation) {
	durMs := anim.DurationMs
	if durMs <= 0 {
		durMs = defaultAnimationMs
	}
	dur := time.Duration(durMs * float64(time.Millisecond))

	switch anim.Type {
	case model.AnimationShake:
		r.runTween(dur, func(p float64) {
			if p >= 1 {
				el.OffsetX = 0
				return
			}
			// Decaying oscillation, four full swings.
			el.OffsetX = 8 * (1 - p) * math.Sin(p*4*2*math.Pi)
		})
	case model.AnimationMove:
		if anim.To == nil {
			return
		}
		startX, startY := el.Base.X, el.Base.Y
		toX, toY := anim.To.X, anim.To.Y
		r.runTween(dur, func(p float64) {
			el.Base.X = startX + (toX-startX)*p
			el.Base.Y = startY + (toY-startY)*p
		})
	case model.AnimationHighlight:
		r.runTween(dur, func(p float64) {
			if p >= 1 {
				el.Opacity = 1
				return
			}
			// Two opacity pulses.
			el.Opacity = 0.65 + 0.35*math.Abs(math.Cos(p*2*math.Pi))
		})
	default:
		// Unknown animation types are ignored.
	}
}
