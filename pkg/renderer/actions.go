package renderer

import (
	"log/slog"

	"tutorgo/pkg/model"
)

// dispatchAction routes one due action to its handler. instant suppresses
// tweens and speech, used when seeking replays history.
func (r *Renderer) dispatchAction(a *model.Action, instant bool) {
	switch a.Type {
	case model.ActionInstructor:
		if a.Instructor != nil {
			r.processInstructorAction(a.Instructor, instant)
		}
	case model.ActionBoard:
		if a.Board != nil {
			r.processBoardAction(a.Board, instant)
		}
	case model.ActionAnimate:
		if a.Animate != nil && !instant {
			r.processAnimateAction(a.Animate)
		}
	case model.ActionAudio:
		// Sound-effect cues are reserved; nothing to do yet.
	default:
		slog.Warn("skipping action of unknown type", "type", a.Type, "at", a.At.Seconds())
	}
}

func (r *Renderer) processInstructorAction(c *model.InstructorContent, instant bool) {
	r.mu.Lock()
	if c.Emotion != "" {
		r.avatar.Emotion = c.Emotion
	}
	if c.Gesture != "" {
		r.avatar.Gesture = c.Gesture
	}
	r.mu.Unlock()

	if c.HighlightElement != "" && !instant {
		r.HighlightElement(c.HighlightElement)
	}

	if c.Speak == "" || instant || r.cfg.Speech == nil {
		return
	}
	text := c.Speak
	r.cfg.Speech.Speak(text,
		func() {
			r.mu.Lock()
			r.speaking = true
			r.mu.Unlock()
			if r.cfg.OnSpeechStart != nil {
				r.cfg.OnSpeechStart(text)
			}
		},
		func() {
			r.mu.Lock()
			r.speaking = false
			r.mu.Unlock()
			if r.cfg.OnSpeechEnd != nil {
				r.cfg.OnSpeechEnd()
			}
		})
}

// processBoardAction clears if requested, then adds each element. A failed
// element is logged and skipped; the rest of the batch still lands.
func (r *Renderer) processBoardAction(c *model.BoardContent, instant bool) {
	if c.Clear {
		r.board.Clear()
	}
	for i := range c.Elements {
		el, err := r.board.Add(c.Elements[i], c.Zone)
		if err != nil {
			slog.Warn("skipping board element", "id", c.Elements[i].ID, "error", err)
			continue
		}
		if instant {
			r.revealInstantly(el)
			continue
		}
		r.runEntrance(el, c.Elements[i].Entrance)
	}
}

func (r *Renderer) processAnimateAction(c *model.AnimateContent) {
	if c.Target == "all" {
		for _, el := range r.board.Elements() {
			r.animateElement(el, c.Animation)
		}
		return
	}
	el, ok := r.board.Get(c.Target)
	if !ok {
		slog.Warn("animate target not on board", "target", c.Target)
		return
	}
	r.animateElement(el, c.Animation)
}
