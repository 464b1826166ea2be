package model

import (
	"encoding/json"
	"fmt"
)

// ActionType identifies the kind of a scheduled action.
type ActionType string

const (
	ActionInstructor ActionType = "instructor"
	ActionBoard      ActionType = "board"
	ActionAnimate    ActionType = "animate"
	ActionAudio      ActionType = "audio"
)

// InstructorContent drives narration and avatar state.
type InstructorContent struct {
	Mode             string `json:"mode,omitempty"`
	Speak            string `json:"speak,omitempty"`
	Emotion          string `json:"emotion,omitempty"` // neutral, friendly, excited, thoughtful, encouraging
	Gesture          string `json:"gesture,omitempty"` // wave, nod, thinking
	HighlightElement string `json:"highlightElement,omitempty"`
}

// BoardContent adds elements to the board, optionally clearing it first.
type BoardContent struct {
	Clear    bool           `json:"clear,omitempty"`
	Zone     Zone           `json:"zone,omitempty"`
	Elements []BoardElement `json:"elements"`
}

// AnimationType identifies an ongoing element animation.
type AnimationType string

const (
	AnimationHighlight AnimationType = "highlight"
	AnimationShake     AnimationType = "shake"
	AnimationMove      AnimationType = "move"
)

// Animation describes an ongoing animation applied by an animate action.
type Animation struct {
	Type       AnimationType `json:"type"`
	DurationMs float64       `json:"duration,omitempty"`
	To         *Point        `json:"to,omitempty"`
}

// AnimateContent targets an element (or "all") with an animation.
type AnimateContent struct {
	Target    string    `json:"target"`
	Animation Animation `json:"animation"`
}

// AudioContent is reserved for sound-effect cues; the renderer ignores it.
type AudioContent struct {
	Cue string `json:"cue,omitempty"`
}

// Action is one scheduled instruction within a sequence. Exactly one of the
// typed content fields is set, matching Type.
type Action struct {
	At   Timestamp  `json:"at"`
	Type ActionType `json:"type"`

	Instructor *InstructorContent `json:"-"`
	Board      *BoardContent      `json:"-"`
	Animate    *AnimateContent    `json:"-"`
	Audio      *AudioContent      `json:"-"`
}

// Key identifies an action for at-most-once processing within a playback
// pass. Actions are keyed by (type, at); two actions sharing both fire as
// one, matching list-order semantics of the source material.
func (a Action) Key() string {
	return fmt.Sprintf("%s-%g", a.Type, a.At.Seconds())
}

type actionWire struct {
	At      Timestamp       `json:"at"`
	Type    ActionType      `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
}

// UnmarshalJSON decodes the type-discriminated content payload. Unknown
// action types survive decoding with no payload; the renderer skips them.
func (a *Action) UnmarshalJSON(data []byte) error {
	var w actionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	a.At = w.At
	a.Type = w.Type

	if len(w.Content) == 0 {
		return nil
	}

	switch w.Type {
	case ActionInstructor:
		a.Instructor = &InstructorContent{}
		return json.Unmarshal(w.Content, a.Instructor)
	case ActionBoard:
		a.Board = &BoardContent{}
		return json.Unmarshal(w.Content, a.Board)
	case ActionAnimate:
		a.Animate = &AnimateContent{}
		return json.Unmarshal(w.Content, a.Animate)
	case ActionAudio:
		a.Audio = &AudioContent{}
		return json.Unmarshal(w.Content, a.Audio)
	default:
		return nil
	}
}

// MarshalJSON re-encodes the action in its wire shape.
func (a Action) MarshalJSON() ([]byte, error) {
	w := actionWire{At: a.At, Type: a.Type}

	var content any
	switch a.Type {
	case ActionInstructor:
		content = a.Instructor
	case ActionBoard:
		content = a.Board
	case ActionAnimate:
		content = a.Animate
	case ActionAudio:
		content = a.Audio
	}
	if content != nil {
		raw, err := json.Marshal(content)
		if err != nil {
			return nil, fmt.Errorf("marshal %s content: %w", a.Type, err)
		}
		w.Content = raw
	}
	return json.Marshal(w)
}
