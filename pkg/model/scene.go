package model

import (
	"encoding/json"
	"strings"
	"sync"
)

const (
	// narrationWordsPerMinute approximates speech pace for duration derivation.
	narrationWordsPerMinute = 150.0
	// defaultActionSeconds is the assumed screen time of a non-narration action.
	defaultActionSeconds = 2.0
	// sequenceTailSeconds pads the derived duration so the last beat can land.
	sequenceTailSeconds = 5.0
)

// AnswerSet holds one or more acceptable checkpoint answers. On the wire it
// is either a single string or an array of strings.
type AnswerSet []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *AnswerSet) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = AnswerSet{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = AnswerSet(many)
	return nil
}

// MarshalJSON implements json.Marshaler, preserving the compact single-string
// form where possible.
func (s AnswerSet) MarshalJSON() ([]byte, error) {
	if len(s) == 1 {
		return json.Marshal(s[0])
	}
	return json.Marshal([]string(s))
}

// Matches reports whether answer equals any acceptable answer, ignoring case
// and surrounding whitespace.
func (s AnswerSet) Matches(answer string) bool {
	normalized := strings.ToLower(strings.TrimSpace(answer))
	for _, want := range s {
		if strings.ToLower(strings.TrimSpace(want)) == normalized {
			return true
		}
	}
	return false
}

// Checkpoint is a comprehension gate attached to the end of a sequence.
type Checkpoint struct {
	ID            string    `json:"id,omitempty"`
	Type          string    `json:"type,omitempty"`
	Prompt        string    `json:"prompt"`
	AcceptInput   bool      `json:"acceptInput,omitempty"`
	Options       []string  `json:"options,omitempty"`
	CorrectAnswer AnswerSet `json:"correctAnswer,omitempty"`
	XPReward      int       `json:"xpReward,omitempty"`
	Hints         []string  `json:"hints,omitempty"`
}

// Sequence is one ordered unit of instruction: narration, visuals, and an
// optional terminal checkpoint. Sequences are immutable once constructed;
// the derived duration is computed lazily and cached.
type Sequence struct {
	ID       string   `json:"id"`
	Title    string   `json:"title,omitempty"`
	Duration float64  `json:"duration,omitempty"` // nominal seconds; 0 = derive
	Actions  []Action `json:"actions"`

	Checkpoint *Checkpoint `json:"checkpoint,omitempty"`

	durOnce sync.Once
	durVal  float64
}

// EffectiveDuration returns the sequence duration in seconds: the nominal
// value when set, otherwise a derivation from narration word count
// (~150 words/minute) and default action lengths, plus a tail buffer. The
// derived value is always at least the latest scheduled action time.
func (s *Sequence) EffectiveDuration() float64 {
	if s.Duration > 0 {
		return s.Duration
	}
	s.durOnce.Do(func() {
		s.durVal = deriveDuration(s.Actions)
	})
	return s.durVal
}

func deriveDuration(actions []Action) float64 {
	var maxTime float64
	for i := range actions {
		a := &actions[i]
		t := a.At.Seconds()
		if a.Type == ActionInstructor && a.Instructor != nil && a.Instructor.Speak != "" {
			words := len(strings.Fields(a.Instructor.Speak))
			t += float64(words) / narrationWordsPerMinute * 60
		} else {
			t += defaultActionSeconds
		}
		if t > maxTime {
			maxTime = t
		}
	}
	return maxTime + sequenceTailSeconds
}

// DecodeSequences parses a JSON array of sequences.
func DecodeSequences(data []byte) ([]*Sequence, error) {
	var seqs []*Sequence
	if err := json.Unmarshal(data, &seqs); err != nil {
		return nil, err
	}
	return seqs, nil
}
