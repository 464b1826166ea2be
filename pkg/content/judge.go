package content

import (
	"context"
	"fmt"
	"strings"
)

// Verdict is the outcome of grading a checkpoint answer.
type Verdict struct {
	IsCorrect     bool   `json:"isCorrect"`
	Feedback      string `json:"feedback"`
	PartialCredit int    `json:"partialCredit,omitempty"`
}

// Judge grades checkpoint answers: exact match first, then a small edit
// tolerance for typos, then the LLM for free-form answers.
type Judge struct {
	llm LLM
}

// NewJudge creates a judge over the given LLM. A nil LLM disables the
// free-form tier; answers that fail the local checks grade as incorrect.
func NewJudge(llm LLM) *Judge {
	return &Judge{llm: llm}
}

// Validate grades userAnswer against the checkpoint. correctAnswer may be
// empty for open questions, which go straight to the LLM tier.
func (j *Judge) Validate(ctx context.Context, checkpointPrompt, correctAnswer, userAnswer string) (*Verdict, error) {
	if correctAnswer != "" {
		correct := strings.ToLower(strings.TrimSpace(correctAnswer))
		user := strings.ToLower(strings.TrimSpace(userAnswer))
		if user == correct {
			return &Verdict{IsCorrect: true, Feedback: "Correct!"}, nil
		}
		if isCloseMatch(user, correct) {
			return &Verdict{IsCorrect: true, Feedback: "Correct! (minor typo detected)"}, nil
		}
	}

	if j.llm == nil {
		return &Verdict{IsCorrect: false, Feedback: "Not quite. Give it another try!"}, nil
	}

	prompt := buildJudgePrompt(checkpointPrompt, correctAnswer, userAnswer)
	var v Verdict
	if err := j.llm.GenerateJSON(ctx, "judge", prompt, &v); err != nil {
		return nil, fmt.Errorf("judge answer: %w", err)
	}
	return &v, nil
}

// isCloseMatch tolerates up to two combined character substitutions and
// length differences, so a one-letter typo still counts.
func isCloseMatch(a, b string) bool {
	lenDiff := len(a) - len(b)
	if lenDiff < 0 {
		lenDiff = -lenDiff
	}
	if lenDiff > 3 {
		return false
	}

	differences := 0
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		if a[i] != b[i] {
			differences++
		}
		if differences > 2 {
			return false
		}
	}
	return differences+lenDiff <= 2
}
