package content

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"tutorgo/pkg/model"
)

// DefaultFallbackSpeakLimit caps how much of an unparseable response is
// narrated verbatim by the fallback sequence.
const DefaultFallbackSpeakLimit = 500

// Generator turns topics and student questions into playable sequences.
type Generator struct {
	llm LLM

	// FallbackSpeakLimit overrides DefaultFallbackSpeakLimit when > 0.
	FallbackSpeakLimit int
}

// NewGenerator creates a generator over the given LLM.
func NewGenerator(llm LLM) *Generator {
	return &Generator{llm: llm}
}

// GenerateLesson produces the sequences for one lesson on topic, grounded
// in the supplied course-material chunks. A response that cannot be parsed
// degrades to a single narration-only fallback sequence instead of failing
// the lesson.
func (g *Generator) GenerateLesson(ctx context.Context, topic string, contextChunks []string, userContext string) ([]*model.Sequence, error) {
	prompt := buildLessonPrompt(topic, contextChunks, userContext)
	text, err := g.llm.GenerateText(ctx, "lesson", prompt)
	if err != nil {
		return nil, fmt.Errorf("generate lesson for %q: %w", topic, err)
	}
	return g.parseSequences(text), nil
}

// GenerateInterrupt produces a short explanation sequence for a question
// asked mid-lesson.
func (g *Generator) GenerateInterrupt(ctx context.Context, question, currentTopic string, contextChunks []string) ([]*model.Sequence, error) {
	prompt := buildInterruptPrompt(question, currentTopic, contextChunks)
	text, err := g.llm.GenerateText(ctx, "interrupt", prompt)
	if err != nil {
		return nil, fmt.Errorf("generate interrupt answer: %w", err)
	}
	return g.parseSequences(text), nil
}

// parseSequences extracts the JSON array from a model response. When no
// parseable array is present the raw text becomes a fallback narration.
func (g *Generator) parseSequences(text string) []*model.Sequence {
	if raw := extractJSONArray(text); raw != "" {
		seqs, err := model.DecodeSequences([]byte(raw))
		if err == nil && len(seqs) > 0 {
			return seqs
		}
		if err != nil {
			slog.Warn("Content: response array did not decode, falling back", "error", err)
		}
	} else {
		slog.Warn("Content: no JSON array in response, falling back")
	}
	return []*model.Sequence{g.fallbackSequence(text)}
}

// fallbackSequence wraps raw response text in a minimal narration so the
// student still hears something when generation misbehaves.
func (g *Generator) fallbackSequence(text string) *model.Sequence {
	limit := g.FallbackSpeakLimit
	if limit <= 0 {
		limit = DefaultFallbackSpeakLimit
	}
	speak := strings.TrimSpace(text)
	if len(speak) > limit {
		// Cut on a rune boundary; a split UTF-8 sequence would reach the
		// speech synthesizer as garbage.
		for limit > 0 && !utf8.RuneStart(speak[limit]) {
			limit--
		}
		speak = speak[:limit]
	}
	return &model.Sequence{
		ID:    fmt.Sprintf("fallback-%s", uuid.NewString()[:8]),
		Title: "Generated Lesson",
		Actions: []model.Action{{
			At:   0,
			Type: model.ActionInstructor,
			Instructor: &model.InstructorContent{
				Mode:    "abstract",
				Emotion: "friendly",
				Speak:   speak,
				Gesture: "nod",
			},
		}},
	}
}

// extractJSONArray returns the outermost [...] span of text, or "".
func extractJSONArray(text string) string {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
