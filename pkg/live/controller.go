package live

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"tutorgo/pkg/model"
)

func shortID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// BoardSurface is the renderer seam the controller drives.
type BoardSurface interface {
	ExecuteBoardAction(action *model.BoardContent) error
	ClearBoard() error
}

// Insight is one observation about the student's learning state.
type Insight struct {
	Type        string  `json:"type"`
	Topic       string  `json:"topic"`
	Observation string  `json:"observation"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// Responder sends tool responses back over the session.
type Responder interface {
	SendToolResponse(tc *ToolCall, results []any) error
}

// Controller dispatches tool-call batches from a live session to the
// board, checkpoint, insight, and search collaborators.
type Controller struct {
	board BoardSurface

	// OnCheckpoint receives model-triggered checkpoints. Optional.
	OnCheckpoint func(cp *model.Checkpoint)
	// OnInsight receives learning observations. Optional.
	OnInsight func(in Insight)
	// Search answers course-material queries. Optional; without it the
	// search tool reports that no material is available.
	Search func(query string) (string, error)
}

// NewController creates a controller over the given board surface.
func NewController(board BoardSurface) *Controller {
	return &Controller{board: board}
}

// Dispatch executes every call in the batch and sends the aligned results
// in a single tool response. A failed call yields an error-shaped result
// for its slot; the rest of the batch still executes.
func (c *Controller) Dispatch(tc *ToolCall, r Responder) error {
	results := make([]any, len(tc.FunctionCalls))
	for i, fc := range tc.FunctionCalls {
		res, err := c.execute(fc)
		if err != nil {
			slog.Warn("Live: tool call failed", "tool", fc.Name, "error", err)
			results[i] = map[string]any{"error": err.Error()}
			continue
		}
		results[i] = res
	}
	return r.SendToolResponse(tc, results)
}

func (c *Controller) execute(fc FunctionCall) (any, error) {
	switch fc.Name {
	case ToolUpdateBoard:
		return c.updateBoard(fc.Args)
	case ToolTriggerCheckpoint:
		return c.triggerCheckpoint(fc.Args)
	case ToolReportLearningInsight:
		return c.reportInsight(fc.Args)
	case ToolSearchCourseMaterial:
		return c.searchMaterial(fc.Args)
	default:
		return nil, fmt.Errorf("unknown tool %q", fc.Name)
	}
}

func (c *Controller) updateBoard(args json.RawMessage) (any, error) {
	var action model.BoardContent
	if err := json.Unmarshal(args, &action); err != nil {
		return nil, fmt.Errorf("parse updateBoard args: %w", err)
	}
	if action.Clear && len(action.Elements) == 0 {
		if err := c.board.ClearBoard(); err != nil {
			return nil, err
		}
		return map[string]any{"success": true}, nil
	}
	if err := c.board.ExecuteBoardAction(&action); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "elements": len(action.Elements)}, nil
}

func (c *Controller) triggerCheckpoint(args json.RawMessage) (any, error) {
	var payload struct {
		Prompt        string   `json:"prompt"`
		CorrectAnswer string   `json:"correctAnswer"`
		Options       []string `json:"options"`
		XPReward      int      `json:"xpReward"`
	}
	if err := json.Unmarshal(args, &payload); err != nil {
		return nil, fmt.Errorf("parse triggerCheckpoint args: %w", err)
	}
	if payload.Prompt == "" || payload.CorrectAnswer == "" {
		return nil, fmt.Errorf("triggerCheckpoint requires prompt and correctAnswer")
	}

	cp := &model.Checkpoint{
		ID:            fmt.Sprintf("live-cp-%s", shortID()),
		Type:          checkpointType(payload.Options),
		Prompt:        payload.Prompt,
		AcceptInput:   true,
		Options:       payload.Options,
		CorrectAnswer: model.AnswerSet{payload.CorrectAnswer},
		XPReward:      payload.XPReward,
	}
	if c.OnCheckpoint != nil {
		c.OnCheckpoint(cp)
	}
	return map[string]any{"success": true, "checkpointId": cp.ID}, nil
}

func checkpointType(options []string) string {
	if len(options) > 0 {
		return "multiple-choice"
	}
	return "question"
}

func (c *Controller) reportInsight(args json.RawMessage) (any, error) {
	var in Insight
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("parse reportLearningInsight args: %w", err)
	}
	if in.Type == "" || in.Topic == "" {
		return nil, fmt.Errorf("reportLearningInsight requires type and topic")
	}
	slog.Info("Live: learning insight", "type", in.Type, "topic", in.Topic, "observation", in.Observation)
	if c.OnInsight != nil {
		c.OnInsight(in)
	}
	return map[string]any{"success": true}, nil
}

func (c *Controller) searchMaterial(args json.RawMessage) (any, error) {
	var payload struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &payload); err != nil {
		return nil, fmt.Errorf("parse searchCourseMaterial args: %w", err)
	}
	if c.Search == nil {
		return map[string]any{"found": false, "text": "No course material is available."}, nil
	}
	text, err := c.Search(payload.Query)
	if err != nil {
		return nil, fmt.Errorf("search course material: %w", err)
	}
	return map[string]any{"found": text != "", "text": text}, nil
}
