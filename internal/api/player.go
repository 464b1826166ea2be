package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"tutorgo/pkg/content"
	"tutorgo/pkg/player"
	"tutorgo/pkg/renderer"
)

// SceneStatus is what the player handler reads from the renderer.
type SceneStatus interface {
	State() renderer.State
	Avatar() renderer.AvatarState
}

// AnswerJudge grades free-form checkpoint answers that fail the literal
// match. Implemented by content.Judge.
type AnswerJudge interface {
	Validate(ctx context.Context, checkpointPrompt, correctAnswer, userAnswer string) (*content.Verdict, error)
}

// PlayerHandler exposes playback control and checkpoint answering.
type PlayerHandler struct {
	player *player.Player
	scene  SceneStatus
	judge  AnswerJudge // optional; nil disables the LLM tier
}

// NewPlayerHandler creates a new PlayerHandler.
func NewPlayerHandler(pl *player.Player, scene SceneStatus, judge AnswerJudge) *PlayerHandler {
	return &PlayerHandler{player: pl, scene: scene, judge: judge}
}

// PlayerControlRequest represents a playback control command.
type PlayerControlRequest struct {
	Action string `json:"action"` // "play", "pause", "resume", "stop", "next", "previous"
}

// HandleControl handles POST /api/player/control.
func (h *PlayerHandler) HandleControl(w http.ResponseWriter, r *http.Request) {
	var req PlayerControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var err error
	switch req.Action {
	case "play":
		err = h.player.Play()
	case "pause":
		h.player.Pause()
	case "resume":
		err = h.player.Resume()
	case "stop":
		h.player.Stop()
	case "next":
		err = h.player.SkipToNext()
	case "previous":
		err = h.player.SkipToPrevious()
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	slog.Debug("API: player control", "action", req.Action)
	writeJSON(w, map[string]string{"status": "ok", "action": req.Action})
}

// HandleSeek handles POST /api/player/seek.
func (h *PlayerHandler) HandleSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Time float64 `json:"time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Time < 0 {
		http.Error(w, "invalid seek time", http.StatusBadRequest)
		return
	}
	h.player.Seek(req.Time)
	writeJSON(w, map[string]any{"status": "ok", "time": req.Time})
}

// PlayerStatusResponse is the full playback status.
type PlayerStatusResponse struct {
	Playing      bool            `json:"playing"`
	CurrentTime  float64         `json:"current_time"`
	Duration     float64         `json:"duration"`
	Speaking     bool            `json:"speaking"`
	Avatar       map[string]any  `json:"avatar"`
	Queue        []string        `json:"queue"`
	CurrentID    string          `json:"current_id,omitempty"`
	CurrentTitle string          `json:"current_title,omitempty"`
	SessionXP    int             `json:"session_xp"`
	Checkpoint   *CheckpointInfo `json:"checkpoint,omitempty"`
}

// CheckpointInfo describes a pending checkpoint awaiting an answer.
type CheckpointInfo struct {
	ID       string   `json:"id"`
	Type     string   `json:"type,omitempty"`
	Prompt   string   `json:"prompt"`
	Options  []string `json:"options,omitempty"`
	Attempts int      `json:"attempts"`
}

// HandleStatus handles GET /api/player/status.
func (h *PlayerHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	st := h.scene.State()
	av := h.scene.Avatar()
	resp := PlayerStatusResponse{
		Playing:     st.Playing,
		CurrentTime: st.CurrentTime,
		Duration:    st.Duration,
		Speaking:    st.Speaking,
		Avatar: map[string]any{
			"emotion":  av.Emotion,
			"gesture":  av.Gesture,
			"speaking": av.Speaking,
		},
		Queue:     h.player.Queue(),
		SessionXP: h.player.XP(),
	}
	if cur := h.player.Current(); cur != nil {
		resp.CurrentID = cur.ID
		resp.CurrentTitle = cur.Title
	}
	if pending := h.player.PendingCheckpoint(); pending != nil {
		cp := pending.Checkpoint()
		resp.Checkpoint = &CheckpointInfo{
			ID:       cp.ID,
			Type:     cp.Type,
			Prompt:   cp.Prompt,
			Options:  cp.Options,
			Attempts: pending.Attempts(),
		}
	}
	writeJSON(w, resp)
}

// HandleAnswer handles POST /api/checkpoint/answer. The literal match runs
// first; a miss falls through to the judge, which can accept close or
// free-form answers.
func (h *PlayerHandler) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Answer == "" {
		http.Error(w, "answer is required", http.StatusBadRequest)
		return
	}

	pending := h.player.PendingCheckpoint()
	if pending == nil {
		http.Error(w, "no pending checkpoint", http.StatusConflict)
		return
	}
	cp := pending.Checkpoint()

	correct, err := pending.Submit(req.Answer)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if correct {
		writeJSON(w, map[string]any{
			"correct":  true,
			"feedback": "Correct!",
			"xp":       cp.XPReward,
		})
		return
	}

	// The attempt cap may have resolved the checkpoint; playback has
	// already moved on.
	if h.player.PendingCheckpoint() == nil {
		feedback := "Let's keep going."
		if len(cp.CorrectAnswer) > 0 {
			feedback = fmt.Sprintf("The answer was %q. Let's keep going.", cp.CorrectAnswer[0])
		}
		writeJSON(w, map[string]any{
			"correct":  false,
			"feedback": feedback,
			"moved_on": true,
		})
		return
	}

	if h.judge != nil && cp.AcceptInput {
		expected := ""
		if len(cp.CorrectAnswer) > 0 {
			expected = cp.CorrectAnswer[0]
		}
		verdict, jerr := h.judge.Validate(r.Context(), cp.Prompt, expected, req.Answer)
		if jerr != nil {
			slog.Warn("API: judge failed, keeping literal verdict", "error", jerr)
		} else if verdict.IsCorrect {
			if err := pending.Accept(); err != nil {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			writeJSON(w, map[string]any{
				"correct":        true,
				"feedback":       verdict.Feedback,
				"partial_credit": verdict.PartialCredit,
				"xp":             cp.XPReward,
			})
			return
		} else if verdict.Feedback != "" {
			writeJSON(w, map[string]any{
				"correct":  false,
				"feedback": verdict.Feedback,
				"hint":     h.hintFor(pending),
			})
			return
		}
	}

	writeJSON(w, map[string]any{
		"correct":  false,
		"feedback": "Not quite. Try again!",
		"hint":     h.hintFor(pending),
	})
}

func (h *PlayerHandler) hintFor(pending *player.PendingCheckpoint) string {
	idx := pending.Attempts() - 1
	if idx < 0 {
		idx = 0
	}
	return pending.Hint(idx)
}

// HandleSkip handles POST /api/checkpoint/skip.
func (h *PlayerHandler) HandleSkip(w http.ResponseWriter, r *http.Request) {
	pending := h.player.PendingCheckpoint()
	if pending == nil {
		http.Error(w, "no pending checkpoint", http.StatusConflict)
		return
	}
	if err := pending.Skip(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// HandleHint handles GET /api/checkpoint/hint.
func (h *PlayerHandler) HandleHint(w http.ResponseWriter, r *http.Request) {
	pending := h.player.PendingCheckpoint()
	if pending == nil {
		http.Error(w, "no pending checkpoint", http.StatusConflict)
		return
	}
	writeJSON(w, map[string]string{"hint": h.hintFor(pending)})
}
