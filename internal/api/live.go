package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"tutorgo/pkg/logging"
	"tutorgo/pkg/model"
)

// LiveSession is the voice-session surface the handler controls.
// Implemented by live.Session.
type LiveSession interface {
	Start(ctx context.Context) error
	Stop()
	Active() bool
	SendText(text string) error
	SendAudioChunk(base64Audio string) error
}

// LiveHandler controls the live voice session.
type LiveHandler struct {
	session LiveSession
}

// NewLiveHandler creates a new LiveHandler.
func NewLiveHandler(session LiveSession) *LiveHandler {
	return &LiveHandler{session: session}
}

// HandleStart handles POST /api/live/start.
func (h *LiveHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	// The session outlives the request; connect with a bounded dial window.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := h.session.Start(ctx); err != nil {
		slog.Error("API: live start failed", "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	logging.LogEvent(&model.LessonEvent{
		Type:      model.EventLiveStart,
		Title:     "Live session",
		Summary:   "voice conversation started",
		Timestamp: time.Now(),
	})
	writeJSON(w, map[string]string{"status": "ok"})
}

// HandleStop handles POST /api/live/stop.
func (h *LiveHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	wasActive := h.session.Active()
	h.session.Stop()
	if wasActive {
		logging.LogEvent(&model.LessonEvent{
			Type:      model.EventLiveEnd,
			Title:     "Live session",
			Summary:   "voice conversation ended",
			Timestamp: time.Now(),
		})
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// HandleStatus handles GET /api/live/status.
func (h *LiveHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]bool{"active": h.session.Active()})
}

// HandleText handles POST /api/live/text: a typed turn into the voice
// conversation.
func (h *LiveHandler) HandleText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	if err := h.session.SendText(req.Text); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// HandleAudio handles POST /api/live/audio: one base64 16 kHz PCM capture
// chunk forwarded into the conversation.
func (h *LiveHandler) HandleAudio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Data string `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Data == "" {
		http.Error(w, "data is required", http.StatusBadRequest)
		return
	}
	if err := h.session.SendAudioChunk(req.Data); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}
