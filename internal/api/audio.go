package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"tutorgo/pkg/audio"
)

// AudioHandler handles speech playback control endpoints.
type AudioHandler struct {
	sched *audio.Scheduler

	mu     sync.Mutex
	volume float64
}

// NewAudioHandler creates a new AudioHandler. volume is the configured
// startup volume, already applied to the scheduler.
func NewAudioHandler(sched *audio.Scheduler, volume float64) *AudioHandler {
	return &AudioHandler{sched: sched, volume: volume}
}

// AudioControlRequest represents an audio control command.
type AudioControlRequest struct {
	Action string `json:"action"` // "pause", "resume", "flush"
}

// AudioVolumeRequest represents a volume change request.
type AudioVolumeRequest struct {
	Volume float64 `json:"volume"`
}

// AudioStatusResponse represents the audio playback status.
type AudioStatusResponse struct {
	BufferedMs int64   `json:"buffered_ms"`
	Volume     float64 `json:"volume"`
}

// HandleControl handles POST /api/audio/control.
func (h *AudioHandler) HandleControl(w http.ResponseWriter, r *http.Request) {
	var req AudioControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	switch req.Action {
	case "pause":
		h.sched.Pause()
	case "resume":
		h.sched.Resume()
	case "flush":
		h.sched.Flush()
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}

	slog.Debug("API: audio control", "action", req.Action)
	writeJSON(w, map[string]string{"status": "ok", "action": req.Action})
}

// HandleVolume handles POST /api/audio/volume.
func (h *AudioHandler) HandleVolume(w http.ResponseWriter, r *http.Request) {
	var req AudioVolumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Volume < 0 || req.Volume > 1 {
		http.Error(w, "volume out of range", http.StatusBadRequest)
		return
	}

	h.sched.SetVolume(req.Volume)
	h.mu.Lock()
	h.volume = req.Volume
	h.mu.Unlock()

	writeJSON(w, map[string]any{"status": "ok", "volume": req.Volume})
}

// HandleStatus handles GET /api/audio/status.
func (h *AudioHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	vol := h.volume
	h.mu.Unlock()
	writeJSON(w, AudioStatusResponse{
		BufferedMs: h.sched.Buffered().Milliseconds(),
		Volume:     vol,
	})
}
