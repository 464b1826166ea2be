package api

import (
	"image/png"
	"log/slog"
	"net/http"

	"tutorgo/pkg/board"
	"tutorgo/pkg/renderer"
)

// BoardScene is what the board handler reads from the renderer.
type BoardScene interface {
	Board() *board.Board
	State() renderer.State
}

// BoardHandler serves board snapshots: a rasterized PNG frame and a JSON
// description of the scene graph.
type BoardHandler struct {
	scene BoardScene
}

// NewBoardHandler creates a new BoardHandler.
func NewBoardHandler(scene BoardScene) *BoardHandler {
	return &BoardHandler{scene: scene}
}

// HandleFrame handles GET /api/board/frame.png.
func (h *BoardHandler) HandleFrame(w http.ResponseWriter, r *http.Request) {
	img := h.scene.Board().Rasterize()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, img); err != nil {
		slog.Error("API: failed to encode board frame", "error", err)
	}
}

// BoardElementInfo is one scene-graph element in the state response.
type BoardElementInfo struct {
	ID            string  `json:"id"`
	Type          string  `json:"type"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Opacity       float64 `json:"opacity"`
	OffsetX       float64 `json:"offset_x,omitempty"`
	OffsetY       float64 `json:"offset_y,omitempty"`
	ScaleX        float64 `json:"scale_x,omitempty"`
	ScaleY        float64 `json:"scale_y,omitempty"`
	RevealedChars int     `json:"revealed_chars,omitempty"`
}

// HandleState handles GET /api/board/state.
func (h *BoardHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	b := h.scene.Board()
	st := h.scene.State()

	elems := b.Snapshot()
	out := make([]BoardElementInfo, 0, len(elems))
	for _, e := range elems {
		out = append(out, BoardElementInfo{
			ID:            e.ID,
			Type:          string(e.Kind),
			X:             e.Base.X,
			Y:             e.Base.Y,
			Opacity:       e.Opacity,
			OffsetX:       e.OffsetX,
			OffsetY:       e.OffsetY,
			ScaleX:        e.ScaleX,
			ScaleY:        e.ScaleY,
			RevealedChars: e.RevealedChars,
		})
	}

	width, height := b.Size()
	writeJSON(w, map[string]any{
		"width":    width,
		"height":   height,
		"playing":  st.Playing,
		"time":     st.CurrentTime,
		"elements": out,
	})
}
