package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"tutorgo/pkg/config"
	"tutorgo/pkg/db/maintenance"
	"tutorgo/pkg/logging"
	"tutorgo/pkg/model"
	"tutorgo/pkg/player"
	"tutorgo/pkg/store"
)

// LessonSource produces lesson and interrupt sequences. Implemented by
// content.Generator.
type LessonSource interface {
	GenerateLesson(ctx context.Context, topic string, contextChunks []string, userContext string) ([]*model.Sequence, error)
	GenerateInterrupt(ctx context.Context, question, currentTopic string, contextChunks []string) ([]*model.Sequence, error)
}

const sequenceCachePrefix = "sequence:"

// SessionHandler owns the lesson lifecycle: creating lessons from a topic,
// saving and restoring playback snapshots, and inserting interrupt answers
// into the running queue.
type SessionHandler struct {
	store   store.Store
	source  LessonSource
	player  *player.Player
	profile *config.StudentProfile
	userID  string

	historyKeep int
	historyMax  int

	mu      sync.Mutex
	library map[string]*model.Sequence
	current string // active session id
	topic   string
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(st store.Store, source LessonSource, pl *player.Player, profile *config.StudentProfile, userID string, historyKeep, historyMax int) *SessionHandler {
	return &SessionHandler{
		store:       st,
		source:      source,
		player:      pl,
		profile:     profile,
		userID:      userID,
		historyKeep: historyKeep,
		historyMax:  historyMax,
		library:     make(map[string]*model.Sequence),
	}
}

// CurrentTopic returns the topic of the active session, if any.
func (h *SessionHandler) CurrentTopic() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.topic
}

// CurrentSessionID returns the active session id, if any.
func (h *SessionHandler) CurrentSessionID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// MaterialChunks returns the imported course-material chunks for a topic,
// or nil when none were imported.
func (h *SessionHandler) MaterialChunks(ctx context.Context, topic string) []string {
	raw, ok := h.store.GetCache(ctx, maintenance.MaterialKeyPrefix+topic)
	if !ok {
		return nil
	}
	var chunks []string
	if err := json.Unmarshal(raw, &chunks); err != nil {
		slog.Warn("API: corrupt material cache entry", "topic", topic, "error", err)
		return nil
	}
	return chunks
}

type createSessionRequest struct {
	Topic string `json:"topic"`
}

// HandleCreate handles POST /api/sessions: generate a lesson on the
// requested topic and queue its sequences for playback.
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Topic == "" {
		http.Error(w, "topic is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	chunks := h.MaterialChunks(ctx, req.Topic)
	seqs, err := h.source.GenerateLesson(ctx, req.Topic, chunks, h.profile.PromptContext())
	if err != nil {
		slog.Error("API: lesson generation failed", "topic", req.Topic, "error", err)
		http.Error(w, "lesson generation failed", http.StatusBadGateway)
		return
	}

	ids := make([]string, 0, len(seqs))
	for _, seq := range seqs {
		h.register(ctx, seq)
		h.player.Enqueue(seq)
		ids = append(ids, seq.ID)
	}

	id := uuid.New().String()
	snap, err := h.player.Snapshot()
	if err != nil {
		slog.Warn("API: initial snapshot failed", "error", err)
	}
	rec := &store.SessionRecord{
		ID:       id,
		UserID:   h.userID,
		Topic:    req.Topic,
		Snapshot: snap,
	}
	if err := h.store.SaveSession(ctx, rec); err != nil {
		slog.Error("API: failed to persist session", "error", err)
		http.Error(w, "failed to persist session", http.StatusInternalServerError)
		return
	}

	h.mu.Lock()
	h.current = id
	h.topic = req.Topic
	h.mu.Unlock()

	h.appendTurn(ctx, id, "system", fmt.Sprintf("Lesson on %q generated with %d sequences", req.Topic, len(seqs)))
	logging.LogEvent(&model.LessonEvent{
		Type:      model.EventSessionStart,
		Title:     req.Topic,
		Summary:   fmt.Sprintf("%d sequences queued", len(seqs)),
		Timestamp: time.Now(),
	})

	writeJSON(w, map[string]any{"id": id, "topic": req.Topic, "sequences": ids})
}

// register makes a sequence resolvable by id: in memory for this process,
// and in the cache so restore still works after a restart.
func (h *SessionHandler) register(ctx context.Context, seq *model.Sequence) {
	h.mu.Lock()
	h.library[seq.ID] = seq
	h.mu.Unlock()
	data, err := json.Marshal(seq)
	if err != nil {
		return
	}
	if err := h.store.SetCache(ctx, sequenceCachePrefix+seq.ID, data); err != nil {
		slog.Warn("API: failed to cache sequence", "id", seq.ID, "error", err)
	}
}

func (h *SessionHandler) lookup(ctx context.Context) func(id string) (*model.Sequence, bool) {
	return func(id string) (*model.Sequence, bool) {
		h.mu.Lock()
		seq, ok := h.library[id]
		h.mu.Unlock()
		if ok {
			return seq, true
		}
		raw, ok := h.store.GetCache(ctx, sequenceCachePrefix+id)
		if !ok {
			return nil, false
		}
		var s model.Sequence
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, false
		}
		h.mu.Lock()
		h.library[id] = &s
		h.mu.Unlock()
		return &s, true
	}
}

// HandleList handles GET /api/sessions.
func (h *SessionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	recs, err := h.store.ListSessions(r.Context(), h.userID)
	if err != nil {
		http.Error(w, "failed to list sessions", http.StatusInternalServerError)
		return
	}
	type summary struct {
		ID        string    `json:"id"`
		Topic     string    `json:"topic"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}
	out := make([]summary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, summary{ID: rec.ID, Topic: rec.Topic, CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt})
	}
	writeJSON(w, out)
}

// HandleSave handles POST /api/sessions/{id}/save: snapshot the player
// into the session record.
func (h *SessionHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := r.Context()
	rec, err := h.store.GetSession(ctx, id)
	if err != nil {
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	snap, err := h.player.Snapshot()
	if err != nil {
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}
	rec.Snapshot = snap
	if err := h.store.SaveSession(ctx, rec); err != nil {
		http.Error(w, "failed to persist session", http.StatusInternalServerError)
		return
	}
	slog.Info("API: session saved", "id", id)
	writeJSON(w, map[string]string{"status": "ok", "id": id})
}

// HandleRestore handles POST /api/sessions/{id}/restore: rehydrate the
// player queue and play head from the saved snapshot.
func (h *SessionHandler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := r.Context()
	rec, err := h.store.GetSession(ctx, id)
	if err != nil {
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	res, err := h.player.Restore(rec.Snapshot, h.lookup(ctx))
	if err != nil {
		http.Error(w, "restore failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	h.mu.Lock()
	h.current = rec.ID
	h.topic = rec.Topic
	h.mu.Unlock()

	if len(res.Missing) > 0 {
		slog.Warn("API: restore dropped missing sequences", "id", id, "missing", res.Missing)
	}
	writeJSON(w, map[string]any{
		"status":              "ok",
		"topic":               rec.Topic,
		"missing":             res.Missing,
		"replayed_from_start": res.ReplayedFromStart,
	})
}

// HandleDelete handles DELETE /api/sessions/{id}.
func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.DeleteSession(r.Context(), id); err != nil {
		http.Error(w, "failed to delete session", http.StatusInternalServerError)
		return
	}
	logging.LogEvent(&model.LessonEvent{
		Type:      model.EventSessionEnd,
		Title:     id,
		Timestamp: time.Now(),
	})
	writeJSON(w, map[string]string{"status": "ok"})
}

type askRequest struct {
	Question string `json:"question"`
}

// HandleAsk handles POST /api/ask: answer a student question mid-lesson by
// inserting an interrupt sequence after the current one.
func (h *SessionHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	h.mu.Lock()
	topic, sessionID := h.topic, h.current
	h.mu.Unlock()

	chunks := h.MaterialChunks(ctx, topic)
	seqs, err := h.source.GenerateInterrupt(ctx, req.Question, topic, chunks)
	if err != nil {
		slog.Error("API: interrupt generation failed", "error", err)
		http.Error(w, "interrupt generation failed", http.StatusBadGateway)
		return
	}

	ids := make([]string, 0, len(seqs))
	// Insert in reverse so the first generated sequence plays first.
	for i := len(seqs) - 1; i >= 0; i-- {
		h.register(ctx, seqs[i])
		h.player.Insert(seqs[i])
	}
	for _, seq := range seqs {
		ids = append(ids, seq.ID)
	}

	if sessionID != "" {
		h.appendTurn(ctx, sessionID, "user", req.Question)
		h.appendTurn(ctx, sessionID, "system", fmt.Sprintf("Interrupt answer inserted (%d sequences)", len(seqs)))
	}
	writeJSON(w, map[string]any{"status": "ok", "sequences": ids})
}

// appendTurn records one conversation turn and compacts the history when
// it grows past the configured window.
func (h *SessionHandler) appendTurn(ctx context.Context, sessionID, role, text string) {
	if err := h.store.AppendHistory(ctx, sessionID, role, text); err != nil {
		slog.Warn("API: failed to append history", "error", err)
		return
	}
	if h.historyMax <= 0 {
		return
	}
	count, err := h.store.CountHistory(ctx, sessionID)
	if err != nil || count <= h.historyMax {
		return
	}
	summary := fmt.Sprintf("Summary: %d earlier turns of this lesson were condensed.", count-h.historyKeep)
	if err := h.store.CompactHistory(ctx, sessionID, summary, h.historyKeep); err != nil {
		slog.Warn("API: history compaction failed", "error", err)
	}
}

// HandleProgress handles GET /api/progress.
func (h *SessionHandler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.GetProgress(r.Context(), h.userID)
	if err != nil {
		http.Error(w, "failed to load progress", http.StatusInternalServerError)
		return
	}
	if p == nil {
		p = &store.Progress{UserID: h.userID}
	}
	writeJSON(w, map[string]any{
		"user_id":     p.UserID,
		"xp":          p.XP,
		"streak":      p.Streak,
		"last_active": p.LastActive,
		"session_xp":  h.player.XP(),
	})
}

// HandleInsights handles GET /api/insights?session=<id>. Without a session
// parameter it serves the active session's insights.
func (h *SessionHandler) HandleInsights(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = h.CurrentSessionID()
	}
	if sessionID == "" {
		writeJSON(w, []*store.InsightRecord{})
		return
	}
	ins, err := h.store.GetInsights(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "failed to list insights", http.StatusInternalServerError)
		return
	}
	if ins == nil {
		ins = []*store.InsightRecord{}
	}
	writeJSON(w, ins)
}
