package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"tutorgo/pkg/version"
)

// NewServer creates and configures the HTTP server. Handlers may be nil;
// their routes are simply not registered.
func NewServer(addr string, sessionH *SessionHandler, playerH *PlayerHandler, boardH *BoardHandler, audioH *AudioHandler, liveH *LiveHandler, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)

	if sessionH != nil {
		mux.HandleFunc("POST /api/sessions", sessionH.HandleCreate)
		mux.HandleFunc("GET /api/sessions", sessionH.HandleList)
		mux.HandleFunc("POST /api/sessions/{id}/save", sessionH.HandleSave)
		mux.HandleFunc("POST /api/sessions/{id}/restore", sessionH.HandleRestore)
		mux.HandleFunc("DELETE /api/sessions/{id}", sessionH.HandleDelete)
		mux.HandleFunc("POST /api/ask", sessionH.HandleAsk)
		mux.HandleFunc("GET /api/progress", sessionH.HandleProgress)
		mux.HandleFunc("GET /api/insights", sessionH.HandleInsights)
	}

	if playerH != nil {
		mux.HandleFunc("POST /api/player/control", playerH.HandleControl)
		mux.HandleFunc("POST /api/player/seek", playerH.HandleSeek)
		mux.HandleFunc("GET /api/player/status", playerH.HandleStatus)
		mux.HandleFunc("POST /api/checkpoint/answer", playerH.HandleAnswer)
		mux.HandleFunc("POST /api/checkpoint/skip", playerH.HandleSkip)
		mux.HandleFunc("GET /api/checkpoint/hint", playerH.HandleHint)
	}

	if boardH != nil {
		mux.HandleFunc("GET /api/board/frame.png", boardH.HandleFrame)
		mux.HandleFunc("GET /api/board/state", boardH.HandleState)
	}

	if audioH != nil {
		mux.HandleFunc("POST /api/audio/control", audioH.HandleControl)
		mux.HandleFunc("POST /api/audio/volume", audioH.HandleVolume)
		mux.HandleFunc("GET /api/audio/status", audioH.HandleStatus)
	}

	if liveH != nil {
		mux.HandleFunc("POST /api/live/start", liveH.HandleStart)
		mux.HandleFunc("POST /api/live/stop", liveH.HandleStop)
		mux.HandleFunc("GET /api/live/status", liveH.HandleStatus)
		mux.HandleFunc("POST /api/live/text", liveH.HandleText)
		mux.HandleFunc("POST /api/live/audio", liveH.HandleAudio)
	}

	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Call shutdown in a goroutine to allow response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}
