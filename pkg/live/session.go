package live

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"tutorgo/pkg/model"
)

// Scene is the renderer seam a session drives. It extends BoardSurface
// with the live-mode transitions.
type Scene interface {
	BoardSurface
	BeginLive() error
	EndLive()
}

// AudioSink receives model speech for playback.
type AudioSink interface {
	EnqueueChunk(base64Data string) error
	Flush()
}

// SessionConfig wires a live session to its collaborators. The embedded
// client Config's callbacks are owned by the session and overwritten.
type SessionConfig struct {
	Client Config
	Scene  Scene
	Sink   AudioSink

	OnCheckpoint func(cp *model.Checkpoint)
	OnInsight    func(in Insight)
	Search       func(query string) (string, error)
	OnText       func(text string)
}

// Session is one live voice conversation: it connects the WebSocket
// client, routes model audio to the sink, tool calls to the controller,
// and holds the renderer in live mode for its lifetime.
type Session struct {
	mu     sync.Mutex
	cfg    SessionConfig
	client *Client
	ctrl   *Controller
	cancel context.CancelFunc
	active bool
}

// NewSession prepares a session; nothing connects until Start.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Scene == nil {
		return nil, fmt.Errorf("scene is required")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("audio sink is required")
	}
	ctrl := NewController(cfg.Scene)
	ctrl.OnCheckpoint = cfg.OnCheckpoint
	ctrl.OnInsight = cfg.OnInsight
	ctrl.Search = cfg.Search
	return &Session{cfg: cfg, ctrl: ctrl}, nil
}

// Start switches the renderer into live mode and connects the client.
// On connect failure live mode is rolled back.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return fmt.Errorf("live session already active")
	}

	clientCfg := s.cfg.Client
	if clientCfg.SystemInstruction == "" {
		clientCfg.SystemInstruction = SystemInstruction
	}
	if len(clientCfg.Tools) == 0 {
		clientCfg.Tools = TutorTools()
	}
	clientCfg.OnAudio = func(chunk AudioChunk) {
		if err := s.cfg.Sink.EnqueueChunk(chunk.Data); err != nil {
			slog.Warn("Live: dropping audio chunk", "error", err)
		}
	}
	clientCfg.OnInterrupted = func() {
		s.cfg.Sink.Flush()
	}
	clientCfg.OnText = s.cfg.OnText
	clientCfg.OnToolCall = func(tc *ToolCall) {
		client := s.currentClient()
		if client == nil {
			return
		}
		if err := s.ctrl.Dispatch(tc, client); err != nil {
			slog.Warn("Live: tool dispatch failed", "error", err)
		}
	}
	clientCfg.OnClose = func(err error) {
		if err != nil {
			slog.Warn("Live: session closed", "error", err)
		}
		s.deactivate()
	}

	client, err := NewClient(clientCfg)
	if err != nil {
		return err
	}
	if err := s.cfg.Scene.BeginLive(); err != nil {
		return err
	}
	// The conversation outlives the caller's request context; only its
	// values carry over. Stop cancels the detached context.
	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := client.Connect(sessCtx); err != nil {
		cancel()
		s.cfg.Scene.EndLive()
		return err
	}
	s.client = client
	s.cancel = cancel
	s.active = true
	slog.Info("Live: session started", "model", clientCfg.Model, "voice", clientCfg.Voice)
	return nil
}

// Stop closes the client and leaves live mode. Safe to call twice.
func (s *Session) Stop() {
	s.mu.Lock()
	client := s.client
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if client != nil {
		client.Close()
	}
	s.deactivate()
}

// Active reports whether the session is connected.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SendText forwards a typed user turn into the conversation.
func (s *Session) SendText(text string) error {
	client := s.currentClient()
	if client == nil {
		return fmt.Errorf("live session not active")
	}
	return client.SendText(text)
}

// SendAudioChunk forwards one base64 PCM capture chunk.
func (s *Session) SendAudioChunk(base64Audio string) error {
	client := s.currentClient()
	if client == nil {
		return fmt.Errorf("live session not active")
	}
	return client.SendAudioChunk(base64Audio)
}

func (s *Session) currentClient() *Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return nil
	}
	return s.client
}

func (s *Session) deactivate() {
	s.mu.Lock()
	wasActive := s.active
	s.active = false
	s.client = nil
	s.cancel = nil
	s.mu.Unlock()
	if wasActive {
		s.cfg.Scene.EndLive()
		slog.Info("Live: session ended")
	}
}
