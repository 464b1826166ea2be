// Package live implements the client side of the bidirectional
// generate-content WebSocket API used for voice tutoring sessions:
// connection setup, audio streaming in both directions, and tool-call
// dispatch to the board controller.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// DefaultEndpoint is the bidirectional generate-content WebSocket endpoint.
const DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1alpha.GenerativeService.BidiGenerateContent"

const (
	captureMimeType = "audio/pcm;rate=16000"
	defaultVoice    = "Puck"
	writeTimeout    = 10 * time.Second
)

// ErrorKind classifies live-session failures for the caller's surface.
type ErrorKind string

const (
	ErrorConnection ErrorKind = "connection"
	ErrorMicrophone ErrorKind = "microphone"
	ErrorWebSocket  ErrorKind = "websocket"
)

// SessionError is a classified live-session failure.
type SessionError struct {
	Kind ErrorKind
	Err  error
}

func (e *SessionError) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }
func (e *SessionError) Unwrap() error { return e.Err }

// Config configures a live client.
type Config struct {
	APIKey   string
	Model    string
	Endpoint string // DefaultEndpoint if empty
	Voice    string // "Puck" if empty

	SystemInstruction  string
	Tools              []Tool
	ResponseModalities []string // ["audio"] if empty

	// Callbacks fire on the read-pump goroutine; keep them quick or hand
	// off. All are optional.
	OnAudio        func(chunk AudioChunk)
	OnText         func(text string)
	OnToolCall     func(tc *ToolCall)
	OnTurnComplete func()
	OnInterrupted  func()
	OnClose        func(err error)
}

// Client is one live voice session over a WebSocket. A client connects
// once; after Close it is done.
type Client struct {
	cfg  Config
	conn *websocket.Conn

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
	group   *errgroup.Group
}

// NewClient validates the config and returns an unconnected client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Voice == "" {
		cfg.Voice = defaultVoice
	}
	if len(cfg.ResponseModalities) == 0 {
		cfg.ResponseModalities = []string{"audio"}
	}
	return &Client{cfg: cfg}, nil
}

// Connect dials the endpoint, sends the setup frame, and starts the read
// pump. It returns once setup is on the wire; server frames flow to the
// callbacks from then on.
func (c *Client) Connect(ctx context.Context) error {
	url := fmt.Sprintf("%s?key=%s", c.cfg.Endpoint, c.cfg.APIKey)

	var conn *websocket.Conn
	var dialErr error
	for i := 0; i < 3; i++ {
		var resp *http.Response
		conn, resp, dialErr = websocket.DefaultDialer.DialContext(ctx, url, http.Header{})
		if dialErr == nil {
			break
		}
		if resp != nil {
			slog.Warn("Live: handshake failure", "status", resp.Status)
		}
		select {
		case <-ctx.Done():
			return &SessionError{Kind: ErrorConnection, Err: ctx.Err()}
		case <-time.After(500 * time.Millisecond):
		}
	}
	if dialErr != nil {
		return &SessionError{Kind: ErrorConnection, Err: fmt.Errorf("dial failed after retries: %w", dialErr)}
	}
	c.conn = conn

	if err := c.sendSetup(); err != nil {
		conn.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	c.group = g
	g.Go(func() error { return c.readPump(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		c.Close()
		return nil
	})
	slog.Info("Live: session connected", "model", c.cfg.Model, "voice", c.cfg.Voice)
	return nil
}

func (c *Client) sendSetup() error {
	setup := &setupPayload{
		Model: c.cfg.Model,
		GenerationConfig: &generationConfig{
			ResponseModalities: c.cfg.ResponseModalities,
			SpeechConfig: &speechConfig{
				VoiceConfig: &voiceConfig{
					PrebuiltVoiceConfig: &prebuiltVoiceConfig{VoiceName: c.cfg.Voice},
				},
			},
		},
		Tools: c.cfg.Tools,
	}
	if c.cfg.SystemInstruction != "" {
		setup.SystemInstruction = &content{Parts: []part{{Text: c.cfg.SystemInstruction}}}
	}
	return c.send(&clientMessage{Setup: setup})
}

// SendAudioChunk streams one base64-encoded 16 kHz PCM capture chunk.
func (c *Client) SendAudioChunk(base64Audio string) error {
	return c.send(&clientMessage{
		RealtimeInput: &realtimeInput{
			MediaChunks: []mediaChunk{{MimeType: captureMimeType, Data: base64Audio}},
		},
	})
}

// SendText submits a complete user text turn.
func (c *Client) SendText(text string) error {
	return c.send(&clientMessage{
		ClientContent: &clientContentPayload{
			Turns:        []content{{Role: "user", Parts: []part{{Text: text}}}},
			TurnComplete: true,
		},
	})
}

// SendToolResponse answers a tool-call batch. results must align with
// tc.FunctionCalls by index; each result lands under the "result" key of
// its function response.
func (c *Client) SendToolResponse(tc *ToolCall, results []any) error {
	if len(results) != len(tc.FunctionCalls) {
		return fmt.Errorf("got %d results for %d function calls", len(results), len(tc.FunctionCalls))
	}
	frs := make([]functionResponse, len(results))
	for i, fc := range tc.FunctionCalls {
		frs[i] = functionResponse{
			Name:     fc.Name,
			ID:       fc.ID,
			Response: map[string]any{"result": results[i]},
		}
	}
	return c.send(&clientMessage{
		ToolResponse: &toolResponsePayload{FunctionResponses: frs},
	})
}

func (c *Client) send(msg *clientMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return &SessionError{Kind: ErrorWebSocket, Err: fmt.Errorf("not connected")}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return &SessionError{Kind: ErrorWebSocket, Err: err}
	}
	return nil
}

func (c *Client) readPump(ctx context.Context) error {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.closeMu.Lock()
			closed := c.closed
			c.closeMu.Unlock()
			if closed || ctx.Err() != nil {
				c.notifyClose(nil)
				return nil
			}
			serr := &SessionError{Kind: ErrorWebSocket, Err: err}
			c.notifyClose(serr)
			return serr
		}
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("Live: dropping unparseable frame", "error", err)
		return
	}

	if msg.SetupComplete != nil {
		slog.Debug("Live: setup complete")
	}

	if sc := msg.ServerContent; sc != nil {
		if sc.Interrupted && c.cfg.OnInterrupted != nil {
			c.cfg.OnInterrupted()
		}
		if sc.ModelTurn != nil {
			for _, p := range sc.ModelTurn.Parts {
				if p.Text != "" && c.cfg.OnText != nil {
					c.cfg.OnText(p.Text)
				}
				if p.InlineData != nil && c.cfg.OnAudio != nil {
					c.cfg.OnAudio(AudioChunk{MimeType: p.InlineData.MimeType, Data: p.InlineData.Data})
				}
			}
		}
		if sc.TurnComplete && c.cfg.OnTurnComplete != nil {
			c.cfg.OnTurnComplete()
		}
	}

	if msg.ToolCall != nil && c.cfg.OnToolCall != nil {
		c.cfg.OnToolCall(msg.ToolCall)
	}
}

func (c *Client) notifyClose(err error) {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return
	}
	c.closed = true
	c.closeMu.Unlock()
	if c.cfg.OnClose != nil {
		c.cfg.OnClose(err)
	}
}

// Close shuts the session down. Safe to call more than once.
func (c *Client) Close() error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	c.closeMu.Unlock()

	if c.conn == nil {
		return nil
	}
	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	err := c.conn.Close()
	if c.cfg.OnClose != nil {
		c.cfg.OnClose(nil)
	}
	return err
}
