// Package renderer interprets a sequence's timed actions against the board
// scene graph: a frame loop processes actions as the play head passes them,
// narration is handed to the speech collaborator, and entrance/ongoing
// animations run as property tweens. The renderer also exposes the direct
// board entry points used by the live-session path.
package renderer

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tutorgo/pkg/board"
	"tutorgo/pkg/logging"
	"tutorgo/pkg/model"
)

// DriverMode identifies which driver currently owns board mutation.
// Exactly one driver may mutate the board at a time; calls from a
// non-owning driver are rejected instead of silently racing.
type DriverMode int

const (
	DriverIdle DriverMode = iota
	DriverScripted
	DriverLive
)

func (m DriverMode) String() string {
	switch m {
	case DriverScripted:
		return "scripted"
	case DriverLive:
		return "live"
	default:
		return "idle"
	}
}

// Speech is the speech-synthesis collaborator (platform API, excluded from
// the core). Speak is asynchronous; onStart/onEnd bracket the utterance.
type Speech interface {
	Speak(text string, onStart, onEnd func())
	Pause()
	Resume()
	Cancel()
}

// Config wires a renderer's surface, collaborators, and callbacks.
type Config struct {
	Width  int
	Height int
	Speech Speech

	// FrameInterval is the playback loop tick. 0 means ~30 fps.
	FrameInterval time.Duration
	// CheckpointLead is how many seconds before sequence end the checkpoint
	// fires. 0 means the default of 2.
	CheckpointLead float64

	OnCheckpoint       func(cp *model.Checkpoint)
	OnSequenceComplete func()
	OnTimeUpdate       func(currentTime, duration float64)
	OnSpeechStart      func(text string)
	OnSpeechEnd        func()
}

// State is the renderer's observable playback state.
type State struct {
	Playing     bool
	CurrentTime float64
	Duration    float64
	Speaking    bool
}

// AvatarState drives the instructor avatar: emotion selects the color,
// Speaking drives the pulse.
type AvatarState struct {
	Emotion  string
	Gesture  string
	Speaking bool
}

const (
	defaultFrameInterval  = 33 * time.Millisecond
	defaultCheckpointLead = 2.0
)

// Renderer owns one board and plays one sequence at a time against it.
type Renderer struct {
	cfg   Config
	board *board.Board

	mu        sync.Mutex
	mode      DriverMode
	seq       *model.Sequence
	processed map[string]bool
	origin    time.Time // play-head zero in wall time
	playing   bool
	speaking  bool
	current   float64
	duration  float64
	avatar    AvatarState
	loopGen   int // invalidates stale frame loops

	// now is the clock; replaced in tests.
	now func() time.Time
}

// New creates a renderer with an empty board.
func New(cfg Config) *Renderer {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = defaultFrameInterval
	}
	if cfg.CheckpointLead <= 0 {
		cfg.CheckpointLead = defaultCheckpointLead
	}
	return &Renderer{
		cfg:       cfg,
		board:     board.New(cfg.Width, cfg.Height),
		processed: make(map[string]bool),
		now:       time.Now,
	}
}

// Board exposes the scene graph for snapshots and inspection.
func (r *Renderer) Board() *board.Board { return r.board }

// State returns a copy of the playback state.
func (r *Renderer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return State{Playing: r.playing, CurrentTime: r.current, Duration: r.duration, Speaking: r.speaking}
}

// Avatar returns the current avatar state.
func (r *Renderer) Avatar() AvatarState {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.avatar
	a.Speaking = r.speaking
	return a
}

// PlaySequence begins playing seq from the top: the processed-action set and
// play head reset, and the frame loop starts. It returns immediately;
// completion is signaled through OnSequenceComplete. Board state left over
// from a prior sequence is not cleaned up unless Stop preceded this call.
func (r *Renderer) PlaySequence(seq *model.Sequence) error {
	r.mu.Lock()
	if r.mode == DriverLive {
		r.mu.Unlock()
		return fmt.Errorf("board is owned by the %s driver", DriverLive)
	}
	r.mode = DriverScripted
	r.seq = seq
	r.processed = make(map[string]bool)
	r.duration = seq.EffectiveDuration()
	r.current = 0
	r.playing = true
	r.origin = r.now()
	r.loopGen++
	gen := r.loopGen
	r.mu.Unlock()

	go r.frameLoop(gen)
	return nil
}

// Pause freezes the play head and any ongoing narration. Idempotent.
func (r *Renderer) Pause() {
	r.mu.Lock()
	if !r.playing {
		r.mu.Unlock()
		return
	}
	r.playing = false
	r.loopGen++
	r.mu.Unlock()

	if r.cfg.Speech != nil {
		r.cfg.Speech.Pause()
	}
}

// Resume continues playback from the current play head. Idempotent; a
// resume with no loaded sequence is a no-op.
func (r *Renderer) Resume() {
	r.mu.Lock()
	if r.playing || r.seq == nil {
		r.mu.Unlock()
		return
	}
	r.playing = true
	r.origin = r.now().Add(-time.Duration(r.current * float64(time.Second)))
	r.loopGen++
	gen := r.loopGen
	r.mu.Unlock()

	if r.cfg.Speech != nil {
		r.cfg.Speech.Resume()
	}
	go r.frameLoop(gen)
}

// Seek clamps t to [0, duration] and deterministically re-derives the board
// state by replaying every action scheduled at or before t against a
// freshly cleared board. Narration actions replay visually only; speech is
// not re-triggered.
func (r *Renderer) Seek(t float64) {
	r.mu.Lock()
	if r.seq == nil {
		r.mu.Unlock()
		return
	}
	if t < 0 {
		t = 0
	}
	if t > r.duration {
		t = r.duration
	}
	r.current = t
	r.origin = r.now().Add(-time.Duration(t * float64(time.Second)))

	// Mark the replay set under the lock. The frame loop reads and writes
	// r.processed while playing, so the map must never be touched outside it.
	seq := r.seq
	r.processed = make(map[string]bool)
	var due []*model.Action
	for i := range seq.Actions {
		a := &seq.Actions[i]
		if a.At.Seconds() <= t {
			r.processed[a.Key()] = true
			due = append(due, a)
		}
	}
	r.mu.Unlock()

	r.board.Clear()
	for _, a := range due {
		r.dispatchAction(a, true)
	}
}

// Stop pauses playback, resets the play head, cancels narration, and clears
// the board. The scripted driver releases the board.
func (r *Renderer) Stop() {
	r.Pause()
	if r.cfg.Speech != nil {
		r.cfg.Speech.Cancel()
	}
	r.board.Clear()

	r.mu.Lock()
	r.current = 0
	r.speaking = false
	if r.mode == DriverScripted {
		r.mode = DriverIdle
	}
	r.mu.Unlock()
}

// BeginLive claims the board for the live driver. Fails while a scripted
// sequence is mid-flight.
func (r *Renderer) BeginLive() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mode == DriverScripted && r.playing {
		return fmt.Errorf("board is owned by the %s driver", DriverScripted)
	}
	r.mode = DriverLive
	return nil
}

// EndLive releases the board back to idle. Board contents are kept;
// callers clear explicitly if they want a blank surface.
func (r *Renderer) EndLive() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mode == DriverLive {
		r.mode = DriverIdle
	}
}

// ExecuteBoardAction applies a board action immediately, outside the
// scheduled-action loop. This is the live-session entry point; it is
// rejected while the scripted driver owns the board.
func (r *Renderer) ExecuteBoardAction(action *model.BoardContent) error {
	r.mu.Lock()
	if r.mode == DriverScripted && r.playing {
		r.mu.Unlock()
		return fmt.Errorf("board is owned by the %s driver", DriverScripted)
	}
	if r.mode == DriverIdle {
		r.mode = DriverLive
	}
	r.mu.Unlock()

	r.processBoardAction(action, false)
	return nil
}

// ClearBoard wipes the board immediately (live-session entry point).
func (r *Renderer) ClearBoard() error {
	r.mu.Lock()
	if r.mode == DriverScripted && r.playing {
		r.mu.Unlock()
		return fmt.Errorf("board is owned by the %s driver", DriverScripted)
	}
	r.mu.Unlock()

	r.board.Clear()
	return nil
}

// HighlightElement pulses the element with the given id.
func (r *Renderer) HighlightElement(id string) {
	if el, ok := r.board.Get(id); ok {
		r.animateElement(el, model.Animation{Type: model.AnimationHighlight, DurationMs: 1000})
	}
}

// frameLoop drives scripted playback. It exits when the generation counter
// moves on (pause, stop, replacement sequence) or the sequence ends.
func (r *Renderer) frameLoop(gen int) {
	ticker := time.NewTicker(r.cfg.FrameInterval)
	defer ticker.Stop()

	for range ticker.C {
		if !r.step(gen) {
			return
		}
	}
}

// step advances the play head one frame. Returns false once this loop
// generation is done.
func (r *Renderer) step(gen int) bool {
	r.mu.Lock()
	if gen != r.loopGen || !r.playing || r.seq == nil {
		r.mu.Unlock()
		return false
	}

	elapsed := r.now().Sub(r.origin).Seconds()
	r.current = elapsed
	seq := r.seq
	duration := r.duration

	// Collect due actions under the lock; dispatch outside it so action
	// handlers and callbacks can re-enter the renderer.
	var due []*model.Action
	for i := range seq.Actions {
		a := &seq.Actions[i]
		if a.At.Seconds() <= elapsed && !r.processed[a.Key()] {
			r.processed[a.Key()] = true
			due = append(due, a)
		}
	}

	// Checkpoint pre-emption takes priority over natural completion.
	checkpointDue := seq.Checkpoint != nil &&
		elapsed >= duration-r.cfg.CheckpointLead &&
		!r.processed[checkpointKey]
	if checkpointDue {
		r.processed[checkpointKey] = true
		r.playing = false
		r.loopGen++
	}

	completed := !checkpointDue && elapsed >= duration
	if completed {
		r.playing = false
		r.loopGen++
	}
	r.mu.Unlock()

	if r.cfg.OnTimeUpdate != nil {
		r.cfg.OnTimeUpdate(elapsed, duration)
	}
	for _, a := range due {
		logging.Trace(slog.Default(), "Renderer: action due", "type", a.Type, "at", a.At.Seconds())
		r.dispatchAction(a, false)
	}

	switch {
	case checkpointDue:
		if r.cfg.Speech != nil {
			r.cfg.Speech.Pause()
		}
		if r.cfg.OnCheckpoint != nil {
			r.cfg.OnCheckpoint(seq.Checkpoint)
		}
		return false
	case completed:
		if r.cfg.OnSequenceComplete != nil {
			r.cfg.OnSequenceComplete()
		}
		return false
	}
	return true
}

const checkpointKey = "checkpoint"
