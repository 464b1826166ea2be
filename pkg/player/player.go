// Package player coordinates lesson playback: it owns the sequence queue,
// drives the renderer one sequence at a time, routes checkpoint pauses to
// the caller as resolvable handles, and accounts XP.
package player

import (
	"fmt"
	"log/slog"
	"sync"

	"tutorgo/pkg/model"
	"tutorgo/pkg/renderer"
)

// EventType enumerates the notifications a player emits.
type EventType string

const (
	EventPlay            EventType = "play"
	EventPause           EventType = "pause"
	EventStop            EventType = "stop"
	EventSeek            EventType = "seek"
	EventSequenceStart   EventType = "sequenceStart"
	EventSequenceEnd     EventType = "sequenceEnd"
	EventCheckpointStart EventType = "checkpointStart"
	EventCheckpointEnd   EventType = "checkpointEnd"
	EventQueueUpdate     EventType = "queueUpdate"
)

// Event carries one player notification. Fields beyond Type are set where
// they apply: SequenceID for sequence-scoped events, Correct/XPAwarded on
// checkpointEnd, Queue on queueUpdate.
type Event struct {
	Type       EventType
	SequenceID string
	Time       float64
	Checkpoint *model.Checkpoint
	Correct    bool
	XPAwarded  int
	Queue      []string
}

// Listener receives player events. Listeners are invoked synchronously,
// outside the player lock, in registration order.
type Listener func(Event)

// SceneDriver is the renderer surface the player drives.
type SceneDriver interface {
	PlaySequence(seq *model.Sequence) error
	Pause()
	Resume()
	Seek(t float64)
	Stop()
	State() renderer.State
}

// XP awarded for finishing a sequence, on top of checkpoint rewards.
const sequenceCompletionXP = 10

// LiveSequenceID attributes a checkpoint raised during a live voice
// conversation, where no scripted sequence owns the play head.
const LiveSequenceID = "live"

// Player is the lesson playback state machine. All exported methods are
// safe for concurrent use.
type Player struct {
	mu        sync.Mutex
	driver    SceneDriver
	queue     []*model.Sequence
	index     int // position of the current sequence in queue; len(queue) when exhausted
	playing   bool
	pending   *PendingCheckpoint
	xp        int
	completed map[string]bool
	listeners []Listener
}

// New creates a player over the given driver. Wire the driver's
// OnCheckpoint and OnSequenceComplete callbacks to HandleCheckpoint and
// HandleSequenceComplete.
func New(driver SceneDriver) *Player {
	return &Player{
		driver:    driver,
		completed: make(map[string]bool),
	}
}

// Subscribe registers a listener for all subsequent events.
func (p *Player) Subscribe(fn Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

func (p *Player) emit(ev Event) {
	p.mu.Lock()
	ls := make([]Listener, len(p.listeners))
	copy(ls, p.listeners)
	p.mu.Unlock()
	for _, fn := range ls {
		fn(ev)
	}
}

func (p *Player) queueIDs() []string {
	ids := make([]string, len(p.queue))
	for i, s := range p.queue {
		ids[i] = s.ID
	}
	return ids
}

func (p *Player) emitQueueUpdate() {
	p.mu.Lock()
	ids := p.queueIDs()
	p.mu.Unlock()
	p.emit(Event{Type: EventQueueUpdate, Queue: ids})
}

// Enqueue appends a sequence to the end of the queue.
func (p *Player) Enqueue(seq *model.Sequence) {
	p.mu.Lock()
	p.queue = append(p.queue, seq)
	slog.Debug("Player: enqueued sequence", "id", seq.ID, "queue_len", len(p.queue))
	p.mu.Unlock()
	p.emitQueueUpdate()
}

// Insert places a sequence immediately after the current one, making it
// the next to play.
func (p *Player) Insert(seq *model.Sequence) {
	p.mu.Lock()
	at := p.index + 1
	if at > len(p.queue) {
		at = len(p.queue)
	}
	p.queue = append(p.queue[:at], append([]*model.Sequence{seq}, p.queue[at:]...)...)
	slog.Debug("Player: inserted sequence", "id", seq.ID, "position", at)
	p.mu.Unlock()
	p.emitQueueUpdate()
}

// Queue returns the ids of all queued sequences in order.
func (p *Player) Queue() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queueIDs()
}

// Current returns the sequence at the play position, nil when exhausted.
func (p *Player) Current() *model.Sequence {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.index >= len(p.queue) {
		return nil
	}
	return p.queue[p.index]
}

// XP returns the total experience accumulated this session.
func (p *Player) XP() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.xp
}

// Play starts (or restarts) the sequence at the play position. With an
// empty or exhausted queue it returns an error.
func (p *Player) Play() error {
	p.mu.Lock()
	if p.index >= len(p.queue) {
		p.mu.Unlock()
		return fmt.Errorf("queue exhausted (%d sequences played)", p.index)
	}
	seq := p.queue[p.index]
	p.playing = true
	p.pending = nil
	p.mu.Unlock()

	if err := p.driver.PlaySequence(seq); err != nil {
		p.mu.Lock()
		p.playing = false
		p.mu.Unlock()
		return err
	}
	slog.Info("Player: sequence started", "id", seq.ID, "title", seq.Title)
	p.emit(Event{Type: EventPlay, SequenceID: seq.ID})
	p.emit(Event{Type: EventSequenceStart, SequenceID: seq.ID})
	return nil
}

// Pause freezes playback. No-op while already paused or at a checkpoint.
func (p *Player) Pause() {
	p.mu.Lock()
	if !p.playing || p.pending != nil {
		p.mu.Unlock()
		return
	}
	p.playing = false
	seq := p.queue[p.index]
	p.mu.Unlock()

	p.driver.Pause()
	p.emit(Event{Type: EventPause, SequenceID: seq.ID, Time: p.driver.State().CurrentTime})
}

// Resume continues a paused sequence. It cannot bypass an unresolved
// checkpoint; resolve or skip the handle first.
func (p *Player) Resume() error {
	p.mu.Lock()
	if p.pending != nil {
		p.mu.Unlock()
		return fmt.Errorf("checkpoint %q awaits an answer", p.pending.Checkpoint().ID)
	}
	if p.playing || p.index >= len(p.queue) {
		p.mu.Unlock()
		return nil
	}
	p.playing = true
	seq := p.queue[p.index]
	p.mu.Unlock()

	p.driver.Resume()
	p.emit(Event{Type: EventPlay, SequenceID: seq.ID})
	return nil
}

// Stop halts playback and resets the play position to the front of the
// queue. The queue itself is kept.
func (p *Player) Stop() {
	p.driver.Stop()
	p.mu.Lock()
	p.playing = false
	p.pending = nil
	p.index = 0
	p.mu.Unlock()
	p.emit(Event{Type: EventStop})
}

// Seek moves the play head within the current sequence. Seeking away from
// an unresolved checkpoint abandons it without reward.
func (p *Player) Seek(t float64) {
	p.mu.Lock()
	if p.index >= len(p.queue) {
		p.mu.Unlock()
		return
	}
	seq := p.queue[p.index]
	if p.pending != nil {
		slog.Info("Player: abandoning checkpoint on seek", "checkpoint", p.pending.cp.ID)
		p.pending.resolved = true
		p.pending = nil
	}
	p.mu.Unlock()

	p.driver.Seek(t)
	p.emit(Event{Type: EventSeek, SequenceID: seq.ID, Time: t})
}

// SkipToNext abandons the current sequence and starts the next one.
// Skipped sequences earn no completion XP.
func (p *Player) SkipToNext() error {
	p.driver.Stop()
	p.mu.Lock()
	p.pending = nil
	if p.index < len(p.queue) {
		p.index++
	}
	p.mu.Unlock()
	p.emitQueueUpdate()
	return p.Play()
}

// SkipToPrevious restarts from the preceding sequence, or from the top of
// the current one when already at the front.
func (p *Player) SkipToPrevious() error {
	p.driver.Stop()
	p.mu.Lock()
	p.pending = nil
	if p.index > 0 {
		p.index--
	}
	p.mu.Unlock()
	p.emitQueueUpdate()
	return p.Play()
}

// HandleCheckpoint parks playback behind a resolvable handle and notifies
// listeners. It serves both the renderer OnCheckpoint callback and the live
// tutor's triggerCheckpoint tool; with nothing queued the checkpoint is
// attributed to LiveSequenceID so live-origin questions still surface.
func (p *Player) HandleCheckpoint(cp *model.Checkpoint) {
	p.mu.Lock()
	seqID := LiveSequenceID
	if p.index < len(p.queue) {
		seqID = p.queue[p.index].ID
	}
	h := &PendingCheckpoint{player: p, cp: cp, seqID: seqID}
	p.pending = h
	p.playing = false
	p.mu.Unlock()

	slog.Info("Player: checkpoint reached", "sequence", seqID, "checkpoint", cp.ID)
	p.emit(Event{Type: EventCheckpointStart, SequenceID: seqID, Checkpoint: cp})
}

// PendingCheckpoint returns the unresolved checkpoint handle, nil if
// playback is not parked at one.
func (p *Player) PendingCheckpoint() *PendingCheckpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// HandleSequenceComplete is the renderer OnSequenceComplete callback. It
// awards completion XP and advances to the next queued sequence.
func (p *Player) HandleSequenceComplete() {
	p.mu.Lock()
	if p.index >= len(p.queue) {
		p.mu.Unlock()
		return
	}
	seq := p.queue[p.index]
	var award int
	if !p.completed[seq.ID] {
		p.completed[seq.ID] = true
		award = sequenceCompletionXP
		p.xp += award
	}
	p.index++
	hasNext := p.index < len(p.queue)
	p.playing = false
	p.mu.Unlock()

	slog.Info("Player: sequence complete", "id", seq.ID, "xp_awarded", award)
	p.emit(Event{Type: EventSequenceEnd, SequenceID: seq.ID, XPAwarded: award})

	if hasNext {
		if err := p.Play(); err != nil {
			slog.Warn("Player: failed to start next sequence", "error", err)
		}
	}
}
