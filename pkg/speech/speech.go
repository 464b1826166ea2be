// Package speech provides the narration collaborators for scripted
// playback. The Estimator paces utterances by word count instead of
// synthesizing audio, which is what a headless lesson run needs; real
// synthesis engines plug in behind the same renderer interface.
package speech

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Words-per-minute pace used to estimate utterance length, matching the
// narration share of derived sequence durations.
const wordsPerMinute = 150

// Estimator satisfies the renderer's speech interface with timing only: it
// fires onStart immediately and onEnd after the utterance's estimated
// duration, honoring pause, resume, and cancel in between.
type Estimator struct {
	mu        sync.Mutex
	gen       int
	paused    bool
	remaining time.Duration
	deadline  time.Time
	onEnd     func()

	// now and after are replaced in tests.
	now   func() time.Time
	after func(d time.Duration, fn func()) *time.Timer
}

// NewEstimator creates an idle estimator.
func NewEstimator() *Estimator {
	return &Estimator{
		now:   time.Now,
		after: time.AfterFunc,
	}
}

// EstimateDuration returns the pacing for a piece of narration.
func EstimateDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return time.Duration(words) * time.Minute / wordsPerMinute
}

// Speak starts a new utterance, cancelling any still in flight.
func (e *Estimator) Speak(text string, onStart, onEnd func()) {
	d := EstimateDuration(text)
	e.mu.Lock()
	e.gen++
	gen := e.gen
	e.paused = false
	e.remaining = d
	e.deadline = e.now().Add(d)
	e.onEnd = onEnd
	e.mu.Unlock()

	slog.Debug("Speech: utterance started", "words", len(strings.Fields(text)), "est", d)
	if onStart != nil {
		onStart()
	}
	if d == 0 {
		e.finish(gen)
		return
	}
	e.after(d, func() { e.finish(gen) })
}

func (e *Estimator) finish(gen int) {
	e.mu.Lock()
	if gen != e.gen || e.paused {
		e.mu.Unlock()
		return
	}
	onEnd := e.onEnd
	e.onEnd = nil
	e.mu.Unlock()
	if onEnd != nil {
		onEnd()
	}
}

// Pause freezes the utterance clock. Idempotent.
func (e *Estimator) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused || e.onEnd == nil {
		return
	}
	e.paused = true
	e.remaining = e.deadline.Sub(e.now())
	if e.remaining < 0 {
		e.remaining = 0
	}
	// Invalidate the running timer; Resume arms a fresh one.
	e.gen++
}

// Resume continues a paused utterance for its remaining estimated time.
func (e *Estimator) Resume() {
	e.mu.Lock()
	if !e.paused || e.onEnd == nil {
		e.mu.Unlock()
		return
	}
	e.paused = false
	e.gen++
	gen := e.gen
	d := e.remaining
	e.deadline = e.now().Add(d)
	e.mu.Unlock()

	if d == 0 {
		e.finish(gen)
		return
	}
	e.after(d, func() { e.finish(gen) })
}

// Cancel drops the current utterance without firing onEnd.
func (e *Estimator) Cancel() {
	e.mu.Lock()
	e.gen++
	e.paused = false
	e.onEnd = nil
	e.mu.Unlock()
}

// Speaking reports whether an utterance is in flight (paused counts).
func (e *Estimator) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.onEnd != nil
}
