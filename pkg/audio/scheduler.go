// Package audio plays the model's streamed voice: 24 kHz PCM chunks are
// queued in arrival order onto a single pull streamer, so each chunk starts
// exactly where the previous one ended and an interruption can drop
// everything not yet heard.
package audio

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"

	"tutorgo/pkg/pcm"
)

// Scheduler queues model audio for gapless playback. Chunks are enqueued
// as they arrive off the wire; the speaker pulls them in order and emits
// silence while the queue is empty.
type Scheduler struct {
	mu       sync.Mutex
	queue    [][]float32
	offset   int // consumed samples of queue[0]
	buffered int // total unconsumed samples
	paused   bool

	rate        beep.SampleRate
	volume      *effects.Volume
	initialized bool
}

// NewScheduler creates a scheduler for the given sample rate, normally
// pcm.PlaybackRate.
func NewScheduler(sampleRate int) *Scheduler {
	s := &Scheduler{rate: beep.SampleRate(sampleRate)}
	s.volume = &effects.Volume{Streamer: (*pullStreamer)(s), Base: 2}
	return s
}

// Start initializes the speaker and begins pulling from the queue. Call
// once per session.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return nil
	}
	s.initialized = true
	s.mu.Unlock()

	if err := speaker.Init(s.rate, s.rate.N(time.Second/10)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	speaker.Play(s.volume)
	return nil
}

// EnqueueChunk appends one base64 PCM chunk behind everything already
// queued.
func (s *Scheduler) EnqueueChunk(base64Data string) error {
	samples, err := pcm.DecodeChunk(base64Data)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return nil
	}
	s.mu.Lock()
	s.queue = append(s.queue, samples)
	s.buffered += len(samples)
	s.mu.Unlock()
	return nil
}

// Flush drops all queued audio. Used when the model is interrupted so
// stale speech never plays over the new turn.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	dropped := s.buffered
	s.queue = nil
	s.offset = 0
	s.buffered = 0
	s.mu.Unlock()
	if dropped > 0 {
		slog.Debug("Audio: flushed buffered model audio", "samples", dropped)
	}
}

// Pause silences output without dropping the queue.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume continues from where Pause left the queue.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

// Buffered returns how much queued audio has not yet been pulled.
func (s *Scheduler) Buffered() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate.D(s.buffered)
}

// SetVolume maps linear volume 0..1 onto the player.
func (s *Scheduler) SetVolume(vol float64) {
	if vol < 0 {
		vol = 0
	} else if vol > 1 {
		vol = 1
	}
	speaker.Lock()
	s.volume.Volume = volumeToPower(vol)
	s.volume.Silent = vol <= 0.01
	speaker.Unlock()
}

// Close stops output and drops the queue.
func (s *Scheduler) Close() {
	s.Flush()
	s.mu.Lock()
	initialized := s.initialized
	s.mu.Unlock()
	if initialized {
		speaker.Clear()
	}
}

// volumeToPower maps linear 0..1 volume onto a base-2 power curve, -4..0.
func volumeToPower(vol float64) float64 {
	return -4 * (1 - vol)
}

// pullStreamer adapts the scheduler queue to beep's pull model. It never
// ends; gaps between chunks come out as silence.
type pullStreamer Scheduler

func (p *pullStreamer) Stream(samples [][2]float64) (int, bool) {
	s := (*Scheduler)(p)
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range samples {
		if s.paused || len(s.queue) == 0 {
			samples[i][0], samples[i][1] = 0, 0
			continue
		}
		head := s.queue[0]
		v := float64(head[s.offset])
		samples[i][0], samples[i][1] = v, v
		s.offset++
		s.buffered--
		if s.offset >= len(head) {
			s.queue = s.queue[1:]
			s.offset = 0
		}
	}
	return len(samples), true
}

func (p *pullStreamer) Err() error { return nil }
