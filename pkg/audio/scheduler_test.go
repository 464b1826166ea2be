package audio

import (
	"encoding/base64"
	"testing"
	"time"

	"tutorgo/pkg/pcm"
)

// Tests drive the pull streamer directly; no audio device is required.

func encode(samples []float32) string {
	return base64.StdEncoding.EncodeToString(pcm.FloatTo16BitLE(samples))
}

func pull(s *Scheduler, n int) [][2]float64 {
	buf := make([][2]float64, n)
	(*pullStreamer)(s).Stream(buf)
	return buf
}

func TestChunksPlayInArrivalOrder(t *testing.T) {
	s := NewScheduler(pcm.PlaybackRate)
	if err := s.EnqueueChunk(encode([]float32{0.25, 0.25})); err != nil {
		t.Fatal(err)
	}
	if err := s.EnqueueChunk(encode([]float32{-0.5, -0.5})); err != nil {
		t.Fatal(err)
	}

	out := pull(s, 4)
	if out[0][0] < 0.24 || out[0][0] > 0.26 {
		t.Fatalf("sample 0 = %g, want ~0.25", out[0][0])
	}
	if out[2][0] > -0.49 || out[2][0] < -0.51 {
		t.Fatalf("sample 2 = %g, want ~-0.5 (second chunk follows first)", out[2][0])
	}
	if out[0][0] != out[0][1] {
		t.Fatal("mono not mirrored to both channels")
	}
}

func TestSilenceWhenQueueEmpty(t *testing.T) {
	s := NewScheduler(pcm.PlaybackRate)
	out := pull(s, 8)
	for i, v := range out {
		if v[0] != 0 || v[1] != 0 {
			t.Fatalf("sample %d = %v, want silence", i, v)
		}
	}
	// The stream stays alive across gaps.
	if n, ok := (*pullStreamer)(s).Stream(make([][2]float64, 4)); n != 4 || !ok {
		t.Fatalf("Stream = %d, %v", n, ok)
	}
}

func TestFlushDropsEverythingQueued(t *testing.T) {
	s := NewScheduler(pcm.PlaybackRate)
	if err := s.EnqueueChunk(encode(make([]float32, 2400))); err != nil {
		t.Fatal(err)
	}
	if s.Buffered() != 100*time.Millisecond {
		t.Fatalf("buffered = %v, want 100ms", s.Buffered())
	}

	s.Flush()
	if s.Buffered() != 0 {
		t.Fatalf("buffered = %v after flush", s.Buffered())
	}
	out := pull(s, 4)
	if out[0][0] != 0 {
		t.Fatal("flushed audio still audible")
	}
}

func TestFlushMidChunk(t *testing.T) {
	s := NewScheduler(pcm.PlaybackRate)
	if err := s.EnqueueChunk(encode([]float32{0.5, 0.5, 0.5, 0.5})); err != nil {
		t.Fatal(err)
	}
	pull(s, 2) // consume half
	s.Flush()
	out := pull(s, 2)
	if out[0][0] != 0 {
		t.Fatal("audio survived a mid-chunk flush")
	}
}

func TestPauseHoldsQueue(t *testing.T) {
	s := NewScheduler(pcm.PlaybackRate)
	if err := s.EnqueueChunk(encode([]float32{0.5, 0.5})); err != nil {
		t.Fatal(err)
	}
	s.Pause()
	out := pull(s, 2)
	if out[0][0] != 0 {
		t.Fatal("audio audible while paused")
	}
	if s.Buffered() == 0 {
		t.Fatal("pause consumed the queue")
	}

	s.Resume()
	out = pull(s, 2)
	if out[0][0] < 0.49 {
		t.Fatalf("sample = %g after resume, want ~0.5", out[0][0])
	}
}

func TestEnqueueRejectsBadPayload(t *testing.T) {
	s := NewScheduler(pcm.PlaybackRate)
	if err := s.EnqueueChunk("!!!not-base64!!!"); err == nil {
		t.Fatal("bad payload accepted")
	}
	if err := s.EnqueueChunk(""); err != nil {
		t.Fatalf("empty payload rejected: %v", err)
	}
}
