package renderer

import (
	"sync"
	"testing"
	"time"

	"tutorgo/pkg/model"
)

// fakeClock stands in for time.Now so tests can move the play head.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeSpeech records utterances and fires onStart immediately.
type fakeSpeech struct {
	mu     sync.Mutex
	spoken []string
	paused int
}

func (s *fakeSpeech) Speak(text string, onStart, onEnd func()) {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.mu.Unlock()
	if onStart != nil {
		onStart()
	}
}

func (s *fakeSpeech) Pause() {
	s.mu.Lock()
	s.paused++
	s.mu.Unlock()
}
func (s *fakeSpeech) Resume() {}
func (s *fakeSpeech) Cancel() {}

func (s *fakeSpeech) spokenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spoken)
}

// newTestRenderer builds a renderer whose background frame loop never
// ticks; tests drive playback by advancing the clock and calling step.
func newTestRenderer(cfg Config) (*Renderer, *fakeClock) {
	cfg.Width = 1200
	cfg.Height = 800
	cfg.FrameInterval = time.Hour
	r := New(cfg)
	clk := newFakeClock()
	r.now = clk.Now
	return r, clk
}

func (r *Renderer) gen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loopGen
}

func textElement(id, text string) model.BoardElement {
	return model.BoardElement{
		ID:       id,
		Type:     model.ElementText,
		Position: model.Position{X: 10, Y: 10},
		Text:     &model.TextContent{Text: text},
	}
}

func testSequence() *model.Sequence {
	return &model.Sequence{
		ID:       "seq-1",
		Title:    "Fractions",
		Duration: 20,
		Actions: []model.Action{
			{At: 0, Type: model.ActionInstructor, Instructor: &model.InstructorContent{
				Speak: "Let us look at fractions.", Emotion: "friendly",
			}},
			{At: 2, Type: model.ActionBoard, Board: &model.BoardContent{
				Zone:     model.ZoneLeft,
				Elements: []model.BoardElement{textElement("intro", "A fraction is a part of a whole")},
			}},
			{At: 6, Type: model.ActionBoard, Board: &model.BoardContent{
				Zone:     model.ZoneRight,
				Elements: []model.BoardElement{textElement("detail", "One half is written 1/2")},
			}},
		},
		Checkpoint: &model.Checkpoint{
			ID:            "cp-1",
			Type:          "question",
			Prompt:        "What is half of 4?",
			CorrectAnswer: model.AnswerSet{"2"},
		},
	}
}

func TestActionsProcessOnce(t *testing.T) {
	speech := &fakeSpeech{}
	r, clk := newTestRenderer(Config{Speech: speech})
	if err := r.PlaySequence(testSequence()); err != nil {
		t.Fatal(err)
	}

	clk.Advance(2500 * time.Millisecond)
	r.step(r.gen())

	if got := speech.spokenCount(); got != 1 {
		t.Fatalf("spoken %d times, want 1", got)
	}
	if _, ok := r.Board().Get("intro"); !ok {
		t.Fatal("intro element not on board after its action time")
	}
	if _, ok := r.Board().Get("detail"); ok {
		t.Fatal("detail element on board before its action time")
	}

	// Stepping again must not re-fire processed actions.
	clk.Advance(time.Second)
	r.step(r.gen())
	if got := speech.spokenCount(); got != 1 {
		t.Fatalf("narration re-fired: spoken %d times", got)
	}
}

func TestCheckpointFiresOnceAndPauses(t *testing.T) {
	var mu sync.Mutex
	fired := 0
	speech := &fakeSpeech{}
	r, clk := newTestRenderer(Config{
		Speech: speech,
		OnCheckpoint: func(cp *model.Checkpoint) {
			mu.Lock()
			fired++
			mu.Unlock()
			if cp.ID != "cp-1" {
				t.Errorf("checkpoint id = %q, want cp-1", cp.ID)
			}
		},
	})
	if err := r.PlaySequence(testSequence()); err != nil {
		t.Fatal(err)
	}

	// Duration 20, lead 2: the checkpoint is due at 18.
	clk.Advance(18 * time.Second)
	gen := r.gen()
	if cont := r.step(gen); cont {
		t.Fatal("step reported continue after checkpoint")
	}
	if st := r.State(); st.Playing {
		t.Fatal("still playing after checkpoint fired")
	}
	if speech.paused == 0 {
		t.Fatal("narration not paused at checkpoint")
	}

	// A stale loop generation must not re-fire it.
	clk.Advance(time.Second)
	r.step(gen)
	mu.Lock()
	defer mu.Unlock()
	if fired != 1 {
		t.Fatalf("checkpoint fired %d times, want 1", fired)
	}
}

func TestCompletionAfterCheckpoint(t *testing.T) {
	var completed int
	var mu sync.Mutex
	r, clk := newTestRenderer(Config{
		OnCheckpoint: func(*model.Checkpoint) {},
		OnSequenceComplete: func() {
			mu.Lock()
			completed++
			mu.Unlock()
		},
	})
	if err := r.PlaySequence(testSequence()); err != nil {
		t.Fatal(err)
	}

	clk.Advance(18 * time.Second)
	r.step(r.gen())

	r.Resume()
	clk.Advance(3 * time.Second)
	if cont := r.step(r.gen()); cont {
		t.Fatal("step reported continue after completion")
	}
	mu.Lock()
	defer mu.Unlock()
	if completed != 1 {
		t.Fatalf("completion fired %d times, want 1", completed)
	}
}

func TestSeekReplaysActionsUpToTarget(t *testing.T) {
	speech := &fakeSpeech{}
	r, clk := newTestRenderer(Config{Speech: speech})
	if err := r.PlaySequence(testSequence()); err != nil {
		t.Fatal(err)
	}
	clk.Advance(10 * time.Second)
	r.step(r.gen())
	before := speech.spokenCount()

	// Seeking back to 3 keeps only the first board action.
	r.Seek(3)
	if _, ok := r.Board().Get("intro"); !ok {
		t.Fatal("intro missing after seek to 3")
	}
	if _, ok := r.Board().Get("detail"); ok {
		t.Fatal("detail present after seek to 3")
	}
	if st := r.State(); st.CurrentTime != 3 {
		t.Fatalf("play head = %g after seek, want 3", st.CurrentTime)
	}

	// Replayed narration must stay silent.
	if got := speech.spokenCount(); got != before {
		t.Fatalf("seek re-triggered speech: %d -> %d", before, got)
	}

	// Replayed elements land fully settled, not mid-entrance.
	el, _ := r.Board().Get("intro")
	if el.Opacity != 1 || el.RevealedChars != -1 {
		t.Fatalf("seeked element not settled: opacity=%g revealed=%d", el.Opacity, el.RevealedChars)
	}
}

func TestSeekIsIdempotentAndClamps(t *testing.T) {
	r, clk := newTestRenderer(Config{})
	if err := r.PlaySequence(testSequence()); err != nil {
		t.Fatal(err)
	}
	clk.Advance(time.Second)

	r.Seek(7)
	first := r.Board().Len()
	r.Seek(7)
	if got := r.Board().Len(); got != first {
		t.Fatalf("repeated seek changed board: %d -> %d", first, got)
	}

	r.Seek(-5)
	if st := r.State(); st.CurrentTime != 0 {
		t.Fatalf("negative seek clamped to %g, want 0", st.CurrentTime)
	}
	if got := r.Board().Len(); got != 1 {
		t.Fatalf("board has %d elements at t=0, want 1 (the t=0 action)", got)
	}

	r.Seek(1e9)
	if st := r.State(); st.CurrentTime != 20 {
		t.Fatalf("overshoot seek clamped to %g, want 20", st.CurrentTime)
	}
}

func TestSeekDuringPlaybackIsSafe(t *testing.T) {
	// Seek may arrive from the HTTP handler while the frame loop is ticking;
	// both touch the processed-action set, which must stay lock-protected.
	r := New(Config{Width: 1200, Height: 800, FrameInterval: time.Millisecond})
	if err := r.PlaySequence(testSequence()); err != nil {
		t.Fatalf("play: %v", err)
	}
	defer r.Stop()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(off int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				r.Seek(float64((off + i) % 10))
			}
		}(g)
	}
	wg.Wait()

	st := r.State()
	if st.Duration != 20 {
		t.Errorf("duration drifted to %g", st.Duration)
	}
}

func TestPauseResumeIdempotent(t *testing.T) {
	r, clk := newTestRenderer(Config{})
	if err := r.PlaySequence(testSequence()); err != nil {
		t.Fatal(err)
	}
	clk.Advance(4 * time.Second)
	r.step(r.gen())

	r.Pause()
	r.Pause()
	head := r.State().CurrentTime

	// Time passing while paused must not move the play head.
	clk.Advance(10 * time.Second)
	if st := r.State(); st.CurrentTime != head {
		t.Fatalf("play head moved while paused: %g -> %g", head, st.CurrentTime)
	}

	r.Resume()
	r.Resume()
	clk.Advance(time.Second)
	r.step(r.gen())
	if st := r.State(); st.CurrentTime != head+1 {
		t.Fatalf("play head = %g after resume+1s, want %g", st.CurrentTime, head+1)
	}
}

func TestStopResetsEverything(t *testing.T) {
	r, clk := newTestRenderer(Config{})
	if err := r.PlaySequence(testSequence()); err != nil {
		t.Fatal(err)
	}
	clk.Advance(10 * time.Second)
	r.step(r.gen())

	r.Stop()
	st := r.State()
	if st.Playing || st.CurrentTime != 0 {
		t.Fatalf("state after stop = %+v", st)
	}
	if r.Board().Len() != 0 {
		t.Fatal("board not cleared by stop")
	}
}

func TestDriverOwnership(t *testing.T) {
	r, _ := newTestRenderer(Config{})
	if err := r.PlaySequence(testSequence()); err != nil {
		t.Fatal(err)
	}

	// The scripted driver holds the board mid-sequence.
	if err := r.ExecuteBoardAction(&model.BoardContent{}); err == nil {
		t.Fatal("live board action accepted during scripted playback")
	}
	if err := r.ClearBoard(); err == nil {
		t.Fatal("live clear accepted during scripted playback")
	}
	if err := r.BeginLive(); err == nil {
		t.Fatal("live claim accepted during scripted playback")
	}

	r.Stop()

	if err := r.BeginLive(); err != nil {
		t.Fatal(err)
	}
	if err := r.PlaySequence(testSequence()); err == nil {
		t.Fatal("scripted playback accepted while live driver owns the board")
	}
	act := &model.BoardContent{
		Zone:     model.ZoneCenter,
		Elements: []model.BoardElement{textElement("live-1", "hello")},
	}
	if err := r.ExecuteBoardAction(act); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Board().Get("live-1"); !ok {
		t.Fatal("live element not on board")
	}
	r.EndLive()

	if err := r.PlaySequence(testSequence()); err != nil {
		t.Fatalf("scripted playback rejected after live release: %v", err)
	}
}

func TestAvatarStateFollowsInstructorActions(t *testing.T) {
	r, clk := newTestRenderer(Config{})
	seq := testSequence()
	seq.Actions = append(seq.Actions, model.Action{
		At: 8, Type: model.ActionInstructor,
		Instructor: &model.InstructorContent{Emotion: "excited", Gesture: "wave"},
	})
	if err := r.PlaySequence(seq); err != nil {
		t.Fatal(err)
	}

	clk.Advance(time.Second)
	r.step(r.gen())
	if a := r.Avatar(); a.Emotion != "friendly" {
		t.Fatalf("emotion = %q, want friendly", a.Emotion)
	}

	clk.Advance(8 * time.Second)
	r.step(r.gen())
	a := r.Avatar()
	if a.Emotion != "excited" || a.Gesture != "wave" {
		t.Fatalf("avatar = %+v after second instructor action", a)
	}
}

func TestUnknownActionTypeSkipped(t *testing.T) {
	r, clk := newTestRenderer(Config{})
	seq := testSequence()
	seq.Actions = append(seq.Actions, model.Action{At: 1, Type: "hologram"})
	if err := r.PlaySequence(seq); err != nil {
		t.Fatal(err)
	}
	clk.Advance(3 * time.Second)
	if cont := r.step(r.gen()); !cont {
		t.Fatal("playback halted by unknown action type")
	}
	if _, ok := r.Board().Get("intro"); !ok {
		t.Fatal("later actions not processed after unknown type")
	}
}

func TestSequenceWithoutCheckpointCompletesNaturally(t *testing.T) {
	var completed int
	r, clk := newTestRenderer(Config{
		OnSequenceComplete: func() { completed++ },
		OnCheckpoint:       func(*model.Checkpoint) { t.Error("checkpoint fired with none defined") },
	})
	seq := testSequence()
	seq.Checkpoint = nil
	if err := r.PlaySequence(seq); err != nil {
		t.Fatal(err)
	}
	clk.Advance(21 * time.Second)
	r.step(r.gen())
	if completed != 1 {
		t.Fatalf("completed %d times, want 1", completed)
	}
}
