package player

import (
	"sync"
	"testing"

	"tutorgo/pkg/model"
	"tutorgo/pkg/renderer"
)

// fakeDriver records calls and lets tests trigger renderer callbacks by
// calling the player handlers directly.
type fakeDriver struct {
	mu      sync.Mutex
	playing []string
	paused  int
	resumed int
	stopped int
	seeks   []float64
	current float64
	failOn  string
}

func (d *fakeDriver) PlaySequence(seq *model.Sequence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if seq.ID == d.failOn {
		return errTest
	}
	d.playing = append(d.playing, seq.ID)
	return nil
}

func (d *fakeDriver) Pause()  { d.mu.Lock(); d.paused++; d.mu.Unlock() }
func (d *fakeDriver) Resume() { d.mu.Lock(); d.resumed++; d.mu.Unlock() }
func (d *fakeDriver) Stop()   { d.mu.Lock(); d.stopped++; d.mu.Unlock() }

func (d *fakeDriver) Seek(t float64) {
	d.mu.Lock()
	d.seeks = append(d.seeks, t)
	d.current = t
	d.mu.Unlock()
}

func (d *fakeDriver) State() renderer.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return renderer.State{CurrentTime: d.current}
}

func (d *fakeDriver) played() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.playing))
	copy(out, d.playing)
	return out
}

var errTest = &driverError{}

type driverError struct{}

func (*driverError) Error() string { return "driver refused" }

func seq(id string) *model.Sequence {
	return &model.Sequence{ID: id, Title: id, Duration: 30}
}

func seqWithCheckpoint(id, answer string, xp int) *model.Sequence {
	s := seq(id)
	s.Checkpoint = &model.Checkpoint{
		ID:            id + "-cp",
		Type:          "question",
		Prompt:        "?",
		CorrectAnswer: model.AnswerSet{answer},
		XPReward:      xp,
		Hints:         []string{"first hint", "second hint"},
	}
	return s
}

// recorder collects events for assertion.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func TestPlayAdvancesThroughQueue(t *testing.T) {
	d := &fakeDriver{}
	p := New(d)
	rec := &recorder{}
	p.Subscribe(rec.listen)

	p.Enqueue(seq("a"))
	p.Enqueue(seq("b"))
	if err := p.Play(); err != nil {
		t.Fatal(err)
	}

	// Sequence a finishes; b must start automatically.
	p.HandleSequenceComplete()
	if got := d.played(); len(got) != 2 || got[1] != "b" {
		t.Fatalf("played = %v, want [a b]", got)
	}
	if ends := rec.ofType(EventSequenceEnd); len(ends) != 1 || ends[0].SequenceID != "a" {
		t.Fatalf("sequenceEnd events = %v", ends)
	}
	if starts := rec.ofType(EventSequenceStart); len(starts) != 2 {
		t.Fatalf("sequenceStart fired %d times, want 2", len(starts))
	}

	// Queue exhausted after b.
	p.HandleSequenceComplete()
	if err := p.Play(); err == nil {
		t.Fatal("Play succeeded on exhausted queue")
	}
}

func TestCompletionXPAwardedOncePerSequence(t *testing.T) {
	d := &fakeDriver{}
	p := New(d)
	p.Enqueue(seq("a"))
	if err := p.Play(); err != nil {
		t.Fatal(err)
	}
	p.HandleSequenceComplete()
	if got := p.XP(); got != 10 {
		t.Fatalf("xp = %d after completion, want 10", got)
	}

	// Replaying the same sequence earns nothing extra.
	if err := p.SkipToPrevious(); err != nil {
		t.Fatal(err)
	}
	p.HandleSequenceComplete()
	if got := p.XP(); got != 10 {
		t.Fatalf("xp = %d after replay, want 10", got)
	}
}

func TestCheckpointHandleSubmit(t *testing.T) {
	d := &fakeDriver{}
	p := New(d)
	rec := &recorder{}
	p.Subscribe(rec.listen)
	p.Enqueue(seqWithCheckpoint("a", "Paris", 25))
	if err := p.Play(); err != nil {
		t.Fatal(err)
	}

	p.HandleCheckpoint(p.Current().Checkpoint)
	h := p.PendingCheckpoint()
	if h == nil {
		t.Fatal("no pending checkpoint after HandleCheckpoint")
	}

	// Resume cannot bypass the checkpoint.
	if err := p.Resume(); err == nil {
		t.Fatal("Resume bypassed an unresolved checkpoint")
	}

	// Wrong answer keeps it open and counts the attempt.
	correct, err := h.Submit("London")
	if err != nil || correct {
		t.Fatalf("Submit(London) = %v, %v", correct, err)
	}
	if h.Attempts() != 1 {
		t.Fatalf("attempts = %d, want 1", h.Attempts())
	}
	if hint := h.Hint(h.Attempts() - 1); hint != "first hint" {
		t.Fatalf("hint = %q", hint)
	}

	// Case and whitespace are forgiven.
	correct, err = h.Submit("  paris ")
	if err != nil || !correct {
		t.Fatalf("Submit(paris) = %v, %v", correct, err)
	}
	if got := p.XP(); got != 25 {
		t.Fatalf("xp = %d after checkpoint, want 25", got)
	}
	if d.resumed != 1 {
		t.Fatalf("driver resumed %d times, want 1", d.resumed)
	}
	ends := rec.ofType(EventCheckpointEnd)
	if len(ends) != 1 || !ends[0].Correct || ends[0].XPAwarded != 25 {
		t.Fatalf("checkpointEnd events = %+v", ends)
	}

	// The handle is spent.
	if _, err := h.Submit("paris"); err == nil {
		t.Fatal("spent handle accepted another answer")
	}
	if p.PendingCheckpoint() != nil {
		t.Fatal("pending checkpoint lingers after resolution")
	}
}

func TestCheckpointAttemptCapMovesOn(t *testing.T) {
	d := &fakeDriver{}
	p := New(d)
	rec := &recorder{}
	p.Subscribe(rec.listen)
	p.Enqueue(seqWithCheckpoint("a", "Paris", 25))
	if err := p.Play(); err != nil {
		t.Fatal(err)
	}
	p.HandleCheckpoint(p.Current().Checkpoint)
	h := p.PendingCheckpoint()

	for i := 0; i < maxAttempts-1; i++ {
		if correct, err := h.Submit("London"); err != nil || correct {
			t.Fatalf("attempt %d: Submit = %v, %v", i+1, correct, err)
		}
		if p.PendingCheckpoint() == nil {
			t.Fatalf("checkpoint closed after %d attempts", i+1)
		}
	}

	// The final wrong answer exhausts the cap and playback moves on.
	if correct, err := h.Submit("Berlin"); err != nil || correct {
		t.Fatalf("final Submit = %v, %v", correct, err)
	}
	if p.PendingCheckpoint() != nil {
		t.Fatal("checkpoint still pending after attempt cap")
	}
	if got := p.XP(); got != 0 {
		t.Fatalf("xp = %d for a failed checkpoint, want 0", got)
	}
	if d.resumed != 1 {
		t.Fatalf("driver resumed %d times, want 1", d.resumed)
	}
	ends := rec.ofType(EventCheckpointEnd)
	if len(ends) != 1 || ends[0].Correct {
		t.Fatalf("checkpointEnd events = %+v", ends)
	}
	if _, err := h.Submit("Paris"); err == nil {
		t.Fatal("spent handle accepted another answer")
	}
}

func TestLiveCheckpointWithEmptyQueue(t *testing.T) {
	// The live tutor can raise a checkpoint with no scripted lesson loaded.
	d := &fakeDriver{}
	p := New(d)
	rec := &recorder{}
	p.Subscribe(rec.listen)

	p.HandleCheckpoint(&model.Checkpoint{
		ID:            "live-cp",
		Type:          "question",
		Prompt:        "What did we just cover?",
		CorrectAnswer: model.AnswerSet{"fractions"},
		XPReward:      15,
	})

	h := p.PendingCheckpoint()
	if h == nil {
		t.Fatal("live checkpoint discarded with empty queue")
	}
	if h.SequenceID() != LiveSequenceID {
		t.Fatalf("sequence id = %q, want %q", h.SequenceID(), LiveSequenceID)
	}
	starts := rec.ofType(EventCheckpointStart)
	if len(starts) != 1 || starts[0].SequenceID != LiveSequenceID {
		t.Fatalf("checkpointStart events = %+v", starts)
	}

	correct, err := h.Submit("Fractions")
	if err != nil || !correct {
		t.Fatalf("Submit = %v, %v", correct, err)
	}
	if got := p.XP(); got != 15 {
		t.Fatalf("xp = %d, want 15", got)
	}
	ends := rec.ofType(EventCheckpointEnd)
	if len(ends) != 1 || ends[0].SequenceID != LiveSequenceID {
		t.Fatalf("checkpointEnd events = %+v", ends)
	}
	if p.PendingCheckpoint() != nil {
		t.Fatal("pending checkpoint lingers after resolution")
	}
}

func TestCheckpointSkip(t *testing.T) {
	d := &fakeDriver{}
	p := New(d)
	p.Enqueue(seqWithCheckpoint("a", "42", 25))
	if err := p.Play(); err != nil {
		t.Fatal(err)
	}
	p.HandleCheckpoint(p.Current().Checkpoint)

	h := p.PendingCheckpoint()
	if err := h.Skip(); err != nil {
		t.Fatal(err)
	}
	if got := p.XP(); got != 0 {
		t.Fatalf("xp = %d after skip, want 0", got)
	}
	if err := h.Skip(); err == nil {
		t.Fatal("spent handle skipped twice")
	}
}

func TestSeekAbandonsCheckpoint(t *testing.T) {
	d := &fakeDriver{}
	p := New(d)
	p.Enqueue(seqWithCheckpoint("a", "42", 25))
	if err := p.Play(); err != nil {
		t.Fatal(err)
	}
	p.HandleCheckpoint(p.Current().Checkpoint)
	h := p.PendingCheckpoint()

	p.Seek(5)
	if p.PendingCheckpoint() != nil {
		t.Fatal("checkpoint survived a seek")
	}
	if _, err := h.Submit("42"); err == nil {
		t.Fatal("abandoned handle still resolvable")
	}
	if got := p.XP(); got != 0 {
		t.Fatalf("xp = %d, want 0", got)
	}
}

func TestInsertPlaysNext(t *testing.T) {
	d := &fakeDriver{}
	p := New(d)
	p.Enqueue(seq("a"))
	p.Enqueue(seq("c"))
	if err := p.Play(); err != nil {
		t.Fatal(err)
	}
	p.Insert(seq("b"))
	if got := p.Queue(); got[1] != "b" {
		t.Fatalf("queue = %v, want b second", got)
	}
	p.HandleSequenceComplete()
	if got := d.played(); got[len(got)-1] != "b" {
		t.Fatalf("played = %v, want b after a", got)
	}
}

func TestSkipToNextEarnsNoXP(t *testing.T) {
	d := &fakeDriver{}
	p := New(d)
	p.Enqueue(seq("a"))
	p.Enqueue(seq("b"))
	if err := p.Play(); err != nil {
		t.Fatal(err)
	}
	if err := p.SkipToNext(); err != nil {
		t.Fatal(err)
	}
	if got := p.XP(); got != 0 {
		t.Fatalf("xp = %d after skip, want 0", got)
	}
	if cur := p.Current(); cur == nil || cur.ID != "b" {
		t.Fatalf("current = %v, want b", cur)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	d := &fakeDriver{}
	p := New(d)
	a, b := seq("a"), seq("b")
	p.Enqueue(a)
	p.Enqueue(b)
	if err := p.Play(); err != nil {
		t.Fatal(err)
	}
	p.HandleSequenceComplete() // finish a, start b
	d.Seek(12)                 // play head inside b

	data, err := p.Snapshot()
	if err != nil {
		t.Fatal(err)
	}

	byID := map[string]*model.Sequence{"a": a, "b": b}
	lookup := func(id string) (*model.Sequence, bool) { s, ok := byID[id]; return s, ok }

	d2 := &fakeDriver{}
	p2 := New(d2)
	res, err := p2.Restore(data, lookup)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Missing) != 0 || res.ReplayedFromStart {
		t.Fatalf("restore result = %+v", res)
	}
	if got := p2.XP(); got != 10 {
		t.Fatalf("restored xp = %d, want 10", got)
	}
	if cur := p2.Current(); cur == nil || cur.ID != "b" {
		t.Fatalf("restored current = %v, want b", cur)
	}
	if len(d2.seeks) != 1 || d2.seeks[0] != 12 {
		t.Fatalf("restore seeks = %v, want [12]", d2.seeks)
	}

	// Completion XP stays once-per-sequence across the restore.
	p2.SkipToPrevious()
	p2.HandleSequenceComplete()
	if got := p2.XP(); got != 10 {
		t.Fatalf("xp = %d after replaying a, want 10", got)
	}
}

func TestRestoreMissingSequenceReplaysFromStart(t *testing.T) {
	d := &fakeDriver{}
	p := New(d)
	p.Enqueue(seq("a"))
	p.Enqueue(seq("gone"))
	if err := p.Play(); err != nil {
		t.Fatal(err)
	}
	p.HandleSequenceComplete() // now inside "gone"
	d.Seek(8)

	data, err := p.Snapshot()
	if err != nil {
		t.Fatal(err)
	}

	a := seq("a")
	lookup := func(id string) (*model.Sequence, bool) {
		if id == "a" {
			return a, true
		}
		return nil, false
	}

	d2 := &fakeDriver{}
	p2 := New(d2)
	res, err := p2.Restore(data, lookup)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Missing) != 1 || res.Missing[0] != "gone" {
		t.Fatalf("missing = %v, want [gone]", res.Missing)
	}
	if !res.ReplayedFromStart {
		t.Fatal("restore did not report replay from start")
	}
	if len(d2.seeks) != 0 {
		t.Fatalf("unexpected seek %v on replay from start", d2.seeks)
	}
	if cur := p2.Current(); cur == nil || cur.ID != "a" {
		t.Fatalf("restored current = %v, want a", cur)
	}
}

func TestStopResetsPosition(t *testing.T) {
	d := &fakeDriver{}
	p := New(d)
	p.Enqueue(seq("a"))
	p.Enqueue(seq("b"))
	if err := p.Play(); err != nil {
		t.Fatal(err)
	}
	p.HandleSequenceComplete()
	p.Stop()
	if cur := p.Current(); cur == nil || cur.ID != "a" {
		t.Fatalf("current after stop = %v, want a", cur)
	}
	if d.stopped == 0 {
		t.Fatal("driver not stopped")
	}
}
