package player

import (
	"fmt"
	"log/slog"

	"tutorgo/pkg/model"
)

// PendingCheckpoint is the handle for one paused checkpoint. The player
// hands it out through the checkpointStart event; the holder resolves it
// with Submit or Skip, exactly once, and playback continues. There is no
// other way past a checkpoint, so a handle can never resolve a checkpoint
// it was not created for.
type PendingCheckpoint struct {
	player   *Player
	cp       *model.Checkpoint
	seqID    string
	resolved bool
	attempts int
}

// Checkpoint returns the checkpoint this handle guards.
func (h *PendingCheckpoint) Checkpoint() *model.Checkpoint { return h.cp }

// SequenceID returns the owning sequence's id, or LiveSequenceID for a
// checkpoint raised by the live tutor outside any scripted sequence.
func (h *PendingCheckpoint) SequenceID() string { return h.seqID }

// Attempts returns how many answers have been submitted so far.
func (h *PendingCheckpoint) Attempts() int {
	h.player.mu.Lock()
	defer h.player.mu.Unlock()
	return h.attempts
}

// maxAttempts bounds wrong answers per checkpoint. The last wrong answer
// resolves the checkpoint without reward and playback moves on, so a stuck
// student is never parked indefinitely.
const maxAttempts = 3

// Submit checks an answer against the accepted set, ignoring case and
// surrounding whitespace. A correct answer awards the checkpoint XP and
// resumes playback; a wrong one keeps the checkpoint open for another try
// until maxAttempts is reached.
func (h *PendingCheckpoint) Submit(answer string) (correct bool, err error) {
	h.player.mu.Lock()
	if h.resolved || h.player.pending != h {
		h.player.mu.Unlock()
		return false, fmt.Errorf("checkpoint %q already resolved", h.cp.ID)
	}
	h.attempts++
	correct = h.cp.CorrectAnswer.Matches(answer)
	if !correct {
		attempts := h.attempts
		if attempts >= maxAttempts {
			h.resolved = true
			h.player.pending = nil
			h.player.playing = true
			p := h.player
			p.mu.Unlock()

			slog.Info("Player: checkpoint attempts exhausted, moving on", "checkpoint", h.cp.ID, "attempts", attempts)
			p.emit(Event{
				Type:       EventCheckpointEnd,
				SequenceID: h.seqID,
				Checkpoint: h.cp,
				Correct:    false,
			})
			p.driver.Resume()
			return false, nil
		}
		h.player.mu.Unlock()
		slog.Debug("Player: wrong checkpoint answer", "checkpoint", h.cp.ID, "attempts", attempts)
		return false, nil
	}

	h.resolved = true
	h.player.pending = nil
	award := h.cp.XPReward
	h.player.xp += award
	h.player.playing = true
	p := h.player
	p.mu.Unlock()

	slog.Info("Player: checkpoint passed", "checkpoint", h.cp.ID, "xp_awarded", award)
	p.emit(Event{
		Type:       EventCheckpointEnd,
		SequenceID: h.seqID,
		Checkpoint: h.cp,
		Correct:    true,
		XPAwarded:  award,
	})
	p.driver.Resume()
	return true, nil
}

// Accept resolves the checkpoint as correct without consulting the accepted
// answer set. Used when an external judge validates a free-form answer the
// literal matcher rejected. Awards the checkpoint XP and resumes playback.
func (h *PendingCheckpoint) Accept() error {
	h.player.mu.Lock()
	if h.resolved || h.player.pending != h {
		h.player.mu.Unlock()
		return fmt.Errorf("checkpoint %q already resolved", h.cp.ID)
	}
	h.resolved = true
	h.player.pending = nil
	award := h.cp.XPReward
	h.player.xp += award
	h.player.playing = true
	p := h.player
	p.mu.Unlock()

	slog.Info("Player: checkpoint accepted by judge", "checkpoint", h.cp.ID, "xp_awarded", award)
	p.emit(Event{
		Type:       EventCheckpointEnd,
		SequenceID: h.seqID,
		Checkpoint: h.cp,
		Correct:    true,
		XPAwarded:  award,
	})
	p.driver.Resume()
	return nil
}

// Skip resolves the checkpoint without an answer and without reward, and
// resumes playback.
func (h *PendingCheckpoint) Skip() error {
	h.player.mu.Lock()
	if h.resolved || h.player.pending != h {
		h.player.mu.Unlock()
		return fmt.Errorf("checkpoint %q already resolved", h.cp.ID)
	}
	h.resolved = true
	h.player.pending = nil
	h.player.playing = true
	p := h.player
	p.mu.Unlock()

	slog.Info("Player: checkpoint skipped", "checkpoint", h.cp.ID)
	p.emit(Event{
		Type:       EventCheckpointEnd,
		SequenceID: h.seqID,
		Checkpoint: h.cp,
		Correct:    false,
	})
	p.driver.Resume()
	return nil
}

// Hint returns the hint for the given attempt (0-based), or "" when the
// checkpoint has no more hints.
func (h *PendingCheckpoint) Hint(attempt int) string {
	if attempt < 0 || attempt >= len(h.cp.Hints) {
		return ""
	}
	return h.cp.Hints[attempt]
}
