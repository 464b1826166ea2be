package player

import (
	"encoding/json"
	"log/slog"
	"time"

	"tutorgo/pkg/model"
)

// PersistentState is the serializable projection of a player session.
// Sequences are stored by id; the restoring caller resolves them back
// through a lookup.
type PersistentState struct {
	Queue       []string  `json:"queue"`
	Index       int       `json:"index"`
	CurrentTime float64   `json:"current_time"`
	XP          int       `json:"xp"`
	Completed   []string  `json:"completed"`
	SavedAt     time.Time `json:"saved_at"`
}

// Snapshot returns a JSON-encoded representation of the session: queue
// order, play position, play head, and XP ledger.
func (p *Player) Snapshot() ([]byte, error) {
	p.mu.Lock()
	ps := PersistentState{
		Queue:       p.queueIDs(),
		Index:       p.index,
		CurrentTime: p.driver.State().CurrentTime,
		XP:          p.xp,
		SavedAt:     time.Now(),
	}
	for id := range p.completed {
		ps.Completed = append(ps.Completed, id)
	}
	p.mu.Unlock()
	return json.Marshal(ps)
}

// RestoreResult reports what a restore could and could not rehydrate.
type RestoreResult struct {
	// Missing lists sequence ids present in the snapshot that the lookup
	// could not resolve. They are dropped from the restored queue.
	Missing []string
	// ReplayedFromStart is set when the saved play head could not be kept,
	// either because the current sequence itself was missing or because the
	// saved index no longer points into the queue.
	ReplayedFromStart bool
}

// Restore rehydrates a session from Snapshot output. lookup resolves a
// sequence id to its definition; unresolvable ids are dropped and reported
// rather than silently skipped. When the sequence the snapshot was paused
// in survives, the play head is re-derived by seeking to the saved time;
// otherwise the restored queue replays from the start.
func (p *Player) Restore(data []byte, lookup func(id string) (*model.Sequence, bool)) (*RestoreResult, error) {
	var ps PersistentState
	if err := json.Unmarshal(data, &ps); err != nil {
		return nil, err
	}

	res := &RestoreResult{}
	currentID := ""
	if ps.Index >= 0 && ps.Index < len(ps.Queue) {
		currentID = ps.Queue[ps.Index]
	}

	p.mu.Lock()
	p.queue = p.queue[:0]
	p.index = 0
	p.playing = false
	p.pending = nil
	p.xp = ps.XP
	p.completed = make(map[string]bool, len(ps.Completed))
	for _, id := range ps.Completed {
		p.completed[id] = true
	}
	for _, id := range ps.Queue {
		seq, ok := lookup(id)
		if !ok {
			res.Missing = append(res.Missing, id)
			continue
		}
		p.queue = append(p.queue, seq)
		if id == currentID {
			p.index = len(p.queue) - 1
		}
	}
	currentSurvived := currentID != ""
	for _, m := range res.Missing {
		if m == currentID {
			currentSurvived = false
		}
	}
	if !currentSurvived || len(p.queue) == 0 {
		p.index = 0
		res.ReplayedFromStart = true
	}
	p.mu.Unlock()

	for _, id := range res.Missing {
		slog.Warn("Player: snapshot references unknown sequence, dropping", "id", id)
	}

	p.emitQueueUpdate()
	if err := p.Play(); err != nil {
		return res, err
	}
	if !res.ReplayedFromStart && ps.CurrentTime > 0 {
		p.Seek(ps.CurrentTime)
	}
	return res, nil
}
