package model

import "time"

// Lesson event types, written to the event log.
const (
	EventSessionStart     = "session_start"
	EventSessionEnd       = "session_end"
	EventSequenceComplete = "sequence_complete"
	EventCheckpointPassed = "checkpoint_passed"
	EventCheckpointFailed = "checkpoint_failed"
	EventInsight          = "insight"
	EventLiveStart        = "live_start"
	EventLiveEnd          = "live_end"
)

// LessonEvent is a human-readable milestone in a tutoring session.
type LessonEvent struct {
	Type      string
	Title     string
	Summary   string
	Timestamp time.Time
}
