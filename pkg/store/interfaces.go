package store

import (
	"context"
	"time"
)

// SessionRecord is one persisted lesson session: the identifying metadata
// plus the player snapshot JSON.
type SessionRecord struct {
	ID        string
	UserID    string
	Topic     string
	Snapshot  []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionStore handles lesson session persistence.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	SaveSession(ctx context.Context, rec *SessionRecord) error
	ListSessions(ctx context.Context, userID string) ([]*SessionRecord, error)
	DeleteSession(ctx context.Context, id string) error
}

// Progress is a student's accumulated XP and daily streak.
type Progress struct {
	UserID     string
	XP         int
	Streak     int
	LastActive string // date only, YYYY-MM-DD
}

// ProgressStore handles XP and streak tracking.
type ProgressStore interface {
	GetProgress(ctx context.Context, userID string) (*Progress, error)
	AwardXP(ctx context.Context, userID string, amount int, now time.Time) (*Progress, error)
}

// HistoryEntry is one turn of lesson conversation history.
type HistoryEntry struct {
	ID        int64
	SessionID string
	Role      string
	Content   string
	IsSummary bool
	CreatedAt time.Time
}

// HistoryStore handles per-session conversation history with compaction.
type HistoryStore interface {
	AppendHistory(ctx context.Context, sessionID, role, content string) error
	GetHistory(ctx context.Context, sessionID string) ([]*HistoryEntry, error)
	CountHistory(ctx context.Context, sessionID string) (int, error)
	CompactHistory(ctx context.Context, sessionID, summary string, keep int) error
}

// InsightRecord is one learning observation reported during a session.
type InsightRecord struct {
	ID          int64
	SessionID   string
	Type        string
	Topic       string
	Observation string
	Confidence  float64
	CreatedAt   time.Time
}

// InsightStore handles learning insight persistence.
type InsightStore interface {
	SaveInsight(ctx context.Context, rec *InsightRecord) error
	GetInsights(ctx context.Context, sessionID string) ([]*InsightRecord, error)
}

// CacheStore handles generic key-value caching.
type CacheStore interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	HasCache(ctx context.Context, key string) (bool, error)
	SetCache(ctx context.Context, key string, val []byte) error
	ListCacheKeys(ctx context.Context, prefix string) ([]string, error)
}

// Store defines the repository interface.
// It composes all sub-interfaces for full store access.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	SessionStore
	ProgressStore
	HistoryStore
	InsightStore
	CacheStore

	// Close closes the store connection.
	Close() error
}
