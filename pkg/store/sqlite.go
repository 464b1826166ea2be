package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"tutorgo/pkg/db"
)

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Sessions ---

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, topic, snapshot, created_at, updated_at
		 FROM sessions WHERE id = ?`, id)

	var rec SessionRecord
	var snapshot sql.NullString
	var updatedAt sql.NullTime

	err := row.Scan(&rec.ID, &rec.UserID, &rec.Topic, &snapshot, &rec.CreatedAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}

	if snapshot.Valid {
		rec.Snapshot = []byte(snapshot.String)
	}
	if updatedAt.Valid {
		rec.UpdatedAt = updatedAt.Time
	}
	return &rec, nil
}

func (s *SQLiteStore) SaveSession(ctx context.Context, rec *SessionRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `INSERT OR REPLACE INTO sessions (id, user_id, topic, snapshot, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.Topic, string(rec.Snapshot), createdAt, time.Now())
	return err
}

func (s *SQLiteStore) ListSessions(ctx context.Context, userID string) ([]*SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, topic, snapshot, created_at, updated_at
		 FROM sessions WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var snapshot sql.NullString
		var updatedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Topic, &snapshot, &rec.CreatedAt, &updatedAt); err != nil {
			return nil, err
		}
		if snapshot.Valid {
			rec.Snapshot = []byte(snapshot.String)
		}
		if updatedAt.Valid {
			rec.UpdatedAt = updatedAt.Time
		}
		results = append(results, &rec)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	return err
}

// --- Progress ---

func (s *SQLiteStore) GetProgress(ctx context.Context, userID string) (*Progress, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, xp, streak, last_active FROM progress WHERE user_id = ?`, userID)

	var p Progress
	var lastActive sql.NullString
	err := row.Scan(&p.UserID, &p.XP, &p.Streak, &lastActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if lastActive.Valid {
		p.LastActive = lastActive.String
	}
	return &p, nil
}

// AwardXP adds amount to the student's XP and maintains the daily streak:
// a first award today after activity yesterday extends the streak, a gap
// resets it to 1, and repeat awards on the same day leave it unchanged.
func (s *SQLiteStore) AwardXP(ctx context.Context, userID string, amount int, now time.Time) (*Progress, error) {
	p, err := s.GetProgress(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = &Progress{UserID: userID}
	}

	today := now.Format("2006-01-02")
	yesterday := now.AddDate(0, 0, -1).Format("2006-01-02")

	switch p.LastActive {
	case today:
		// Streak already counted for today.
	case yesterday:
		p.Streak++
	default:
		p.Streak = 1
	}

	p.XP += amount
	p.LastActive = today

	slog.Debug("Store: Awarding XP", "user", userID, "amount", amount, "streak", p.Streak)

	query := `INSERT INTO progress (user_id, xp, streak, last_active, updated_at)
			  VALUES (?, ?, ?, ?, ?)
			  ON CONFLICT(user_id) DO UPDATE SET
			  xp=excluded.xp,
			  streak=excluded.streak,
			  last_active=excluded.last_active,
			  updated_at=excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, p.UserID, p.XP, p.Streak, p.LastActive, now); err != nil {
		slog.Error("Store: AwardXP failed", "user", userID, "error", err)
		return nil, err
	}
	return p, nil
}

// --- History ---

func (s *SQLiteStore) AppendHistory(ctx context.Context, sessionID, role, content string) error {
	query := `INSERT INTO lesson_history (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, sessionID, role, content, time.Now())
	return err
}

func (s *SQLiteStore) GetHistory(ctx context.Context, sessionID string) ([]*HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, is_summary, created_at
		 FROM lesson_history WHERE session_id = ? ORDER BY is_summary DESC, id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Role, &e.Content, &e.IsSummary, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) CountHistory(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM lesson_history WHERE session_id = ?", sessionID).Scan(&n)
	return n, err
}

// CompactHistory replaces everything older than the newest keep entries with
// a single summary row, preserving chronological order on read.
func (s *SQLiteStore) CompactHistory(ctx context.Context, sessionID, summary string, keep int) error {
	if keep < 1 {
		keep = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Oldest id among the turns we keep. The window ignores any previous
	// summary row, which gets folded into the new one.
	var cutoff sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT min(id) FROM (
			SELECT id FROM lesson_history
			WHERE session_id = ? AND is_summary = 0 ORDER BY id DESC LIMIT ?
		 )`, sessionID, keep).Scan(&cutoff)
	if err != nil {
		return fmt.Errorf("compact history: %w", err)
	}
	if !cutoff.Valid {
		return tx.Rollback() // no history at all
	}

	res, err := tx.ExecContext(ctx,
		"DELETE FROM lesson_history WHERE session_id = ? AND is_summary = 0 AND id < ?",
		sessionID, cutoff.Int64)
	if err != nil {
		return fmt.Errorf("compact history: %w", err)
	}
	dropped, _ := res.RowsAffected()
	if dropped == 0 {
		// Nothing older than the kept window, leave the table untouched.
		return tx.Rollback()
	}

	// At most one summary row exists per session; reads sort it first.
	_, err = tx.ExecContext(ctx,
		"DELETE FROM lesson_history WHERE session_id = ? AND is_summary = 1", sessionID)
	if err != nil {
		return fmt.Errorf("compact history: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO lesson_history (session_id, role, content, is_summary, created_at)
		 VALUES (?, 'system', ?, 1, ?)`, sessionID, summary, time.Now())
	if err != nil {
		return fmt.Errorf("compact history: %w", err)
	}

	slog.Debug("Store: Compacted history", "session", sessionID, "dropped", dropped, "kept", keep)
	return tx.Commit()
}

// --- Insights ---

func (s *SQLiteStore) SaveInsight(ctx context.Context, rec *InsightRecord) error {
	query := `INSERT INTO insights (session_id, type, topic, observation, confidence, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query,
		rec.SessionID, rec.Type, rec.Topic, rec.Observation, rec.Confidence, time.Now())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err == nil {
		rec.ID = id
	}
	return err
}

func (s *SQLiteStore) GetInsights(ctx context.Context, sessionID string) ([]*InsightRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, type, topic, observation, confidence, created_at
		 FROM insights WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*InsightRecord
	for rows.Next() {
		var r InsightRecord
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Type, &r.Topic, &r.Observation, &r.Confidence, &r.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

// --- Cache ---

func (s *SQLiteStore) GetCache(ctx context.Context, key string) ([]byte, bool) {
	var val []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM cache WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		return nil, false
	}

	// Transparent Decompression
	if len(val) > 2 && val[0] == 0x1f && val[1] == 0x8b {
		decompressed, err := decompress(val)
		if err == nil {
			return decompressed, true
		}
	}

	return val, true
}

func (s *SQLiteStore) HasCache(ctx context.Context, key string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM cache WHERE key = ?", key).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) SetCache(ctx context.Context, key string, val []byte) error {
	// Transparent Compression
	compressed, err := compress(val)
	if err == nil {
		val = compressed
	}

	query := `INSERT OR REPLACE INTO cache (key, value, created_at) VALUES (?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query, key, val, time.Now())
	return err
}

func (s *SQLiteStore) ListCacheKeys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM cache WHERE key LIKE ?", prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// --- Compression Pooling ---

var (
	// Pool for gzip writers to reuse flate state
	gzipWriterPool = sync.Pool{
		New: func() interface{} {
			return gzip.NewWriter(io.Discard)
		},
	}
	// Pool for generic byte buffers
	bufferPool = sync.Pool{
		New: func() interface{} {
			return new(bytes.Buffer)
		},
	}
)

func compress(data []byte) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	w := gzipWriterPool.Get().(*gzip.Writer)
	defer gzipWriterPool.Put(w)

	w.Reset(buf)

	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	// Must copy because buf is returned to pool
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
