package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const chatSessionColumns = `id, session_id, user_id, message_count, completed, started_at, last_message_at`

func scanChatSession(row *sql.Row) (ChatSession, error) {
	var s ChatSession
	err := row.Scan(&s.ID, &s.SessionID, &s.UserID, &s.MessageCount, &s.Completed, &s.StartedAt, &s.LastMessageAt)
	return s, err
}

// CreateChatSession inserts a new ledger entry with a zero message count.
func (q *Queries) CreateChatSession(ctx context.Context, userID uuid.UUID, sessionID string) (ChatSession, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO chat_sessions (id, session_id, user_id, message_count, completed, started_at, last_message_at)
		VALUES ($1, $2, $3, 0, false, now(), now())
		RETURNING `+chatSessionColumns,
		uuid.New(), sessionID, userID,
	)
	return scanChatSession(row)
}

// GetChatSessionBySessionID fetches a ledger entry by its client-generated
// session identifier.
func (q *Queries) GetChatSessionBySessionID(ctx context.Context, sessionID string) (ChatSession, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+chatSessionColumns+` FROM chat_sessions WHERE session_id = $1`, sessionID)
	return scanChatSession(row)
}

// UpdateMessageCount sets the running message total for a session. GREATEST
// keeps the count monotonically non-decreasing even if updates arrive out of
// order. The update is scoped to the owning user so one user cannot write to
// another's session. Returns the number of rows updated (0 when the session
// is unknown or owned by someone else).
func (q *Queries) UpdateMessageCount(ctx context.Context, userID uuid.UUID, sessionID string, count int32) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE chat_sessions
		SET message_count = GREATEST(message_count, $3), last_message_at = now()
		WHERE session_id = $1 AND user_id = $2`,
		sessionID, userID, count,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CompleteChatSession marks a session completed. Scoped to the owning user.
// Returns the number of rows updated (0 when the session is unknown or owned
// by someone else).
func (q *Queries) CompleteChatSession(ctx context.Context, userID uuid.UUID, sessionID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE chat_sessions SET completed = true WHERE session_id = $1 AND user_id = $2`,
		sessionID, userID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListChatSessionsByUser returns the user's most recent sessions.
func (q *Queries) ListChatSessionsByUser(ctx context.Context, userID uuid.UUID, limit int32) ([]ChatSession, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+chatSessionColumns+`
		FROM chat_sessions
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []ChatSession
	for rows.Next() {
		var s ChatSession
		if err := rows.Scan(&s.ID, &s.SessionID, &s.UserID, &s.MessageCount, &s.Completed, &s.StartedAt, &s.LastMessageAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// AggregateChatUsage returns the lifetime session and message totals for a
// user. Zero totals for a user with no history.
func (q *Queries) AggregateChatUsage(ctx context.Context, userID uuid.UUID) (sessions, messages int64, err error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(message_count), 0)
		FROM chat_sessions
		WHERE user_id = $1`,
		userID,
	)
	err = row.Scan(&sessions, &messages)
	return sessions, messages, err
}

// CompleteStaleSessions marks open sessions idle since before the cutoff as
// completed. Used by the maintenance worker.
func (q *Queries) CompleteStaleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE chat_sessions
		SET completed = true
		WHERE completed = false AND last_message_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListUsageSince aggregates per-user session and message counts for sessions
// started after the given time. Used for usage-report exports.
func (q *Queries) ListUsageSince(ctx context.Context, since time.Time) ([]UserUsage, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT user_id, COUNT(*), COALESCE(SUM(message_count), 0)
		FROM chat_sessions
		WHERE started_at >= $1
		GROUP BY user_id
		ORDER BY user_id`,
		since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usage []UserUsage
	for rows.Next() {
		var u UserUsage
		if err := rows.Scan(&u.UserID, &u.SessionCount, &u.MessageCount); err != nil {
			return nil, err
		}
		usage = append(usage, u)
	}
	return usage, rows.Err()
}
