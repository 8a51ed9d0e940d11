package store

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// UpsertSession records the MeetingSession created by the worker's first
// "started" callback. It only ever inserts: session_uid is
// immutable and a MeetingSession is created exactly once per Meeting.
// A repeat callback for a session_uid that already has a session row is
// treated as ErrAlreadySet so the caller can respond idempotently instead of
// erroring. Status is never touched here — advancing status is the Callback
// ingress's job via AdvanceStatus, never a side effect of this insert.
func (s *Store) UpsertSession(ctx context.Context, sessionUID, meetingID string, startTime time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meeting_sessions (session_uid, meeting_id, session_start_time)
		VALUES ($1, $2, $3)
	`, sessionUID, meetingID, startTime)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAlreadySet
		}
		return fmt.Errorf("%w: insert meeting session: %v", ErrUnavailable, err)
	}
	return nil
}

// SessionByUID resolves the meeting_id owning a session_uid, used by the
// Callback Ingress's bearer-token auth middleware.
func (s *Store) SessionByUID(ctx context.Context, sessionUID string) (string, error) {
	var meetingID string
	err := s.db.QueryRowContext(ctx,
		`SELECT meeting_id FROM meetings WHERE session_uid = $1`, sessionUID,
	).Scan(&meetingID)
	if errors.Is(err, stdsql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: resolve session uid: %v", ErrUnavailable, err)
	}
	return meetingID, nil
}
