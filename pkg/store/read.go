package store

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"

	"github.com/codeready-toolchain/botlifecycle/pkg/models"
)

const selectMeetingColumns = `
	meeting_id, user_id, platform, native_meeting_id, meeting_url, status,
	bot_container_id, start_time, end_time, last_heartbeat_at, config,
	pending_config, failure_reason, request_id, session_uid, owner_instance_id,
	created_at, updated_at
`

func scanMeeting(row interface{ Scan(...any) error }) (*models.Meeting, error) {
	var m models.Meeting
	var configData, pendingData []byte
	err := row.Scan(
		&m.MeetingID, &m.UserID, &m.Platform, &m.NativeMeetingID, &m.MeetingURL, &m.Status,
		&m.BotContainerID, &m.StartTime, &m.EndTime, &m.LastHeartbeatAt, &configData,
		&pendingData, &m.FailureReason, &m.RequestID, &m.SessionUID, &m.OwnerInstanceID,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := unmarshalConfig(configData, &m.Config); err != nil {
		return nil, err
	}
	if len(pendingData) > 0 {
		var pending models.BotConfig
		if err := unmarshalConfig(pendingData, &pending); err != nil {
			return nil, err
		}
		m.PendingConfig = &pending
	}
	return &m, nil
}

// Read fetches a single Meeting by its primary key.
func (s *Store) Read(ctx context.Context, meetingID string) (*models.Meeting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectMeetingColumns+` FROM meetings WHERE meeting_id = $1`, meetingID)
	m, err := scanMeeting(row)
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read meeting: %v", ErrUnavailable, err)
	}
	return m, nil
}

// List returns every Meeting belonging to userID, most recent first. Used by
// the read-only "bots for user" REST endpoint.
func (s *Store) List(ctx context.Context, userID string) ([]*models.Meeting, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectMeetingColumns+` FROM meetings WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list meetings: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []*models.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan meeting: %v", ErrUnavailable, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate meetings: %v", ErrUnavailable, err)
	}
	return out, nil
}

// ActiveCount returns how many non-terminal meetings userID currently has,
// used by pkg/lifecycle.GetActiveCount.
func (s *Store) ActiveCount(ctx context.Context, userID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM meetings WHERE user_id = $1 AND status = ANY($2)`,
		userID, nonTerminalStatuses,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count active meetings: %v", ErrUnavailable, err)
	}
	return n, nil
}

// StatusCounts returns the number of meetings per status. The reaper
// refreshes the active-meetings gauge from this on every sweep.
func (s *Store) StatusCounts(ctx context.Context) (map[models.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, count(*) FROM meetings GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("%w: count meetings by status: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("%w: scan status count: %v", ErrUnavailable, err)
		}
		counts[models.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate status counts: %v", ErrUnavailable, err)
	}
	return counts, nil
}
