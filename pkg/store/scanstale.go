package store

import (
	"context"
	"fmt"
	"time"

	"github.com/codeready-toolchain/botlifecycle/pkg/models"
)

// ScanStale returns every Meeting in status phase whose staleness column
// (updated_at for reserved/starting/stopping, last_heartbeat_at for active)
// is older than olderThan. The (status, updated_at) and
// (status, last_heartbeat_at) indexes in pkg/store/migrations cover the
// status filter.
func (s *Store) ScanStale(ctx context.Context, phase models.Status, olderThan time.Time) ([]*models.Meeting, error) {
	// Active rows are judged by heartbeat freshness; a worker that joined
	// but never heartbeat has a NULL last_heartbeat_at, so fall back to
	// updated_at rather than letting the row dodge the sweep forever.
	column := "updated_at"
	if phase == models.StatusActive {
		column = "COALESCE(last_heartbeat_at, updated_at)"
	}

	query := fmt.Sprintf(`SELECT %s FROM meetings WHERE status = $1 AND %s < $2 ORDER BY %s ASC`, selectMeetingColumns, column, column)
	rows, err := s.db.QueryContext(ctx, query, string(phase), olderThan)
	if err != nil {
		return nil, fmt.Errorf("%w: scan stale %s: %v", ErrUnavailable, phase, err)
	}
	defer rows.Close()

	var out []*models.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan stale row: %v", ErrUnavailable, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate stale rows: %v", ErrUnavailable, err)
	}
	return out, nil
}

// StartupOrphans returns non-terminal meetings owned by instanceID, used by
// the reaper's one-shot startup sweep to recover rows left behind by a
// crashed prior process occupying the same instance id.
func (s *Store) StartupOrphans(ctx context.Context, instanceID string) ([]*models.Meeting, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM meetings
		WHERE owner_instance_id = $1 AND status = ANY($2)
		ORDER BY updated_at ASC
	`, selectMeetingColumns)
	rows, err := s.db.QueryContext(ctx, query, instanceID, nonTerminalStatuses)
	if err != nil {
		return nil, fmt.Errorf("%w: scan startup orphans: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []*models.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan startup orphan row: %v", ErrUnavailable, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate startup orphans: %v", ErrUnavailable, err)
	}
	return out, nil
}
