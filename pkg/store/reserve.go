package store

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/codeready-toolchain/botlifecycle/pkg/botid"
	"github.com/codeready-toolchain/botlifecycle/pkg/models"
)

// uniqueViolation is Postgres error code 23505.
const uniqueViolation = "23505"

// nonTerminalStatuses are the statuses that count against a user's
// concurrency cap.
var nonTerminalStatuses = []string{
	string(models.StatusReserved),
	string(models.StatusStarting),
	string(models.StatusActive),
	string(models.StatusStopping),
}

// ReserveInput carries the admitted, already-validated fields Reserve needs.
// Validation and defaulting happen one layer up in pkg/admission.
type ReserveInput struct {
	UserID          string
	Platform        models.Platform
	NativeMeetingID string
	MeetingURL      string
	Config          models.BotConfig
	RequestID       string
}

// Reserve admits a new bot request: it locks the user's row, counts their
// non-terminal meetings against max_concurrent_bots, and — if under cap —
// inserts a new Meeting in status reserved. Unknown users default to a cap
// of 1 and are implicitly created: the user record is consulted, not owned,
// by this service.
func (s *Store) Reserve(ctx context.Context, in ReserveInput) (*models.Meeting, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin reserve tx: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	var maxConcurrent int
	err = tx.QueryRowContext(ctx,
		`SELECT max_concurrent_bots FROM users WHERE user_id = $1 FOR UPDATE`, in.UserID,
	).Scan(&maxConcurrent)
	switch {
	case errors.Is(err, stdsql.ErrNoRows):
		maxConcurrent = 1
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (user_id, max_concurrent_bots) VALUES ($1, $2)`,
			in.UserID, maxConcurrent,
		); err != nil {
			return nil, fmt.Errorf("%w: implicit user create: %v", ErrUnavailable, err)
		}
	case err != nil:
		return nil, fmt.Errorf("%w: lock user row: %v", ErrUnavailable, err)
	}

	var active int
	if err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM meetings WHERE user_id = $1 AND status = ANY($2)`,
		in.UserID, nonTerminalStatuses,
	).Scan(&active); err != nil {
		return nil, fmt.Errorf("%w: count active meetings: %v", ErrUnavailable, err)
	}
	if active >= maxConcurrent {
		return nil, ErrLimitExceeded
	}

	sessionUID, err := botid.NewSessionUID()
	if err != nil {
		return nil, fmt.Errorf("generate session uid: %w", err)
	}
	meetingID := botid.NewMeetingID()

	configJSON, err := json.Marshal(in.Config)
	if err != nil {
		return nil, fmt.Errorf("encode bot config: %w", err)
	}

	var m models.Meeting
	err = tx.QueryRowContext(ctx, `
		INSERT INTO meetings (
			meeting_id, user_id, platform, native_meeting_id, meeting_url,
			status, config, request_id, session_uid
		) VALUES ($1, $2, $3, $4, $5, 'reserved', $6, $7, $8)
		RETURNING meeting_id, user_id, platform, native_meeting_id, meeting_url,
			status, config, request_id, session_uid, created_at, updated_at
	`,
		meetingID, in.UserID, string(in.Platform), in.NativeMeetingID, in.MeetingURL,
		configJSON, in.RequestID, sessionUID,
	).Scan(
		&m.MeetingID, &m.UserID, &m.Platform, &m.NativeMeetingID, &m.MeetingURL,
		&m.Status, &configJSON, &m.RequestID, &m.SessionUID, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("%w: insert meeting: %v", ErrUnavailable, err)
	}
	if err := json.Unmarshal(configJSON, &m.Config); err != nil {
		return nil, fmt.Errorf("decode bot config: %w", err)
	}

	if err := insertAudit(ctx, tx, meetingID, "", string(models.StatusReserved), ""); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit reserve tx: %v", ErrUnavailable, err)
	}
	return &m, nil
}

// insertAudit appends one row to meetings_audit within tx. fromStatus may be
// empty for the initial reservation.
func insertAudit(ctx context.Context, tx *stdsql.Tx, meetingID, fromStatus, toStatus, reason string) error {
	var from any
	if fromStatus != "" {
		from = fromStatus
	}
	var reasonArg any
	if reason != "" {
		reasonArg = reason
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meetings_audit (meeting_id, from_status, to_status, reason) VALUES ($1, $2, $3, $4)`,
		meetingID, from, toStatus, reasonArg,
	); err != nil {
		return fmt.Errorf("%w: insert audit row: %v", ErrUnavailable, err)
	}
	return nil
}
