package store

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/codeready-toolchain/botlifecycle/pkg/models"
)

// AdvanceOptions carries the optional fields AdvanceStatus may set alongside
// status itself.
type AdvanceOptions struct {
	StartTime     *time.Time
	EndTime       *time.Time
	FailureReason string
}

// AdvanceStatus performs a compare-and-set transition: it locks the row,
// updates status to `to` only if the current status is in `from`, and
// appends an audit row recording the transition it actually made. Every
// requested edge is checked against the lifecycle DAG first, so a caller
// whose from-set drifts from models.CanTransition fails loudly instead of
// writing an illegal transition. If the row is already at `to`, the call is
// an idempotent no-op success rather than a conflict. If the row is at
// neither `from` nor `to`, it returns ErrIllegalTransition.
func (s *Store) AdvanceStatus(ctx context.Context, meetingID string, from []models.Status, to models.Status, opts AdvanceOptions) error {
	fromStrs := make([]string, len(from))
	for i, f := range from {
		if !models.CanTransition(f, to) {
			return fmt.Errorf("%w: %s -> %s is not a lifecycle edge", ErrIllegalTransition, f, to)
		}
		fromStrs[i] = string(f)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin advance tx: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	// The row lock linearizes concurrent transition attempts on one
	// Meeting and pins the prior status for the audit row.
	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM meetings WHERE meeting_id = $1 FOR UPDATE`, meetingID,
	).Scan(&current)
	if errors.Is(err, stdsql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: lock meeting row: %v", ErrUnavailable, err)
	}

	if current == string(to) {
		return tx.Commit()
	}
	if !slices.Contains(fromStrs, current) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, to)
	}

	var reasonArg any
	if opts.FailureReason != "" {
		reasonArg = opts.FailureReason
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE meetings SET status = $1, updated_at = now(), failure_reason = COALESCE($2, failure_reason),
			start_time = COALESCE(start_time, $4), end_time = COALESCE($5, end_time)
		WHERE meeting_id = $3
	`, string(to), reasonArg, meetingID, opts.StartTime, opts.EndTime); err != nil {
		return fmt.Errorf("%w: advance status: %v", ErrUnavailable, err)
	}

	if err := insertAudit(ctx, tx, meetingID, current, string(to), opts.FailureReason); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit advance tx: %v", ErrUnavailable, err)
	}
	return nil
}

// SetContainer records the worker container id assigned by the Container
// Orchestrator Adapter: bot_container_id is set exactly once and never
// rewritten. It deliberately does NOT touch status — every status write
// belongs to the worker callbacks or the reaper, so the Meeting stays in
// reserved until the worker's own "started" callback moves it to starting.
// A second call for the same meeting_id is a conflict.
func (s *Store) SetContainer(ctx context.Context, meetingID, containerID, instanceID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin set-container tx: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE meetings SET bot_container_id = $1, owner_instance_id = $2, updated_at = now()
		WHERE meeting_id = $3 AND bot_container_id IS NULL
	`, containerID, instanceID, meetingID)
	if err != nil {
		return fmt.Errorf("%w: set container: %v", ErrUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: read rows affected: %v", ErrUnavailable, err)
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT true FROM meetings WHERE meeting_id = $1`, meetingID).Scan(&exists); errors.Is(err, stdsql.ErrNoRows) {
			return ErrNotFound
		}
		return ErrConflict
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit set-container tx: %v", ErrUnavailable, err)
	}
	return nil
}

// Touch refreshes last_heartbeat_at and updated_at, used by the callback
// ingress's Heartbeat handler.
func (s *Store) Touch(ctx context.Context, meetingID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE meetings SET last_heartbeat_at = now(), updated_at = now() WHERE meeting_id = $1`, meetingID)
	if err != nil {
		return fmt.Errorf("%w: touch heartbeat: %v", ErrUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: read rows affected: %v", ErrUnavailable, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPendingConfig stashes a Reconfigure command's payload so it can be
// folded into the live config on the worker's next joined/status
// callback.
func (s *Store) SetPendingConfig(ctx context.Context, meetingID string, cfg models.BotConfig) error {
	data, err := marshalConfig(cfg)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE meetings SET pending_config = $1, updated_at = now() WHERE meeting_id = $2`, data, meetingID)
	if err != nil {
		return fmt.Errorf("%w: set pending config: %v", ErrUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: read rows affected: %v", ErrUnavailable, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// FoldPendingConfig merges any pending_config into config and clears
// pending_config, called by the callback ingress on the worker's joined and
// status callbacks.
func (s *Store) FoldPendingConfig(ctx context.Context, meetingID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE meetings SET config = pending_config, pending_config = NULL, updated_at = now()
		WHERE meeting_id = $1 AND pending_config IS NOT NULL
	`, meetingID)
	if err != nil {
		return fmt.Errorf("%w: fold pending config: %v", ErrUnavailable, err)
	}
	return nil
}
