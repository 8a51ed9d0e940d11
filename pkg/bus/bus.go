package bus

import (
	"context"
	stdsql "database/sql"
	"fmt"
)

// Bus publishes commands to a running bot worker. Delivery is fire-and-
// forget: implementations must not block waiting for an acknowledgement.
type Bus interface {
	Publish(ctx context.Context, sessionUID string, cmd Command) error
}

// PostgresBus implements Bus with SELECT pg_notify(channel, payload).
// Publishing is deliberately NOT wrapped in the caller's transaction: command
// delivery is not state truth, so a rolled-back caller transaction should not
// suppress (or duplicate, on retry) a command that already reached the
// worker.
type PostgresBus struct {
	db *stdsql.DB
}

// NewPostgresBus wraps db, typically the same pool backing pkg/store or a
// dedicated connection per pkg/config.BusURL.
func NewPostgresBus(db *stdsql.DB) *PostgresBus {
	return &PostgresBus{db: db}
}

// Publish sends cmd to the channel associated with sessionUID.
func (b *PostgresBus) Publish(ctx context.Context, sessionUID string, cmd Command) error {
	payload, err := marshalCommand(cmd)
	if err != nil {
		return err
	}
	if _, err := b.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", Channel(sessionUID), string(payload)); err != nil {
		return fmt.Errorf("publish command: %w", err)
	}
	return nil
}
