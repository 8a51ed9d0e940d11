package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
)

// Listener is the worker-side counterpart of PostgresBus: it holds a
// dedicated pgx.Conn LISTENing on one bot's channel and dispatches each
// NOTIFY payload to its handler. A Listener subscribes to exactly one
// channel for the lifetime of its connection; there is no re-subscribe
// path, so the receive loop is the only goroutine that ever touches the
// connection. Worker binaries import this package directly.
type Listener struct {
	connString string
	sessionUID string
	conn       *pgx.Conn

	running atomic.Bool

	handle func(Command)

	cancelLoop context.CancelFunc
	loopDone   chan struct{}
}

// NewListener creates a Listener for sessionUID. handle is invoked from the
// receive loop's goroutine for every well-formed Command received; it
// should not block.
func NewListener(connString, sessionUID string, handle func(Command)) *Listener {
	return &Listener{
		connString: connString,
		sessionUID: sessionUID,
		handle:     handle,
	}
}

// Start opens the dedicated connection, issues LISTEN, and begins the
// receive loop. The returned error is only about connection/initial LISTEN
// failure; subsequent connection loss is logged, not returned.
func (l *Listener) Start(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.connString)
	if err != nil {
		return fmt.Errorf("connect for listen: %w", err)
	}
	l.conn = conn
	l.running.Store(true)

	loopCtx, cancel := context.WithCancel(ctx)
	l.cancelLoop = cancel
	l.loopDone = make(chan struct{})

	channel := Channel(l.sessionUID)
	sanitized := pgx.Identifier{channel}.Sanitize()
	if _, err := conn.Exec(ctx, "LISTEN "+sanitized); err != nil {
		_ = conn.Close(ctx)
		return fmt.Errorf("listen %s: %w", channel, err)
	}

	go func() {
		defer close(l.loopDone)
		l.receiveLoop(loopCtx)
	}()

	slog.Info("command bus listener started", "session_uid", l.sessionUID)
	return nil
}

// receiveLoop blocks on WaitForNotification, dispatching each payload to
// handle until the context is cancelled or the connection drops.
func (l *Listener) receiveLoop(ctx context.Context) {
	defer func() { _ = l.conn.Close(context.Background()) }()

	for {
		notification, err := l.conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("command bus listener wait failed", "session_uid", l.sessionUID, "error", err)
			return
		}

		var cmd Command
		if err := json.Unmarshal([]byte(notification.Payload), &cmd); err != nil {
			slog.Error("command bus payload decode failed", "session_uid", l.sessionUID, "error", err)
			continue
		}
		l.handle(cmd)
	}
}

// Stop cancels the receive loop and closes the dedicated connection.
func (l *Listener) Stop() {
	if !l.running.CompareAndSwap(true, false) {
		return
	}
	if l.cancelLoop != nil {
		l.cancelLoop()
	}
	if l.loopDone != nil {
		<-l.loopDone
	}
}
