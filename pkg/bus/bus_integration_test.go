package bus_test

import (
	stdsql "database/sql"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/botlifecycle/pkg/bus"
	"github.com/codeready-toolchain/botlifecycle/test/util"
)

func TestPostgresBusDeliversToListener(t *testing.T) {
	connStr := util.GetBaseConnectionString(t)
	db, err := stdsql.Open("pgx", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sessionUID := "sess-" + util.GenerateSchemaName(t)
	received := make(chan bus.Command, 1)

	listener := bus.NewListener(connStr, sessionUID, func(cmd bus.Command) {
		received <- cmd
	})
	require.NoError(t, listener.Start(t.Context()))
	t.Cleanup(listener.Stop)

	publisher := bus.NewPostgresBus(db)
	require.NoError(t, publisher.Publish(t.Context(), sessionUID, bus.NewLeaveCommand()))

	select {
	case cmd := <-received:
		require.Equal(t, bus.CommandLeave, cmd.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for command delivery")
	}
}
