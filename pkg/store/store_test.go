package store_test

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/botlifecycle/pkg/models"
	"github.com/codeready-toolchain/botlifecycle/pkg/store"
	"github.com/codeready-toolchain/botlifecycle/test/util"
)

func reserveInput(userID, nativeMeetingID string) store.ReserveInput {
	lang := "en"
	return store.ReserveInput{
		UserID:          userID,
		Platform:        models.PlatformZoom,
		NativeMeetingID: nativeMeetingID,
		MeetingURL:      "https://zoom.us/j/" + nativeMeetingID,
		Config:          models.BotConfig{Language: &lang, Task: models.TaskTranscribe, BotName: "Rec"},
		RequestID:       "req-" + nativeMeetingID,
	}
}

func TestReserveThenReadRoundTrips(t *testing.T) {
	st, _ := util.SetupTestStore(t)

	in := reserveInput("user-rt", "111")
	m, err := st.Reserve(t.Context(), in)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReserved, m.Status)
	assert.NotEmpty(t, m.SessionUID)

	read, err := st.Read(t.Context(), m.MeetingID)
	require.NoError(t, err)
	if diff := cmp.Diff(in.Config, read.Config); diff != "" {
		t.Errorf("config round-trip mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, m.SessionUID, read.SessionUID)
	assert.Equal(t, models.StatusReserved, read.Status)
	assert.Nil(t, read.BotContainerID)
	assert.Nil(t, read.EndTime)
}

func TestReserveEnforcesCapUnderConcurrency(t *testing.T) {
	st, db := util.SetupTestStore(t)

	_, err := db.ExecContext(t.Context(),
		`INSERT INTO users (user_id, max_concurrent_bots) VALUES ($1, 2)`, "user-cap")
	require.NoError(t, err)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = st.Reserve(t.Context(), reserveInput("user-cap", string(rune('a'+i))))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, store.ErrLimitExceeded)
		}
	}
	assert.Equal(t, 2, succeeded)

	n, err := st.ActiveCount(t.Context(), "user-cap")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReserveZeroCapRefusesEveryStart(t *testing.T) {
	st, db := util.SetupTestStore(t)

	_, err := db.ExecContext(t.Context(),
		`INSERT INTO users (user_id, max_concurrent_bots) VALUES ($1, 0)`, "user-zero")
	require.NoError(t, err)

	_, err = st.Reserve(t.Context(), reserveInput("user-zero", "111"))
	require.ErrorIs(t, err, store.ErrLimitExceeded)
}

func TestReserveRejectsDuplicateNonTerminalMeeting(t *testing.T) {
	st, db := util.SetupTestStore(t)

	_, err := db.ExecContext(t.Context(),
		`INSERT INTO users (user_id, max_concurrent_bots) VALUES ($1, 5)`, "user-dup")
	require.NoError(t, err)

	m, err := st.Reserve(t.Context(), reserveInput("user-dup", "same"))
	require.NoError(t, err)

	_, err = st.Reserve(t.Context(), reserveInput("user-dup", "same"))
	require.ErrorIs(t, err, store.ErrConflict)

	// Once the first attempt is terminal, the same native meeting id is
	// admissible again.
	require.NoError(t, st.AdvanceStatus(t.Context(), m.MeetingID,
		[]models.Status{models.StatusReserved}, models.StatusFailed, store.AdvanceOptions{}))
	_, err = st.Reserve(t.Context(), reserveInput("user-dup", "same"))
	require.NoError(t, err)
}

func TestAdvanceStatusRejectsNonDAGEdge(t *testing.T) {
	st, _ := util.SetupTestStore(t)

	m, err := st.Reserve(t.Context(), reserveInput("user-dag", "222"))
	require.NoError(t, err)

	// reserved -> active skips starting and must not apply.
	err = st.AdvanceStatus(t.Context(), m.MeetingID,
		[]models.Status{models.StatusStarting}, models.StatusActive, store.AdvanceOptions{})
	require.ErrorIs(t, err, store.ErrIllegalTransition)

	read, err := st.Read(t.Context(), m.MeetingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReserved, read.Status)
}

func TestAdvanceStatusIsIdempotentAtTarget(t *testing.T) {
	st, _ := util.SetupTestStore(t)

	m, err := st.Reserve(t.Context(), reserveInput("user-idem", "333"))
	require.NoError(t, err)

	from := []models.Status{models.StatusReserved}
	require.NoError(t, st.AdvanceStatus(t.Context(), m.MeetingID, from, models.StatusStarting, store.AdvanceOptions{}))
	// Replaying the same transition is a no-op success.
	require.NoError(t, st.AdvanceStatus(t.Context(), m.MeetingID, from, models.StatusStarting, store.AdvanceOptions{}))
}

func TestAdvanceStatusConcurrentCallersResolveOnce(t *testing.T) {
	st, _ := util.SetupTestStore(t)

	m, err := st.Reserve(t.Context(), reserveInput("user-race", "444"))
	require.NoError(t, err)

	const callers = 6
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = st.AdvanceStatus(t.Context(), m.MeetingID,
				[]models.Status{models.StatusReserved}, models.StatusStarting, store.AdvanceOptions{})
		}(i)
	}
	wg.Wait()

	// Every caller observes success: one applied the edge, the rest found
	// the row already at the target.
	for _, err := range errs {
		require.NoError(t, err)
	}

	read, err := st.Read(t.Context(), m.MeetingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusStarting, read.Status)
}

func TestSetContainerIsSingleUse(t *testing.T) {
	st, _ := util.SetupTestStore(t)

	m, err := st.Reserve(t.Context(), reserveInput("user-ctr", "555"))
	require.NoError(t, err)

	require.NoError(t, st.SetContainer(t.Context(), m.MeetingID, "container-a", "instance-1"))
	err = st.SetContainer(t.Context(), m.MeetingID, "container-b", "instance-1")
	require.ErrorIs(t, err, store.ErrConflict)

	read, err := st.Read(t.Context(), m.MeetingID)
	require.NoError(t, err)
	require.NotNil(t, read.BotContainerID)
	assert.Equal(t, "container-a", *read.BotContainerID)

	err = st.SetContainer(t.Context(), "00000000-0000-0000-0000-000000000000", "container-c", "instance-1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpsertSessionRecordsExactlyOne(t *testing.T) {
	st, db := util.SetupTestStore(t)

	m, err := st.Reserve(t.Context(), reserveInput("user-sess", "666"))
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, st.UpsertSession(t.Context(), m.SessionUID, m.MeetingID, start))
	err = st.UpsertSession(t.Context(), m.SessionUID, m.MeetingID, start.Add(time.Minute))
	require.ErrorIs(t, err, store.ErrAlreadySet)

	var count int
	require.NoError(t, db.QueryRowContext(t.Context(),
		`SELECT count(*) FROM meeting_sessions WHERE meeting_id = $1`, m.MeetingID).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestScanStaleFallsBackToUpdatedAtForSilentActiveRow(t *testing.T) {
	st, db := util.SetupTestStore(t)

	m, err := st.Reserve(t.Context(), reserveInput("user-silent", "777"))
	require.NoError(t, err)
	require.NoError(t, st.AdvanceStatus(t.Context(), m.MeetingID,
		[]models.Status{models.StatusReserved}, models.StatusStarting, store.AdvanceOptions{}))
	require.NoError(t, st.AdvanceStatus(t.Context(), m.MeetingID,
		[]models.Status{models.StatusStarting}, models.StatusActive, store.AdvanceOptions{}))

	// The worker joined but never heartbeat: last_heartbeat_at is NULL and
	// the row must still go stale once updated_at ages out.
	_, err = db.ExecContext(t.Context(),
		`UPDATE meetings SET updated_at = now() - interval '1 hour' WHERE meeting_id = $1`, m.MeetingID)
	require.NoError(t, err)

	stale, err := st.ScanStale(t.Context(), models.StatusActive, time.Now().Add(-2*time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, m.MeetingID, stale[0].MeetingID)

	// A fresh heartbeat takes the row back out of the stale set.
	require.NoError(t, st.Touch(t.Context(), m.MeetingID))
	stale, err = st.ScanStale(t.Context(), models.StatusActive, time.Now().Add(-2*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestAuditTrailWitnessesEveryTransition(t *testing.T) {
	st, db := util.SetupTestStore(t)

	m, err := st.Reserve(t.Context(), reserveInput("user-audit", "888"))
	require.NoError(t, err)

	steps := []struct {
		from models.Status
		to   models.Status
	}{
		{models.StatusReserved, models.StatusStarting},
		{models.StatusStarting, models.StatusActive},
		{models.StatusActive, models.StatusStopping},
		{models.StatusStopping, models.StatusCompleted},
	}
	for _, s := range steps {
		require.NoError(t, st.AdvanceStatus(t.Context(), m.MeetingID,
			[]models.Status{s.from}, s.to, store.AdvanceOptions{}))
	}

	rows, err := db.QueryContext(t.Context(),
		`SELECT COALESCE(from_status, ''), to_status FROM meetings_audit WHERE meeting_id = $1 ORDER BY id`, m.MeetingID)
	require.NoError(t, err)
	defer rows.Close()

	var trail [][2]string
	for rows.Next() {
		var from, to string
		require.NoError(t, rows.Scan(&from, &to))
		trail = append(trail, [2]string{from, to})
	}
	require.NoError(t, rows.Err())

	// The initial reservation has no prior status; every later row records
	// the state it actually left.
	want := [][2]string{
		{"", "reserved"},
		{"reserved", "starting"},
		{"starting", "active"},
		{"active", "stopping"},
		{"stopping", "completed"},
	}
	if diff := cmp.Diff(want, trail); diff != "" {
		t.Errorf("audit trail mismatch (-want +got):\n%s", diff)
	}
}
