package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/AldinMesan/ParcelsScript/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath, Options{LogLocation: time.UTC})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedCoordinates(t *testing.T, st Store, n int) {
	t.Helper()
	coords := make([]model.Coordinate, 0, n)
	for i := 0; i < n; i++ {
		coords = append(coords, model.Coordinate{Lat: 32.7 + float64(i)/100, Lng: -97.3 - float64(i)/100})
	}
	imported, err := st.ImportCoordinates(context.Background(), coords)
	require.NoError(t, err)
	require.Equal(t, int64(n), imported)
}

// --- Coordinates ---

func TestSQLite_ImportAndLoadPending(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedCoordinates(t, st, 3)

	pending, err := st.LoadPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, model.StatusTodo, pending[0].Status)
	assert.InDelta(t, 32.7, pending[0].Lat, 1e-9)
	assert.Less(t, pending[0].ID, pending[1].ID)

	limited, err := st.LoadPending(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLite_ImportEmpty(t *testing.T) {
	st := newTestSQLiteStore(t)
	n, err := st.ImportCoordinates(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestSQLite_MarkProcessing_ClaimsOnce(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedCoordinates(t, st, 1)

	pending, err := st.LoadPending(ctx, 0)
	require.NoError(t, err)
	id := pending[0].ID

	claimed, err := st.MarkProcessing(ctx, id)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = st.MarkProcessing(ctx, id)
	require.NoError(t, err)
	assert.False(t, claimed, "second claim must fail")

	pending, err = st.LoadPending(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSQLite_MarkDone_RequiresProcessing(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedCoordinates(t, st, 1)

	pending, err := st.LoadPending(ctx, 0)
	require.NoError(t, err)
	id := pending[0].ID

	err = st.MarkDone(ctx, id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROCESSING")

	_, err = st.MarkProcessing(ctx, id)
	require.NoError(t, err)
	require.NoError(t, st.MarkDone(ctx, id))

	counts, err := st.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[model.StatusDone])
}

func TestSQLite_ResetStale(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedCoordinates(t, st, 2)

	pending, err := st.LoadPending(ctx, 0)
	require.NoError(t, err)

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return base }
	_, err = st.MarkProcessing(ctx, pending[0].ID)
	require.NoError(t, err)

	st.now = func() time.Time { return base.Add(50 * time.Minute) }
	_, err = st.MarkProcessing(ctx, pending[1].ID)
	require.NoError(t, err)

	st.now = func() time.Time { return base.Add(time.Hour) }
	n, err := st.ResetStale(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	again, err := st.LoadPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, pending[0].ID, again[0].ID)

	counts, err := st.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[model.StatusTodo])
	assert.Equal(t, int64(1), counts[model.StatusProcessing])
}

// --- Results ---

func TestSQLite_StoreResult_WritesLog(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	st.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }

	id, err := st.StoreResult(ctx, 42, `[{"parcel_data":{"apn":"1"}}]`, "stored result for input 42")
	require.NoError(t, err)
	assert.Positive(t, id)

	results, err := st.ListResults(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(42), results[0].OriginID)
	assert.Equal(t, `[{"parcel_data":{"apn":"1"}}]`, results[0].Data)

	logs, err := st.ListLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "stored result for input 42", logs[0].Message)
	assert.Equal(t, "2024-05-06 07:08:09", logs[0].Timestamp)
}

func TestSQLite_Complete(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedCoordinates(t, st, 1)

	pending, err := st.LoadPending(ctx, 0)
	require.NoError(t, err)
	id := pending[0].ID

	_, err = st.MarkProcessing(ctx, id)
	require.NoError(t, err)

	resID, err := st.Complete(ctx, id, "[]", "done")
	require.NoError(t, err)
	assert.Positive(t, resID)

	counts, err := st.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[model.StatusDone])
}

func TestSQLite_Complete_RollsBackWhenNotClaimed(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedCoordinates(t, st, 1)

	pending, err := st.LoadPending(ctx, 0)
	require.NoError(t, err)

	_, err = st.Complete(ctx, pending[0].ID, "[]", "done")
	require.Error(t, err)

	results, err := st.ListResults(ctx)
	require.NoError(t, err)
	assert.Empty(t, results, "result insert must roll back")

	logs, err := st.ListLogs(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestSQLite_ListLogs_NewestFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, msg := range []string{"first", "second", "third"} {
		_, err := st.StoreResult(ctx, 1, "[]", msg)
		require.NoError(t, err)
	}

	logs, err := st.ListLogs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "third", logs[0].Message)
	assert.Equal(t, "second", logs[1].Message)
}

// --- Migration ---

func TestSQLite_Migrate_AddsClaimedAtToLegacyTable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	raw, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE input (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		status TEXT CHECK(status IN ('TODO', 'PROCESSING', 'DONE')),
		lat REAL,
		lng REAL
	)`)
	require.NoError(t, err)
	_, err = raw.Exec(`INSERT INTO input (status, lat, lng) VALUES ('PROCESSING', 1.5, 2.5)`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	st, err := NewSQLite(dbPath, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	ctx := context.Background()

	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.Migrate(ctx), "migrate must be idempotent")

	// Rows stuck by the legacy loop have no claim time and reset immediately.
	n, err := st.ResetStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

// --- Connection settings ---

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"parcel_data.db", "parcel_data.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"},
		{"file:x.db?mode=rwc", "file:x.db?mode=rwc&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"},
		{"x.db?_pragma=busy_timeout(100)", "x.db?_pragma=busy_timeout(100)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sqliteDSN(tt.in))
	}
}

func TestSQLite_PragmasApplyToEveryConnection(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// Holding both connections forces the pool to open two.
	conns := make([]*sql.Conn, 0, 2)
	for j := 0; j < 2; j++ {
		c, err := st.db.Conn(ctx)
		require.NoError(t, err)
		t.Cleanup(func() { c.Close() }) //nolint:errcheck
		conns = append(conns, c)
	}

	for i, c := range conns {
		var timeout int
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
		assert.Equal(t, 5000, timeout, "connection %d", i)

		var mode string
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
		assert.Equal(t, "wal", mode, "connection %d", i)

		var sync int
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA synchronous").Scan(&sync))
		assert.Equal(t, 1, sync, "connection %d (NORMAL)", i)
	}
}
