package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/AldinMesan/ParcelsScript/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	loc *time.Location
	now func() time.Time
}

// sqlitePragmas are applied by the driver to every pooled connection.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
}

// sqliteDSN appends any of sqlitePragmas the caller did not set as
// _pragma query parameters.
func sqliteDSN(dsn string) string {
	var params []string
	for _, p := range sqlitePragmas {
		name := p[:strings.IndexByte(p, '(')]
		if strings.Contains(dsn, "_pragma="+name) {
			continue
		}
		params = append(params, "_pragma="+p)
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// NewSQLite opens a SQLite database at the given path in WAL mode.
func NewSQLite(dsn string, opts Options) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := db.Ping(); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: ping")
	}
	return &SQLiteStore{db: db, loc: opts.location(), now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS input (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	status     TEXT CHECK(status IN ('TODO', 'PROCESSING', 'DONE')),
	lat        REAL,
	lng        REAL,
	claimed_at INTEGER
);

CREATE TABLE IF NOT EXISTS results (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	origin_id INTEGER,
	data      TEXT,
	FOREIGN KEY (origin_id) REFERENCES input (id)
);

CREATE TABLE IF NOT EXISTS logs (
	log       TEXT,
	timestamp TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_input_status ON input(status);
CREATE INDEX IF NOT EXISTS idx_results_origin_id ON results(origin_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}

	// input tables created before claim tracking lack claimed_at.
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('input') WHERE name = 'claimed_at'`,
	).Scan(&n)
	if err != nil {
		return eris.Wrap(err, "sqlite: inspect input columns")
	}
	if n == 0 {
		if _, err := s.db.ExecContext(ctx, `ALTER TABLE input ADD COLUMN claimed_at INTEGER`); err != nil {
			return eris.Wrap(err, "sqlite: add claimed_at column")
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ImportCoordinates(ctx context.Context, coords []model.Coordinate) (int64, error) {
	if len(coords) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin import")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO input (status, lat, lng) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare import")
	}
	defer stmt.Close() //nolint:errcheck

	for _, c := range coords {
		if _, err := stmt.ExecContext(ctx, string(model.StatusTodo), c.Lat, c.Lng); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert coordinate (%f, %f)", c.Lat, c.Lng)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit import")
	}
	return int64(len(coords)), nil
}

func (s *SQLiteStore) LoadPending(ctx context.Context, limit int) ([]model.Coordinate, error) {
	query := `SELECT id, lat, lng, status FROM input
		WHERE status = ? AND lat IS NOT NULL AND lng IS NOT NULL
		ORDER BY id`
	args := []any{string(model.StatusTodo)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load pending")
	}
	defer rows.Close() //nolint:errcheck

	var coords []model.Coordinate
	for rows.Next() {
		var c model.Coordinate
		var status string
		if err := rows.Scan(&c.ID, &c.Lat, &c.Lng, &status); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan coordinate")
		}
		c.Status = model.Status(status)
		coords = append(coords, c)
	}
	return coords, eris.Wrap(rows.Err(), "sqlite: load pending iterate")
}

func (s *SQLiteStore) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE input SET status = ?, claimed_at = ? WHERE id = ? AND status = ?`,
		string(model.StatusProcessing), s.now().Unix(), id, string(model.StatusTodo),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: claim input %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) MarkDone(ctx context.Context, id int64) error {
	return sqliteMarkDone(ctx, s.db, id)
}

func (s *SQLiteStore) ResetStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan).Unix()
	res, err := s.db.ExecContext(ctx,
		`UPDATE input SET status = ?, claimed_at = NULL
		 WHERE status = ? AND (claimed_at IS NULL OR claimed_at <= ?)`,
		string(model.StatusTodo), string(model.StatusProcessing), cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: reset stale")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[model.Status]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM input WHERE status IS NOT NULL GROUP BY status`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by status")
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[model.Status]int64, len(model.Statuses))
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status count")
		}
		st, err := model.ParseStatus(status)
		if err != nil {
			return nil, err
		}
		counts[st] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count by status iterate")
}

func (s *SQLiteStore) StoreResult(ctx context.Context, originID int64, data, logMsg string) (int64, error) {
	return s.storeResult(ctx, s.db, originID, data, logMsg)
}

func (s *SQLiteStore) Complete(ctx context.Context, originID int64, data, logMsg string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin complete")
	}
	defer tx.Rollback() //nolint:errcheck

	id, err := s.storeResult(ctx, tx, originID, data, logMsg)
	if err != nil {
		return 0, err
	}
	if err := sqliteMarkDone(ctx, tx, originID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrapf(err, "sqlite: commit complete for input %d", originID)
	}
	return id, nil
}

func (s *SQLiteStore) ListResults(ctx context.Context) ([]model.Result, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, origin_id, data FROM results ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close() //nolint:errcheck

	var results []model.Result
	for rows.Next() {
		var r model.Result
		var originID sql.NullInt64
		var data sql.NullString
		if err := rows.Scan(&r.ID, &originID, &data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		r.OriginID = originID.Int64
		r.Data = data.String
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: list results iterate")
}

func (s *SQLiteStore) ListLogs(ctx context.Context, limit int) ([]model.LogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	// CAST keeps legacy DATETIME columns as their stored text.
	rows, err := s.db.QueryContext(ctx,
		`SELECT COALESCE(log, ''), COALESCE(CAST(timestamp AS TEXT), '') FROM logs
		 ORDER BY rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list logs")
	}
	defer rows.Close() //nolint:errcheck

	var entries []model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		if err := rows.Scan(&e.Message, &e.Timestamp); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan log")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list logs iterate")
}

// helpers

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) storeResult(ctx context.Context, ex sqlExecer, originID int64, data, logMsg string) (int64, error) {
	res, err := ex.ExecContext(ctx,
		`INSERT INTO results (origin_id, data) VALUES (?, ?)`,
		originID, data,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: insert result for input %d", originID)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: result id")
	}

	entry := model.NewLogEntry(logMsg, s.now(), s.loc)
	if _, err := ex.ExecContext(ctx,
		`INSERT INTO logs (log, timestamp) VALUES (?, ?)`,
		entry.Message, entry.Timestamp,
	); err != nil {
		return 0, eris.Wrapf(err, "sqlite: insert log for result %d", id)
	}
	return id, nil
}

func sqliteMarkDone(ctx context.Context, ex sqlExecer, id int64) error {
	res, err := ex.ExecContext(ctx,
		`UPDATE input SET status = ? WHERE id = ? AND status = ?`,
		string(model.StatusDone), id, string(model.StatusProcessing),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark done %d", id)
	}
	return checkRowsAffected(res, id)
}

func checkRowsAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("input %d not found in PROCESSING state", id)
	}
	return nil
}
