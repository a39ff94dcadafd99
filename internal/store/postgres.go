package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/AldinMesan/ParcelsScript/internal/db"
	"github.com/AldinMesan/ParcelsScript/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
	loc  *time.Location
	now  func() time.Time
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, opts Options) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	if opts.MaxConns > 0 {
		maxConns = opts.MaxConns
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, loc: opts.location(), now: time.Now}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS input (
	id         BIGSERIAL PRIMARY KEY,
	status     TEXT CHECK (status IN ('TODO', 'PROCESSING', 'DONE')),
	lat        DOUBLE PRECISION,
	lng        DOUBLE PRECISION,
	claimed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS results (
	id        BIGSERIAL PRIMARY KEY,
	origin_id BIGINT REFERENCES input (id),
	data      TEXT
);

CREATE TABLE IF NOT EXISTS logs (
	log         TEXT,
	"timestamp" TEXT
);

ALTER TABLE input ADD COLUMN IF NOT EXISTS claimed_at TIMESTAMPTZ;

CREATE INDEX IF NOT EXISTS idx_input_status ON input(status);
CREATE INDEX IF NOT EXISTS idx_results_origin_id ON results(origin_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) ImportCoordinates(ctx context.Context, coords []model.Coordinate) (int64, error) {
	rows := make([][]any, 0, len(coords))
	for _, c := range coords {
		rows = append(rows, []any{c.Lat, c.Lng, string(model.StatusTodo)})
	}
	n, err := db.CopyFrom(ctx, s.pool, "input", []string{"lat", "lng", "status"}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import coordinates")
	}
	return n, nil
}

func (s *PostgresStore) LoadPending(ctx context.Context, limit int) ([]model.Coordinate, error) {
	query := `SELECT id, lat, lng, status FROM input
		WHERE status = $1 AND lat IS NOT NULL AND lng IS NOT NULL
		ORDER BY id`
	args := []any{string(model.StatusTodo)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load pending")
	}
	defer rows.Close()

	var coords []model.Coordinate
	for rows.Next() {
		var c model.Coordinate
		var status string
		if err := rows.Scan(&c.ID, &c.Lat, &c.Lng, &status); err != nil {
			return nil, eris.Wrap(err, "postgres: scan coordinate")
		}
		c.Status = model.Status(status)
		coords = append(coords, c)
	}
	return coords, eris.Wrap(rows.Err(), "postgres: load pending iterate")
}

func (s *PostgresStore) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE input SET status = $1, claimed_at = $2 WHERE id = $3 AND status = $4`,
		string(model.StatusProcessing), s.now().UTC(), id, string(model.StatusTodo),
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: claim input %d", id)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) MarkDone(ctx context.Context, id int64) error {
	return pgMarkDone(ctx, s.pool, id)
}

func (s *PostgresStore) ResetStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan).UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE input SET status = $1, claimed_at = NULL
		 WHERE status = $2 AND (claimed_at IS NULL OR claimed_at <= $3)`,
		string(model.StatusTodo), string(model.StatusProcessing), cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: reset stale")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[model.Status]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM input WHERE status IS NOT NULL GROUP BY status`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by status")
	}
	defer rows.Close()

	counts := make(map[model.Status]int64, len(model.Statuses))
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status count")
		}
		st, err := model.ParseStatus(status)
		if err != nil {
			return nil, err
		}
		counts[st] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count by status iterate")
}

func (s *PostgresStore) StoreResult(ctx context.Context, originID int64, data, logMsg string) (int64, error) {
	return s.storeResult(ctx, s.pool, originID, data, logMsg)
}

func (s *PostgresStore) Complete(ctx context.Context, originID int64, data, logMsg string) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin complete")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	id, err := s.storeResult(ctx, tx, originID, data, logMsg)
	if err != nil {
		return 0, err
	}
	if err := pgMarkDone(ctx, tx, originID); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "postgres: commit complete for input %d", originID)
	}
	return id, nil
}

func (s *PostgresStore) ListResults(ctx context.Context) ([]model.Result, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, origin_id, data FROM results ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		var r model.Result
		var originID *int64
		var data *string
		if err := rows.Scan(&r.ID, &originID, &data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		if originID != nil {
			r.OriginID = *originID
		}
		if data != nil {
			r.Data = *data
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: list results iterate")
}

func (s *PostgresStore) ListLogs(ctx context.Context, limit int) ([]model.LogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT COALESCE(log, ''), COALESCE("timestamp", '') FROM logs
		 ORDER BY ctid DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list logs")
	}
	defer rows.Close()

	var entries []model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		if err := rows.Scan(&e.Message, &e.Timestamp); err != nil {
			return nil, eris.Wrap(err, "postgres: scan log")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list logs iterate")
}

// pgExecer is satisfied by both db.Pool and pgx.Tx.
type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) storeResult(ctx context.Context, ex pgExecer, originID int64, data, logMsg string) (int64, error) {
	var id int64
	err := ex.QueryRow(ctx,
		`INSERT INTO results (origin_id, data) VALUES ($1, $2) RETURNING id`,
		originID, data,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: insert result for input %d", originID)
	}

	entry := model.NewLogEntry(logMsg, s.now(), s.loc)
	if _, err := ex.Exec(ctx,
		`INSERT INTO logs (log, "timestamp") VALUES ($1, $2)`,
		entry.Message, entry.Timestamp,
	); err != nil {
		return 0, eris.Wrapf(err, "postgres: insert log for result %d", id)
	}
	return id, nil
}

func pgMarkDone(ctx context.Context, ex pgExecer, id int64) error {
	tag, err := ex.Exec(ctx,
		`UPDATE input SET status = $1 WHERE id = $2 AND status = $3`,
		string(model.StatusDone), id, string(model.StatusProcessing),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark done %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("input %d not found in PROCESSING state", id)
	}
	return nil
}
