package journal

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const createTable = `CREATE TABLE IF NOT EXISTS canvas_events (
	id      UUID PRIMARY KEY,
	at      TIMESTAMPTZ NOT NULL,
	kind    TEXT NOT NULL,
	conn    BIGINT NOT NULL,
	name    TEXT NOT NULL DEFAULT '',
	url     TEXT NOT NULL DEFAULT '',
	detail  TEXT NOT NULL DEFAULT ''
)`

const insertEvent = `INSERT INTO canvas_events (id, at, kind, conn, name, url, detail)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Postgres stores events in the canvas_events table.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and makes sure the table exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database failed")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping database failed")
	}
	if _, err := pool.Exec(ctx, createTable); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "create canvas_events failed")
	}
	return &Postgres{pool: pool}, nil
}

// Append inserts one event.
func (p *Postgres) Append(ctx context.Context, ev Event) error {
	_, err := p.pool.Exec(ctx, insertEvent,
		ev.ID, ev.Time, string(ev.Kind), int64(ev.Conn), ev.Name, ev.URL, ev.Detail)
	return errors.Wrap(err, "insert event failed")
}

// Close closes the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
