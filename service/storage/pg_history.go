package storage

import (
	"context"

	"PRelay/module/chat/model"
	"PRelay/tools/errs"

	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id        TEXT PRIMARY KEY,
	sender    TEXT NOT NULL,
	receiver  TEXT NOT NULL,
	text      TEXT NOT NULL,
	ts        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_sender_ts ON messages (sender, ts DESC);
CREATE INDEX IF NOT EXISTS messages_receiver_ts ON messages (receiver, ts DESC);
`

const (
	pgInsert = `INSERT INTO messages (id, sender, receiver, text, ts) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`
	pgLatest = `SELECT id, sender, receiver, text, ts FROM messages
WHERE sender = $1 OR receiver = $1
ORDER BY ts DESC, id DESC
LIMIT $2`
)

// PgHistory PostgreSQL messages 表（pgxpool）
type PgHistory struct {
	pool *pgxpool.Pool
}

func NewPgHistory(ctx context.Context, uri string, opt Options) (*PgHistory, error) {
	cfg, err := pgxpool.ParseConfig(uri)
	if err != nil {
		return nil, errs.ErrStoreConfig.WrapMsg(err.Error())
	}
	cctx, cancel := context.WithTimeout(ctx, opt.Timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(cctx, cfg)
	if err != nil {
		return nil, errs.ErrStore.WrapMsg(err.Error())
	}
	if err := pool.Ping(cctx); err != nil {
		pool.Close()
		return nil, errs.ErrStore.WrapMsg("postgres ping failed: " + err.Error())
	}
	if _, err := pool.Exec(cctx, pgSchema); err != nil {
		pool.Close()
		return nil, errs.ErrStore.WrapMsg("postgres schema: " + err.Error())
	}
	return &PgHistory{pool: pool}, nil
}

func (s *PgHistory) Append(ctx context.Context, msg model.Message) error {
	if _, err := s.pool.Exec(ctx, pgInsert, msg.ID, msg.Sender, msg.Receiver, msg.Text, msg.Timestamp); err != nil {
		return errs.ErrStore.WrapMsg(err.Error(), "id", msg.ID)
	}
	return nil
}

func (s *PgHistory) Query(ctx context.Context, username string, limit int) ([]model.Message, error) {
	rows, err := s.pool.Query(ctx, pgLatest, username, limit)
	if err != nil {
		return nil, errs.ErrStore.WrapMsg(err.Error(), "username", username)
	}
	defer rows.Close()

	out := make([]model.Message, 0, limit)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.Sender, &m.Receiver, &m.Text, &m.Timestamp); err != nil {
			return nil, errs.ErrStore.WrapMsg(err.Error(), "username", username)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.ErrStore.WrapMsg(err.Error(), "username", username)
	}
	return reverse(out), nil
}

func (s *PgHistory) Close() error {
	s.pool.Close()
	return nil
}
