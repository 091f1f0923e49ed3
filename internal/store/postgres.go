package store

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// appendLockKey identifies the transaction-scoped advisory lock that
// serializes appends across every process sharing the database.
const appendLockKey int64 = 0x63686174

const (
	appendQuery = `
INSERT INTO chat_messages (id, author, body, created_at)
SELECT COALESCE(MAX(id), 0) + 1, $1::varchar, $2::varchar,
       GREATEST($3::timestamptz, COALESCE(MAX(created_at), $3::timestamptz))
FROM chat_messages
RETURNING id, author, body, created_at`

	listAllQuery = `
SELECT id, author, body, created_at
FROM chat_messages
ORDER BY created_at, id`

	listRecentQuery = `
SELECT id, author, body, created_at
FROM chat_messages
ORDER BY created_at DESC, id DESC
LIMIT $1`
)

// PostgresStore persists the log in a chat_messages table.
//
// IDs are computed inside the insert while holding an advisory lock, so they
// stay gap-free even when a transaction rolls back, which a sequence would not
// guarantee. Timestamps are stored at microsecond precision.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *slog.Logger
	opts options
}

// OpenPostgresStore connects to dsn and applies the embedded migrations.
func OpenPostgresStore(ctx context.Context, dsn string, log *slog.Logger, opts ...Option) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("Postgres message store ready")
	return &PostgresStore{pool: pool, log: log, opts: buildOptions(opts)}, nil
}

// Migrate brings the schema up to date.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, author, body string) (chat.Message, error) {
	at := nextTimestamp(s.opts.now(), time.Time{}).Truncate(time.Microsecond)

	var msg chat.Message
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", appendLockKey); err != nil {
			return err
		}
		row := tx.QueryRow(ctx, appendQuery, author, body, at)
		var err error
		msg, err = scanMessage(row)
		return err
	})
	if err != nil {
		s.log.Error("Failed to append message", "error", err)
		return chat.Message{}, unavailable("append", err)
	}
	return msg, nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]chat.Message, error) {
	rows, err := s.pool.Query(ctx, listAllQuery)
	if err != nil {
		return nil, unavailable("list", err)
	}
	messages, err := pgx.CollectRows(rows, collectMessage)
	if err != nil {
		return nil, unavailable("list", err)
	}
	return messages, nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		return []chat.Message{}, nil
	}
	rows, err := s.pool.Query(ctx, listRecentQuery, limit)
	if err != nil {
		return nil, unavailable("list recent", err)
	}
	messages, err := pgx.CollectRows(rows, collectMessage)
	if err != nil {
		return nil, unavailable("list recent", err)
	}
	// The query returns newest first
	slices.Reverse(messages)
	return messages, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanMessage(row pgx.Row) (chat.Message, error) {
	var m chat.Message
	if err := row.Scan(&m.ID, &m.Author, &m.Body, &m.CreatedAt); err != nil {
		return chat.Message{}, err
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

func collectMessage(row pgx.CollectableRow) (chat.Message, error) {
	return scanMessage(row)
}
