package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/set-night/agentchat/internal/domain"
)

// PostgresStore persists sessions and messages in Postgres through a bounded
// pgx pool. Every operation checks a connection out with the configured
// acquire timeout, so pool exhaustion surfaces as an error instead of an
// unbounded wait.
type PostgresStore struct {
	pool           *pgxpool.Pool
	databaseURL    string
	acquireTimeout time.Duration
}

func NewPostgresStore(ctx context.Context, databaseURL string, pc PoolConfig) (*PostgresStore, error) {
	pool, err := NewPool(ctx, databaseURL, pc)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool, databaseURL: databaseURL, acquireTimeout: pc.AcquireTimeout}, nil
}

func (s *PostgresStore) Migrate(_ context.Context, migrationsFS fs.FS) error {
	return RunMigrations(s.databaseURL, migrationsFS)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	actx := ctx
	if s.acquireTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, s.acquireTimeout)
		defer cancel()
	}
	conn, err := s.pool.Acquire(actx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return conn, nil
}

const pgSessionColumns = `session_id::text, user_id, platform, created_at, updated_at`

func scanPgSession(row pgx.Row) (domain.Session, error) {
	var (
		sess               domain.Session
		platform           string
		createdAt, updated pgtype.Timestamptz
	)
	if err := row.Scan(&sess.SessionID, &sess.UserID, &platform, &createdAt, &updated); err != nil {
		return domain.Session{}, err
	}
	sess.Platform = domain.Platform(platform)
	sess.CreatedAt = pgTimestamptzToTime(createdAt)
	sess.UpdatedAt = pgTimestamptzToTime(updated)
	return sess, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, filter domain.SessionFilter, page domain.PageRequest) ([]domain.Session, int64, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer conn.Release()

	var total int64
	err = conn.QueryRow(ctx,
		`SELECT count(*) FROM sessions WHERE platform = $1 AND ($2::text = '' OR user_id = $2)`,
		filter.Platform.String(), filter.UserID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	rows, err := conn.Query(ctx,
		`SELECT `+pgSessionColumns+` FROM sessions
		 WHERE platform = $1 AND ($2::text = '' OR user_id = $2)
		 ORDER BY created_at DESC, session_id
		 LIMIT $3 OFFSET $4`,
		filter.Platform.String(), filter.UserID, page.Limit(), page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []domain.Session{}
	for rows.Next() {
		sess, err := scanPgSession(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, total, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	sess, err := scanPgSession(conn.QueryRow(ctx,
		`SELECT `+pgSessionColumns+` FROM sessions WHERE session_id = $1`, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, sessionID string, ns domain.NewSession) (*domain.Session, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	now := timeToPgTimestamptz(nowUTC())
	sess, err := scanPgSession(conn.QueryRow(ctx,
		`INSERT INTO sessions (session_id, user_id, platform, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (session_id) DO NOTHING
		 RETURNING `+pgSessionColumns,
		sessionID, ns.UserID, ns.Platform.String(), now,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionExists, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return &sess, nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	sess, err := scanPgSession(conn.QueryRow(ctx,
		`DELETE FROM sessions WHERE session_id = $1 RETURNING `+pgSessionColumns, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete session: %w", err)
	}
	return &sess, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, sessionID string, page domain.PageRequest) ([]domain.Message, int64, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer conn.Release()

	var total int64
	err = conn.QueryRow(ctx, `SELECT count(*) FROM messages WHERE session_id = $1`, sessionID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	rows, err := conn.Query(ctx,
		`SELECT id::text, session_id::text, message, sender, resource, created_at, updated_at
		 FROM messages WHERE session_id = $1
		 ORDER BY created_at ASC, id
		 LIMIT $2 OFFSET $3`,
		sessionID, page.Limit(), page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var (
			m                  domain.Message
			sender             string
			resource           []byte
			createdAt, updated pgtype.Timestamptz
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Message, &sender, &resource, &createdAt, &updated); err != nil {
			return nil, 0, fmt.Errorf("scan message: %w", err)
		}
		m.Sender = domain.Sender(sender)
		m.CreatedAt = pgTimestamptzToTime(createdAt)
		m.UpdatedAt = pgTimestamptzToTime(updated)
		if m.Resource, err = unmarshalResource(resource); err != nil {
			return nil, 0, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, total, nil
}

// CreateMessages inserts the batch in one transaction: either every message
// is stored or none is.
func (s *PostgresStore) CreateMessages(ctx context.Context, sessionID string, msgs []domain.NewMessage) ([]domain.Message, error) {
	if len(msgs) == 0 {
		return []domain.Message{}, nil
	}

	conn, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	base := nowUTC()
	created := make([]domain.Message, 0, len(msgs))
	for i, nm := range msgs {
		resource, err := marshalResource(nm.Resource)
		if err != nil {
			return nil, err
		}
		ts := batchTime(base, i)
		id := uuid.New().String()

		_, err = tx.Exec(ctx,
			`INSERT INTO messages (id, session_id, message, sender, resource, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $6)`,
			id, sessionID, nm.Message, nm.Sender.String(), resource, timeToPgTimestamptz(ts),
		)
		if err != nil {
			return nil, fmt.Errorf("insert message %d: %w", i, err)
		}

		created = append(created, domain.Message{
			ID:        id,
			SessionID: sessionID,
			Message:   nm.Message,
			Sender:    nm.Sender,
			Resource:  nm.Resource,
			CreatedAt: ts,
			UpdatedAt: ts,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return created, nil
}
