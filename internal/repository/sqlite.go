package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/set-night/agentchat/internal/domain"
)

// SQLiteStore is the single-file backend used for local runs and tests.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path. Foreign
// keys, busy timeout and WAL are set per connection through the DSN.
func NewSQLiteStore(ctx context.Context, path string, pc PoolConfig) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if pc.MaxConns > 0 {
		db.SetMaxOpenConns(int(pc.MaxConns))
	}
	if pc.MinConns > 0 {
		db.SetMaxIdleConns(int(pc.MinConns))
	}
	db.SetConnMaxLifetime(pc.MaxConnLifetime)
	db.SetConnMaxIdleTime(pc.MaxConnIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger := slog.Default().With("component", "store")
	logger.Info("sqlite store opened", "path", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Migrate applies migrationsFS through the already open handle.
func (s *SQLiteStore) Migrate(_ context.Context, migrationsFS fs.FS) error {
	src, err := iofs.New(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// m.Close would close s.db along with the driver.
	return applyMigrations(m)
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteSessionColumns = `session_id, user_id, platform, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSession(row rowScanner) (domain.Session, error) {
	var (
		sess               domain.Session
		platform           string
		createdAt, updated string
	)
	if err := row.Scan(&sess.SessionID, &sess.UserID, &platform, &createdAt, &updated); err != nil {
		return domain.Session{}, err
	}
	sess.Platform = domain.Platform(platform)
	var err error
	if sess.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
		return domain.Session{}, err
	}
	if sess.UpdatedAt, err = parseSQLiteTime(updated); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, filter domain.SessionFilter, page domain.PageRequest) ([]domain.Session, int64, error) {
	const where = ` WHERE platform = ? AND (? = '' OR user_id = ?)`
	args := []any{filter.Platform.String(), filter.UserID, filter.UserID}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM sessions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteSessionColumns+` FROM sessions`+where+
			` ORDER BY created_at DESC, session_id LIMIT ? OFFSET ?`,
		append(args, page.Limit(), page.Offset())...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []domain.Session{}
	for rows.Next() {
		sess, err := scanSQLiteSession(rows)
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

func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := scanSQLiteSession(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteSessionColumns+` FROM sessions WHERE session_id = ?`, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

func (s *SQLiteStore) CreateSession(ctx context.Context, sessionID string, ns domain.NewSession) (*domain.Session, error) {
	now := formatSQLiteTime(nowUTC())
	sess, err := scanSQLiteSession(s.db.QueryRowContext(ctx,
		`INSERT INTO sessions (session_id, user_id, platform, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (session_id) DO NOTHING
		 RETURNING `+sqliteSessionColumns,
		sessionID, ns.UserID, ns.Platform.String(), now, now,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionExists, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return &sess, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := scanSQLiteSession(s.db.QueryRowContext(ctx,
		`DELETE FROM sessions WHERE session_id = ? RETURNING `+sqliteSessionColumns, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete session: %w", err)
	}
	return &sess, nil
}

func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID string, page domain.PageRequest) ([]domain.Message, int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM messages WHERE session_id = ?`, sessionID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, message, sender, resource, created_at, updated_at
		 FROM messages WHERE session_id = ?
		 ORDER BY created_at ASC, id
		 LIMIT ? OFFSET ?`,
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
			resource           sql.NullString
			createdAt, updated string
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Message, &sender, &resource, &createdAt, &updated); err != nil {
			return nil, 0, fmt.Errorf("scan message: %w", err)
		}
		m.Sender = domain.Sender(sender)
		if m.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
			return nil, 0, err
		}
		if m.UpdatedAt, err = parseSQLiteTime(updated); err != nil {
			return nil, 0, err
		}
		if resource.Valid {
			if m.Resource, err = unmarshalResource([]byte(resource.String)); err != nil {
				return nil, 0, err
			}
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, total, nil
}

func (s *SQLiteStore) CreateMessages(ctx context.Context, sessionID string, msgs []domain.NewMessage) ([]domain.Message, error) {
	if len(msgs) == 0 {
		return []domain.Message{}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	base := nowUTC()
	created := make([]domain.Message, 0, len(msgs))
	for i, nm := range msgs {
		raw, err := marshalResource(nm.Resource)
		if err != nil {
			return nil, err
		}
		var resource sql.NullString
		if raw != nil {
			resource = sql.NullString{String: string(raw), Valid: true}
		}
		ts := batchTime(base, i)
		id := uuid.New().String()

		_, err = tx.ExecContext(ctx,
			`INSERT INTO messages (id, session_id, message, sender, resource, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, sessionID, nm.Message, nm.Sender.String(), resource, formatSQLiteTime(ts), formatSQLiteTime(ts),
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

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return created, nil
}
