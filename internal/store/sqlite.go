package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3" // SQLite driver
	"mindmate.io/companion/internal/apperr"
)

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", withPragmas(dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if isMemoryDSN(dataSourceName) {
		// every new connection would open its own empty database
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db, now: utcNow}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func withPragmas(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on&_busy_timeout=5000"
}

func isMemoryDSN(dsn string) bool {
	return strings.HasPrefix(dsn, ":memory:") ||
		strings.HasPrefix(dsn, "file::memory:") ||
		strings.Contains(dsn, "mode=memory")
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        username TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS sessions (
        id TEXT PRIMARY KEY, -- UUID
        user_id INTEGER NOT NULL,
        session_type TEXT NOT NULL CHECK (session_type IN ('general', 'topic', 'diagnosis')),
        topic TEXT,
        created_at DATETIME NOT NULL,
        ended_at DATETIME,
        FOREIGN KEY (user_id) REFERENCES users (id),
        CHECK ((session_type = 'topic') = (topic IS NOT NULL))
    );
    CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions (user_id, created_at);

    CREATE TABLE IF NOT EXISTS messages (
        id TEXT PRIMARY KEY, -- UUID; rowid keeps insertion order
        session_id TEXT NOT NULL,
        author TEXT NOT NULL CHECK (author IN ('user', 'assistant')),
        content TEXT NOT NULL,
        sentiment REAL,
        emotion TEXT,
        created_at DATETIME NOT NULL,
        FOREIGN KEY (session_id) REFERENCES sessions (id)
    );
    CREATE INDEX IF NOT EXISTS idx_messages_session ON messages (session_id, created_at);
    `
	_, err := s.db.Exec(schema)
	return err
}

func storageErr(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, apperr.ErrStorageUnavailable, err)
}

// User methods
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*User, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, "INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)", username, passwordHash, now)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, fmt.Errorf("%w: username %q is taken", apperr.ErrConflict, username)
		}
		return nil, storageErr("insert user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, storageErr("read user id", err)
	}
	return &User{ID: id, Username: username, PasswordHash: passwordHash, CreatedAt: now}, nil
}

func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, "SELECT id, username, password_hash, created_at FROM users WHERE username = ?", username).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %q", apperr.ErrNotFound, username)
		}
		return nil, storageErr("query user", err)
	}
	return &user, nil
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, "SELECT id, username, password_hash, created_at FROM users WHERE id = ?", id).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %d", apperr.ErrNotFound, id)
		}
		return nil, storageErr("query user", err)
	}
	return &user, nil
}

// Session methods
func (s *SQLiteStore) CreateSession(ctx context.Context, userID int64, sessionType SessionType, topic *string) (*Session, error) {
	session := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      sessionType,
		Topic:     topic,
		CreatedAt: s.now(),
	}
	_, err := s.db.ExecContext(ctx, "INSERT INTO sessions (id, user_id, session_type, topic, created_at) VALUES (?, ?, ?, ?, ?)",
		session.ID, session.UserID, string(session.Type), session.Topic, session.CreatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return nil, fmt.Errorf("%w: user %d", apperr.ErrNotFound, userID)
		}
		return nil, storageErr("insert session", err)
	}
	return session, nil
}

const sessionColumns = "id, user_id, session_type, topic, created_at, ended_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		session     Session
		sessionType string
		topic       sql.NullString
		endedAt     sql.NullTime
	)
	if err := row.Scan(&session.ID, &session.UserID, &sessionType, &topic, &session.CreatedAt, &endedAt); err != nil {
		return nil, err
	}
	session.Type = SessionType(sessionType)
	if topic.Valid {
		session.Topic = &topic.String
	}
	if endedAt.Valid {
		session.EndedAt = &endedAt.Time
	}
	return &session, nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: session %s", apperr.ErrNotFound, sessionID)
		}
		return nil, storageErr("get session", err)
	}
	return session, nil
}

// EndSession stamps ended_at once; later calls leave the first timestamp untouched.
func (s *SQLiteStore) EndSession(ctx context.Context, sessionID string) (*Session, error) {
	_, err := s.db.ExecContext(ctx, "UPDATE sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL", s.now(), sessionID)
	if err != nil {
		return nil, storageErr("end session", err)
	}
	return s.GetSession(ctx, sessionID)
}

func (s *SQLiteStore) ListOpenSessionIDs(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM sessions WHERE user_id = ? AND ended_at IS NULL", userID)
	if err != nil {
		return nil, storageErr("query open sessions", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr("scan session id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate open sessions", err)
	}
	return ids, nil
}

// Message methods
func (s *SQLiteStore) AppendMessage(ctx context.Context, in NewMessage) (*Message, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.GetSession(ctx, in.SessionID); err != nil {
		return nil, err
	}

	msg := &Message{
		ID:        uuid.NewString(),
		SessionID: in.SessionID,
		Author:    in.Author,
		Content:   in.Content,
		Sentiment: in.Sentiment,
		Emotion:   in.Emotion,
		CreatedAt: s.now(),
	}
	_, err := s.db.ExecContext(ctx, "INSERT INTO messages (id, session_id, author, content, sentiment, emotion, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		msg.ID, msg.SessionID, string(msg.Author), msg.Content, msg.Sentiment, msg.Emotion, msg.CreatedAt)
	if err != nil {
		return nil, storageErr("insert message", err)
	}
	return msg, nil
}

const messageColumns = "m.id, m.session_id, m.author, m.content, m.sentiment, m.emotion, m.created_at"

func scanMessages(rows *sql.Rows) ([]Message, error) {
	messages := []Message{}
	for rows.Next() {
		var (
			msg       Message
			author    string
			sentiment sql.NullFloat64
			emotion   sql.NullString
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &author, &msg.Content, &sentiment, &emotion, &msg.CreatedAt); err != nil {
			return nil, storageErr("scan message row", err)
		}
		msg.Author = Author(author)
		if sentiment.Valid {
			msg.Sentiment = &sentiment.Float64
		}
		if emotion.Valid {
			msg.Emotion = &emotion.String
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate messages", err)
	}
	return messages, nil
}

// ListMessagesBySession returns the session's messages oldest first; rowid breaks timestamp ties.
func (s *SQLiteStore) ListMessagesBySession(ctx context.Context, sessionID string) ([]Message, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+messageColumns+" FROM messages m WHERE m.session_id = ? ORDER BY m.created_at ASC, m.rowid ASC", sessionID)
	if err != nil {
		return nil, storageErr("query messages", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ListSessionsWithMessages returns the user's sessions newest first, each with its ordered messages.
func (s *SQLiteStore) ListSessionsWithMessages(ctx context.Context, userID int64) ([]SessionWithMessages, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE user_id = ? ORDER BY created_at DESC, rowid DESC", userID)
	if err != nil {
		return nil, storageErr("query sessions", err)
	}
	out := []SessionWithMessages{}
	index := make(map[string]int)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			rows.Close()
			return nil, storageErr("scan session row", err)
		}
		index[session.ID] = len(out)
		out = append(out, SessionWithMessages{Session: *session, Messages: []Message{}})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate sessions", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	msgRows, err := s.db.QueryContext(ctx, `
        SELECT `+messageColumns+`
        FROM messages m
        JOIN sessions s ON s.id = m.session_id
        WHERE s.user_id = ?
        ORDER BY m.created_at ASC, m.rowid ASC
    `, userID)
	if err != nil {
		return nil, storageErr("query messages", err)
	}
	defer msgRows.Close()

	messages, err := scanMessages(msgRows)
	if err != nil {
		return nil, err
	}
	for _, msg := range messages {
		i, ok := index[msg.SessionID]
		if !ok {
			continue
		}
		out[i].Messages = append(out[i].Messages, msg)
	}
	return out, nil
}
