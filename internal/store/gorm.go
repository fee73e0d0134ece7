package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"mindmate.io/companion/internal/apperr"
)

// Records carry a serial Seq as primary key so equal timestamps still sort by insertion.
// The belongs-to fields exist only to declare foreign keys; inserts omit them.
type userRecord struct {
	ID           int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Username     string    `gorm:"uniqueIndex:idx_users_username;size:100;not null;column:username"`
	PasswordHash string    `gorm:"not null;column:password_hash"`
	CreatedAt    time.Time `gorm:"not null;column:created_at"`
}

func (userRecord) TableName() string { return "users" }

type sessionRecord struct {
	Seq       int64      `gorm:"primaryKey;autoIncrement;column:seq"`
	ID        string     `gorm:"uniqueIndex:idx_sessions_id;size:36;not null;column:id"`
	UserID    int64      `gorm:"index:idx_sessions_user;not null;column:user_id"`
	Type      string     `gorm:"size:20;not null;column:session_type;check:chk_sessions_type,session_type IN ('general','topic','diagnosis')"`
	Topic     *string    `gorm:"size:100;column:topic;check:chk_sessions_topic,(session_type = 'topic') = (topic IS NOT NULL)"`
	CreatedAt time.Time  `gorm:"not null;column:created_at"`
	EndedAt   *time.Time `gorm:"column:ended_at"`

	User userRecord `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
}

func (sessionRecord) TableName() string { return "sessions" }

func (r *sessionRecord) toSession() *Session {
	return &Session{
		ID:        r.ID,
		UserID:    r.UserID,
		Type:      SessionType(r.Type),
		Topic:     r.Topic,
		CreatedAt: r.CreatedAt,
		EndedAt:   r.EndedAt,
	}
}

type messageRecord struct {
	Seq       int64     `gorm:"primaryKey;autoIncrement;column:seq"`
	ID        string    `gorm:"uniqueIndex:idx_messages_id;size:36;not null;column:id"`
	SessionID string    `gorm:"index:idx_messages_session;size:36;not null;column:session_id"`
	Author    string    `gorm:"size:20;not null;column:author;check:chk_messages_author,author IN ('user','assistant')"`
	Content   string    `gorm:"type:text;not null;column:content"`
	Sentiment *float64  `gorm:"column:sentiment"`
	Emotion   *string   `gorm:"size:50;column:emotion"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`

	Session sessionRecord `gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
}

func (messageRecord) TableName() string { return "messages" }

func (r *messageRecord) toMessage() Message {
	return Message{
		ID:        r.ID,
		SessionID: r.SessionID,
		Author:    Author(r.Author),
		Content:   r.Content,
		Sentiment: r.Sentiment,
		Emotion:   r.Emotion,
		CreatedAt: r.CreatedAt,
	}
}

// GormStore is the relational store for PostgreSQL deployments. It accepts any
// GORM dialector so the same code runs against SQLite in tests.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewPostgresStore(dsn string) (*GormStore, error) {
	return NewGormStore(postgres.Open(dsn))
}

func NewGormStore(dialector gorm.Dialector) (*GormStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.AutoMigrate(&userRecord{}, &sessionRecord{}, &messageRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &GormStore{db: db, now: utcNow}, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) CreateUser(ctx context.Context, username, passwordHash string) (*User, error) {
	rec := userRecord{Username: username, PasswordHash: passwordHash, CreatedAt: s.now()}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: username %q is taken", apperr.ErrConflict, username)
		}
		return nil, storageErr("insert user", err)
	}
	return &User{ID: rec.ID, Username: rec.Username, PasswordHash: rec.PasswordHash, CreatedAt: rec.CreatedAt}, nil
}

func (s *GormStore) getUser(ctx context.Context, query string, arg any) (*User, error) {
	var rec userRecord
	if err := s.db.WithContext(ctx).Where(query, arg).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %v", apperr.ErrNotFound, arg)
		}
		return nil, storageErr("query user", err)
	}
	return &User{ID: rec.ID, Username: rec.Username, PasswordHash: rec.PasswordHash, CreatedAt: rec.CreatedAt}, nil
}

func (s *GormStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.getUser(ctx, "username = ?", username)
}

func (s *GormStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return s.getUser(ctx, "id = ?", id)
}

func (s *GormStore) CreateSession(ctx context.Context, userID int64, sessionType SessionType, topic *string) (*Session, error) {
	if _, err := s.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	rec := sessionRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      string(sessionType),
		Topic:     topic,
		CreatedAt: s.now(),
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return nil, fmt.Errorf("%w: user %d", apperr.ErrNotFound, userID)
		}
		return nil, storageErr("insert session", err)
	}
	return rec.toSession(), nil
}

func (s *GormStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var rec sessionRecord
	if err := s.db.WithContext(ctx).Where("id = ?", sessionID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: session %s", apperr.ErrNotFound, sessionID)
		}
		return nil, storageErr("get session", err)
	}
	return rec.toSession(), nil
}

func (s *GormStore) EndSession(ctx context.Context, sessionID string) (*Session, error) {
	err := s.db.WithContext(ctx).Model(&sessionRecord{}).
		Where("id = ? AND ended_at IS NULL", sessionID).
		Update("ended_at", s.now()).Error
	if err != nil {
		return nil, storageErr("end session", err)
	}
	return s.GetSession(ctx, sessionID)
}

func (s *GormStore) ListOpenSessionIDs(ctx context.Context, userID int64) ([]string, error) {
	ids := []string{}
	err := s.db.WithContext(ctx).Model(&sessionRecord{}).
		Where("user_id = ? AND ended_at IS NULL", userID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, storageErr("query open sessions", err)
	}
	return ids, nil
}

func (s *GormStore) AppendMessage(ctx context.Context, in NewMessage) (*Message, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.GetSession(ctx, in.SessionID); err != nil {
		return nil, err
	}
	rec := messageRecord{
		ID:        uuid.NewString(),
		SessionID: in.SessionID,
		Author:    string(in.Author),
		Content:   in.Content,
		Sentiment: in.Sentiment,
		Emotion:   in.Emotion,
		CreatedAt: s.now(),
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return nil, fmt.Errorf("%w: session %s", apperr.ErrNotFound, in.SessionID)
		}
		return nil, storageErr("insert message", err)
	}
	msg := rec.toMessage()
	return &msg, nil
}

func (s *GormStore) ListMessagesBySession(ctx context.Context, sessionID string) ([]Message, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	var recs []messageRecord
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, seq ASC").
		Find(&recs).Error
	if err != nil {
		return nil, storageErr("query messages", err)
	}
	messages := make([]Message, 0, len(recs))
	for i := range recs {
		messages = append(messages, recs[i].toMessage())
	}
	return messages, nil
}

func (s *GormStore) ListSessionsWithMessages(ctx context.Context, userID int64) ([]SessionWithMessages, error) {
	var sessions []sessionRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, seq DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, storageErr("query sessions", err)
	}
	out := make([]SessionWithMessages, 0, len(sessions))
	if len(sessions) == 0 {
		return out, nil
	}

	index := make(map[string]int, len(sessions))
	for i := range sessions {
		index[sessions[i].ID] = len(out)
		out = append(out, SessionWithMessages{Session: *sessions[i].toSession(), Messages: []Message{}})
	}

	var msgs []messageRecord
	err = s.db.WithContext(ctx).
		Select("messages.*").
		Joins("JOIN sessions ON sessions.id = messages.session_id").
		Where("sessions.user_id = ?", userID).
		Order("messages.created_at ASC, messages.seq ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, storageErr("query messages", err)
	}
	for i := range msgs {
		pos, ok := index[msgs[i].SessionID]
		if !ok {
			continue
		}
		out[pos].Messages = append(out[pos].Messages, msgs[i].toMessage())
	}
	return out, nil
}
