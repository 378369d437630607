package database

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/edgard/wagate/internal/errors"
)

// Store defines the data access interface for send history.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// RecordSentMessage inserts a new send-history record.
	RecordSentMessage(ctx context.Context, msg *SentMessage) error

	// RecentMessages retrieves the most recent 'limit' sends, newest first.
	// An empty chatID returns sends across all chats.
	RecentMessages(ctx context.Context, chatID string, limit int) ([]SentMessage, error)
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) RecordSentMessage(ctx context.Context, msg *SentMessage) error {
	if msg == nil {
		return fmt.Errorf("cannot record nil message")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("message must have a non-empty chat_id")
	}
	msg.CreatedAt = time.Now().UTC()

	query := `
        INSERT INTO sent_messages (created_at, chat_id, chat_name, body, media_mime, media_name)
        VALUES (:created_at, :chat_id, :chat_name, :body, :media_mime, :media_name);
    `

	result, err := s.db.NamedExecContext(ctx, query, msg)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error recording sent message", "chat_id", msg.ChatID, "error", err)
		return apperrors.Database("failed to record sent message", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		msg.ID = uint(id) //nolint:gosec // row ids stay well within uint range
	}
	return nil
}

func (s *sqlxStore) RecentMessages(ctx context.Context, chatID string, limit int) ([]SentMessage, error) {
	if limit <= 0 {
		limit = 50
	}

	var (
		msgs []SentMessage
		err  error
	)
	if chatID == "" {
		err = s.db.SelectContext(ctx, &msgs,
			`SELECT * FROM sent_messages ORDER BY created_at DESC, id DESC LIMIT ?;`, limit)
	} else {
		err = s.db.SelectContext(ctx, &msgs,
			`SELECT * FROM sent_messages WHERE chat_id = ? ORDER BY created_at DESC, id DESC LIMIT ?;`, chatID, limit)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error fetching send history", "chat_id", chatID, "error", err)
		return nil, apperrors.Database("failed to fetch send history", err)
	}
	return msgs, nil
}
