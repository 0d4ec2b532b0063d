package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/guardbot/guardbot/internal/db"
)

func (s *sqliteClient) GetSettings(ctx context.Context, chatID int64) (*db.Settings, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	settings := &db.Settings{}
	err := s.db.GetContext(ctx, settings,
		`SELECT id, enabled, language, warnings_limit FROM chats WHERE id = ?`, chatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("get settings for chat %d: %w", chatID, err)
	}
	return settings, nil
}

func (s *sqliteClient) SetSettings(ctx context.Context, settings *db.Settings) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := `
		INSERT INTO chats (id, enabled, language, warnings_limit)
		VALUES (:id, :enabled, :language, :warnings_limit)
		ON CONFLICT(id) DO UPDATE SET
		enabled = excluded.enabled,
		language = excluded.language,
		warnings_limit = excluded.warnings_limit
	`
	if _, err := s.db.NamedExecContext(ctx, query, settings); err != nil {
		return fmt.Errorf("set settings for chat %d: %w", settings.ID, err)
	}
	return nil
}

func (s *sqliteClient) ListAllowedChats(ctx context.Context) ([]db.AllowedChat, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	chats := []db.AllowedChat{}
	err := s.db.SelectContext(ctx, &chats,
		`SELECT id, title, added_by, created_at FROM allowed_chats ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list allowed chats: %w", err)
	}
	return chats, nil
}

func (s *sqliteClient) AllowChat(ctx context.Context, chat db.AllowedChat) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO allowed_chats (id, title, added_by, created_at)
		VALUES (:id, :title, :added_by, :created_at)
		ON CONFLICT(id) DO UPDATE SET
		title = excluded.title
	`
	if _, err := s.db.NamedExecContext(ctx, query, chat); err != nil {
		return fmt.Errorf("allow chat %d: %w", chat.ID, err)
	}
	return nil
}

func (s *sqliteClient) RevokeChat(ctx context.Context, chatID int64) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM allowed_chats WHERE id = ?`, chatID)
	if err != nil {
		return false, fmt.Errorf("revoke chat %d: %w", chatID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke chat rows: %w", err)
	}
	return n > 0, nil
}
