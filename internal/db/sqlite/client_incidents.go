package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/guardbot/guardbot/internal/db"
)

func (s *sqliteClient) RecordIncident(ctx context.Context, incident *db.Incident) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO incidents (id, chat_id, user_id, message_id, rule, reason, action, warnings, created_at)
		VALUES (:id, :chat_id, :user_id, :message_id, :rule, :reason, :action, :warnings, :created_at)
	`
	if _, err := s.db.NamedExecContext(ctx, query, incident); err != nil {
		return fmt.Errorf("record incident %s: %w", incident.ID, err)
	}
	return nil
}

func (s *sqliteClient) RecentIncidents(ctx context.Context, chatID int64, limit int) ([]db.Incident, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	incidents := []db.Incident{}
	err := s.db.SelectContext(ctx, &incidents, `
		SELECT id, chat_id, user_id, message_id, rule, reason, action, warnings, created_at
		FROM incidents
		WHERE chat_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent incidents for chat %d: %w", chatID, err)
	}
	return incidents, nil
}

func (s *sqliteClient) PruneIncidents(ctx context.Context, before time.Time) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM incidents WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune incidents before %s: %w", before, err)
	}
	pruned, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune incidents rows affected: %w", err)
	}
	return pruned, nil
}
