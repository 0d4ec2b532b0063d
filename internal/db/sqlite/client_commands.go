package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/guardbot/guardbot/internal/db"
)

func (s *sqliteClient) ListCommands(ctx context.Context) ([]db.CustomCommand, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	commands := []db.CustomCommand{}
	err := s.db.SelectContext(ctx, &commands,
		`SELECT "trigger", response, created_by, created_at FROM custom_commands ORDER BY "trigger"`)
	if err != nil {
		return nil, fmt.Errorf("list custom commands: %w", err)
	}
	return commands, nil
}

func (s *sqliteClient) UpsertCommand(ctx context.Context, cmd db.CustomCommand) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO custom_commands ("trigger", response, created_by, created_at)
		VALUES (:trigger, :response, :created_by, :created_at)
		ON CONFLICT("trigger") DO UPDATE SET
		response = excluded.response,
		created_by = excluded.created_by
	`
	if _, err := s.db.NamedExecContext(ctx, query, cmd); err != nil {
		return fmt.Errorf("upsert command %q: %w", cmd.Trigger, err)
	}
	return nil
}

func (s *sqliteClient) RemoveCommand(ctx context.Context, trigger string) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM custom_commands WHERE "trigger" = ?`, trigger)
	if err != nil {
		return false, fmt.Errorf("remove command %q: %w", trigger, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove command rows: %w", err)
	}
	return n > 0, nil
}
