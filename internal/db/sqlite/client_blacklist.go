package sqlite

import (
	"context"
	"fmt"
	"time"
)

func (s *sqliteClient) ListBlacklistWords(ctx context.Context) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	words := []string{}
	err := s.db.SelectContext(ctx, &words, `SELECT word FROM blacklist_words ORDER BY word`)
	if err != nil {
		return nil, fmt.Errorf("list blacklist words: %w", err)
	}
	return words, nil
}

func (s *sqliteClient) AddBlacklistWord(ctx context.Context, word string, addedBy int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	query := `
		INSERT INTO blacklist_words (word, added_by, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(word) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query, word, addedBy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("add blacklist word: %w", err)
	}
	return nil
}

func (s *sqliteClient) RemoveBlacklistWord(ctx context.Context, word string) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM blacklist_words WHERE word = ?`, word)
	if err != nil {
		return false, fmt.Errorf("remove blacklist word: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove blacklist word rows: %w", err)
	}
	return n > 0, nil
}
