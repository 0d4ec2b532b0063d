package handlers

import "sync"

// DefaultWarningsLimit is the ban threshold used when a chat has no explicit
// limit configured.
const DefaultWarningsLimit = 3

type strikeKey struct {
	chatID int64
	userID int64
}

// StrikeOutcome describes the state after recording one violation.
type StrikeOutcome struct {
	Count  int
	Limit  int
	Banned bool
}

// Strikes is the per-chat warning counter behind the delete, warn, ban
// escalation. Reaching the limit clears the entry, so a user who returns
// after a ban starts clean.
type Strikes struct {
	mu     sync.Mutex
	counts map[strikeKey]int
}

func NewStrikes() *Strikes {
	return &Strikes{counts: make(map[strikeKey]int)}
}

// Record registers a violation and reports the resulting state. A limit of
// zero or less falls back to DefaultWarningsLimit.
func (s *Strikes) Record(chatID, userID int64, limit int) StrikeOutcome {
	if limit <= 0 {
		limit = DefaultWarningsLimit
	}

	key := strikeKey{chatID: chatID, userID: userID}
	s.mu.Lock()
	defer s.mu.Unlock()

	count := s.counts[key] + 1
	if count >= limit {
		delete(s.counts, key)
		return StrikeOutcome{Count: count, Limit: limit, Banned: true}
	}
	s.counts[key] = count
	return StrikeOutcome{Count: count, Limit: limit, Banned: false}
}

// Count returns the current warning count without recording anything.
func (s *Strikes) Count(chatID, userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[strikeKey{chatID: chatID, userID: userID}]
}
