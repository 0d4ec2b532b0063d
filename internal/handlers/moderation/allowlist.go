package handlers

import "sync"

// AllowedChats is the set of chats moderation is authorized to touch. The
// pipeline treats membership as a boolean gate. Replace swaps the whole set
// at once, so concurrent readers never observe a partial reload.
type AllowedChats struct {
	mu  sync.RWMutex
	ids map[int64]struct{}
}

func NewAllowedChats(ids ...int64) *AllowedChats {
	a := &AllowedChats{ids: make(map[int64]struct{})}
	a.Replace(ids)
	return a
}

func (a *AllowedChats) Replace(ids []int64) {
	next := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}
	a.mu.Lock()
	a.ids = next
	a.mu.Unlock()
}

func (a *AllowedChats) Contains(chatID int64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.ids[chatID]
	return ok
}

func (a *AllowedChats) Size() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.ids)
}
