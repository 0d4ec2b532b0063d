package handlers

import (
	"context"
	"strings"
	"sync"

	"github.com/guardbot/guardbot/internal/utils/text"
)

type blacklistSource interface {
	ListBlacklistWords(ctx context.Context) ([]string, error)
}

type blacklistEntry struct {
	raw    string
	folded string
}

// Blacklist keeps an in-memory snapshot of forbidden words. Matching is
// naive substring over homoglyph-folded, lower-cased text: false positives
// are preferred over missed spam. Replace swaps the whole snapshot, so
// readers never see a partial reload.
type Blacklist struct {
	mu      sync.RWMutex
	entries []blacklistEntry
}

func NewBlacklist(words ...string) *Blacklist {
	b := &Blacklist{}
	b.Replace(words)
	return b
}

// Replace installs a new word list, dropping empty entries.
func (b *Blacklist) Replace(words []string) {
	entries := make([]blacklistEntry, 0, len(words))
	for _, word := range words {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		entries = append(entries, blacklistEntry{
			raw:    word,
			folded: normalizeForMatch(word),
		})
	}
	b.mu.Lock()
	b.entries = entries
	b.mu.Unlock()
}

// Reload replaces the snapshot with the store's current word list.
func (b *Blacklist) Reload(ctx context.Context, source blacklistSource) error {
	words, err := source.ListBlacklistWords(ctx)
	if err != nil {
		return err
	}
	b.Replace(words)
	return nil
}

// Match returns the first blacklisted word contained in the text, or "".
func (b *Blacklist) Match(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	folded := normalizeForMatch(content)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, entry := range b.entries {
		if strings.Contains(folded, entry.folded) {
			return entry.raw
		}
	}
	return ""
}

func (b *Blacklist) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Folding both the stored words and the message text keeps native Cyrillic
// words matching while also catching Latin words obfuscated with lookalikes.
func normalizeForMatch(s string) string {
	return text.FoldHomoglyphs(strings.ToLower(s))
}
