package handlers

import (
	"sync"
	"testing"
)

func TestStrikesEscalateToBan(t *testing.T) {
	t.Parallel()

	strikes := NewStrikes()

	first := strikes.Record(10, 1, 3)
	if first.Banned || first.Count != 1 || first.Limit != 3 {
		t.Fatalf("unexpected first outcome: %+v", first)
	}
	second := strikes.Record(10, 1, 3)
	if second.Banned || second.Count != 2 {
		t.Fatalf("unexpected second outcome: %+v", second)
	}
	third := strikes.Record(10, 1, 3)
	if !third.Banned || third.Count != 3 {
		t.Fatalf("unexpected third outcome: %+v", third)
	}

	if got := strikes.Count(10, 1); got != 0 {
		t.Fatalf("ban should clear the counter: got %d want %d", got, 0)
	}
	rejoined := strikes.Record(10, 1, 3)
	if rejoined.Banned || rejoined.Count != 1 {
		t.Fatalf("user after ban should start clean: %+v", rejoined)
	}
}

func TestStrikesChatsAreIndependent(t *testing.T) {
	t.Parallel()

	strikes := NewStrikes()
	strikes.Record(10, 1, 3)
	strikes.Record(10, 1, 3)

	other := strikes.Record(20, 1, 3)
	if other.Count != 1 {
		t.Fatalf("warnings must not leak across chats: %+v", other)
	}
	if got := strikes.Count(10, 1); got != 2 {
		t.Fatalf("unexpected count in original chat: got %d want %d", got, 2)
	}
}

func TestStrikesCustomLimit(t *testing.T) {
	t.Parallel()

	strikes := NewStrikes()

	immediate := strikes.Record(10, 1, 1)
	if !immediate.Banned || immediate.Count != 1 || immediate.Limit != 1 {
		t.Fatalf("limit of one should ban on first offense: %+v", immediate)
	}

	fallback := strikes.Record(10, 2, 0)
	if fallback.Limit != DefaultWarningsLimit {
		t.Fatalf("unexpected fallback limit: got %d want %d", fallback.Limit, DefaultWarningsLimit)
	}
}

func TestStrikesConcurrentRecord(t *testing.T) {
	t.Parallel()

	strikes := NewStrikes()

	const users = 50
	var wg sync.WaitGroup
	for u := 1; u <= users; u++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			strikes.Record(10, userID, 3)
			strikes.Record(10, userID, 3)
		}(int64(u))
	}
	wg.Wait()

	for u := 1; u <= users; u++ {
		if got := strikes.Count(10, int64(u)); got != 2 {
			t.Fatalf("unexpected count for user %d: got %d want %d", u, got, 2)
		}
	}
}
