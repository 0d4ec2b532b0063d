package permissions

import (
	"context"
	"sync"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
)

const defaultMemberCacheTTL = 5 * time.Minute

// MemberLookup is the slice of the Bot API the cache needs.
type MemberLookup interface {
	GetChatMember(config api.GetChatMemberConfig) (api.ChatMember, error)
}

type memberKey struct {
	chatID int64
	userID int64
}

type cachedMember struct {
	member    api.ChatMember
	refreshed time.Time
}

// MemberCache remembers chat member lookups for a short window so privilege
// checks on busy chats do not hammer the Bot API. A failed refresh falls back
// to the stale entry when one exists.
type MemberCache struct {
	lookup MemberLookup
	ttl    time.Duration

	mu      sync.Mutex
	members map[memberKey]cachedMember
}

func NewMemberCache(lookup MemberLookup, ttl time.Duration) *MemberCache {
	if ttl <= 0 {
		ttl = defaultMemberCacheTTL
	}
	return &MemberCache{
		lookup:  lookup,
		ttl:     ttl,
		members: make(map[memberKey]cachedMember),
	}
}

// Get returns the chat member, served from cache within the TTL.
func (c *MemberCache) Get(ctx context.Context, chatID int64, userID int64) (*api.ChatMember, error) {
	key := memberKey{chatID: chatID, userID: userID}
	now := time.Now()

	c.mu.Lock()
	cached, ok := c.members[key]
	c.mu.Unlock()
	if ok && now.Sub(cached.refreshed) < c.ttl {
		return &cached.member, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	member, err := c.lookup.GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			ChatConfig: api.ChatConfig{
				ChatID: chatID,
			},
			UserID: userID,
		},
	})
	if err != nil {
		if ok {
			return &cached.member, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.members[key] = cachedMember{member: member, refreshed: now}
	c.mu.Unlock()
	return &member, nil
}

// Invalidate drops the cached entry for one member.
func (c *MemberCache) Invalidate(chatID int64, userID int64) {
	c.mu.Lock()
	delete(c.members, memberKey{chatID: chatID, userID: userID})
	c.mu.Unlock()
}
