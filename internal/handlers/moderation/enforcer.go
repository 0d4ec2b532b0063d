package handlers

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/guardbot/guardbot/internal/i18n"
)

// Gateway is the slice of platform operations enforcement needs. The chat
// guard binds it to the Telegram API.
type Gateway interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	BanUser(ctx context.Context, chatID, userID int64) error
	SendMessage(ctx context.Context, chatID int64, content string) error
}

// Offense is a spam verdict bound to a concrete message. UserMention is the
// ready-to-send display string for addressing the offender, built by the
// caller so this package stays free of platform formatting.
type Offense struct {
	ChatID        int64
	UserID        int64
	MessageID     int
	UserMention   string
	Rule          string
	Reason        string
	Language      string
	WarningsLimit int
}

// Outcome reports what the state machine decided. Banned reflects the
// decision even when the ban call itself failed, which the returned error
// carries.
type Outcome struct {
	Deleted bool
	Warned  bool
	Banned  bool
	Count   int
	Limit   int
}

// Enforcer walks an offense through delete, warn, ban.
type Enforcer struct {
	gateway Gateway
	strikes *Strikes
	logger  *log.Entry
}

func NewEnforcer(gateway Gateway, strikes *Strikes, logger *log.Entry) *Enforcer {
	return &Enforcer{
		gateway: gateway,
		strikes: strikes,
		logger:  logger,
	}
}

// Enforce deletes the offending message, records a strike and either warns
// the user or bans them at the limit. The strike is recorded even when the
// delete fails, otherwise a user in a chat where the bot lacks delete rights
// could never be banned.
func (e *Enforcer) Enforce(ctx context.Context, offense *Offense) (*Outcome, error) {
	if offense == nil {
		return nil, fmt.Errorf("nil offense")
	}
	entry := e.logger.WithFields(log.Fields{
		"chat_id": offense.ChatID,
		"user_id": offense.UserID,
		"rule":    offense.Rule,
	})

	outcome := &Outcome{}
	if err := e.gateway.DeleteMessage(ctx, offense.ChatID, offense.MessageID); err != nil {
		entry.WithError(err).Error("cant delete message")
	} else {
		outcome.Deleted = true
	}

	strike := e.strikes.Record(offense.ChatID, offense.UserID, offense.WarningsLimit)
	outcome.Count = strike.Count
	outcome.Limit = strike.Limit

	if strike.Banned {
		outcome.Banned = true
		if err := e.gateway.BanUser(ctx, offense.ChatID, offense.UserID); err != nil {
			return outcome, fmt.Errorf("ban user %d in chat %d: %w", offense.UserID, offense.ChatID, err)
		}
		entry.Info("banned user")
		e.send(ctx, entry, offense.ChatID, fmt.Sprintf(
			i18n.Get("⚠️ %s has been banned after %d warnings.", offense.Language),
			offense.UserMention, strike.Limit,
		))
		return outcome, nil
	}

	outcome.Warned = true
	e.send(ctx, entry, offense.ChatID, fmt.Sprintf(
		i18n.Get("Hey %s, please don't spam. %s (Warning %d/%d)", offense.Language),
		offense.UserMention,
		i18n.Get(offense.Reason, offense.Language),
		strike.Count, strike.Limit,
	))
	return outcome, nil
}

// Suppress deletes a flood message without striking or warning the user.
func (e *Enforcer) Suppress(ctx context.Context, chatID int64, messageID int) error {
	return e.gateway.DeleteMessage(ctx, chatID, messageID)
}

func (e *Enforcer) send(ctx context.Context, entry *log.Entry, chatID int64, content string) {
	if err := e.gateway.SendMessage(ctx, chatID, content); err != nil {
		entry.WithError(err).Warn("cant send moderation notice")
	}
}
