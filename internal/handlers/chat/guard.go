package handlers

import (
	"context"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/guardbot/guardbot/internal/bot"
	"github.com/guardbot/guardbot/internal/db"
	moderation "github.com/guardbot/guardbot/internal/handlers/moderation"
	"github.com/guardbot/guardbot/internal/observability"
	"github.com/guardbot/guardbot/internal/policy/permissions"
)

type incidentSink interface {
	Enqueue(incident *db.Incident)
}

// Guard moderates group messages: flood suppression first, then the spam
// rule pipeline with strike escalation for anything that matches. Admins and
// the operator are exempt, and only allowed chats are touched at all.
type Guard struct {
	s        bot.Service
	flood    *moderation.FloodGuard
	pipeline *moderation.Pipeline
	enforcer *moderation.Enforcer
	allowed  *moderation.AllowedChats
	journal  incidentSink
	members  *permissions.MemberCache
	operator int64
	tracer   trace.Tracer
}

func NewGuard(
	s bot.Service,
	flood *moderation.FloodGuard,
	pipeline *moderation.Pipeline,
	enforcer *moderation.Enforcer,
	allowed *moderation.AllowedChats,
	journal incidentSink,
	members *permissions.MemberCache,
	operatorID int64,
) *Guard {
	g := &Guard{
		s:        s,
		flood:    flood,
		pipeline: pipeline,
		enforcer: enforcer,
		allowed:  allowed,
		journal:  journal,
		members:  members,
		operator: operatorID,
		tracer:   otel.Tracer("guardbot/guard"),
	}
	g.getLogEntry().Debug("created new guard")
	return g
}

func (g *Guard) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	if err := g.validateUpdate(u, chat, user); err != nil {
		return false, err
	}
	msg := u.Message
	if msg == nil {
		return true, nil
	}
	if chat.IsPrivate() {
		return true, nil
	}

	entry := g.getLogEntry().WithFields(log.Fields{
		"chat_id": chat.ID,
		"user_id": user.ID,
	})

	ctx, span := g.tracer.Start(ctx, "moderate_message", trace.WithAttributes(
		attribute.Int64("chat.id", chat.ID),
		attribute.Int64("user.id", user.ID),
	))
	defer span.End()

	observe := observability.StartMessageTimer()

	if !g.flood.Admit(user.ID, time.Now()) {
		span.AddEvent("flood_rejected")
		g.suppressFlood(ctx, entry, chat.ID, user.ID, msg.MessageID)
		observe("flood_rejected")
		return false, nil
	}

	if !g.allowed.Contains(chat.ID) {
		observability.RecordMessage("skipped")
		observe("skipped")
		return true, nil
	}

	settings, err := g.getOrCreateSettings(ctx, chat)
	if err != nil {
		return false, err
	}
	if settings != nil && !settings.Enabled {
		observability.RecordMessage("skipped")
		observe("skipped")
		return true, nil
	}

	if g.isExempt(ctx, chat.ID, user) {
		span.AddEvent("exempt")
		observability.RecordMessage("skipped")
		observe("skipped")
		return true, nil
	}

	verdict := g.pipeline.Evaluate(ctx, guardMessage(msg, chat, user))
	observability.RecordMessage("admitted")
	if verdict == nil {
		observe("clean")
		return true, nil
	}

	span.SetAttributes(attribute.String("verdict.rule", verdict.Rule))
	observability.RecordSpamVerdict(verdict.Rule)

	limit := moderation.DefaultWarningsLimit
	if settings != nil && settings.WarningsLimit > 0 {
		limit = settings.WarningsLimit
	}
	offense := &moderation.Offense{
		ChatID:        chat.ID,
		UserID:        user.ID,
		MessageID:     msg.MessageID,
		UserMention:   bot.MentionForUser(user),
		Rule:          verdict.Rule,
		Reason:        verdict.Reason,
		Language:      g.s.GetLanguage(ctx, chat.ID, user),
		WarningsLimit: limit,
	}

	outcome, err := g.enforcer.Enforce(ctx, offense)
	if err != nil {
		entry.WithError(err).Error("cant enforce verdict")
	}
	if outcome != nil {
		g.recordOutcome(chat.ID, user.ID, msg.MessageID, verdict, outcome)
	}
	observe("spam")
	return false, nil
}

// suppressFlood deletes a rapid-fire message without warning or striking the
// user. Continuous flooding keeps extending the suppression window.
func (g *Guard) suppressFlood(ctx context.Context, entry *log.Entry, chatID int64, userID int64, messageID int) {
	observability.RecordMessage("flood_rejected")
	if err := g.enforcer.Suppress(ctx, chatID, messageID); err != nil {
		entry.WithError(err).Warn("cant delete flood message")
	} else {
		observability.RecordEnforcement("delete")
	}
	g.journal.Enqueue(&db.Incident{
		ChatID:    chatID,
		UserID:    userID,
		MessageID: messageID,
		Rule:      moderation.RuleFlood,
		Action:    db.IncidentActionFlood,
	})
	observability.Logger.Info("flood message deleted",
		zap.Int64("chat_id", chatID),
		zap.Int64("user_id", userID),
	)
}

func (g *Guard) recordOutcome(chatID int64, userID int64, messageID int, verdict *moderation.Verdict, outcome *moderation.Outcome) {
	action := db.IncidentActionDeleted
	switch {
	case outcome.Banned:
		action = db.IncidentActionBanned
	case outcome.Warned:
		action = db.IncidentActionWarned
	}
	if outcome.Deleted {
		observability.RecordEnforcement("delete")
	}
	if outcome.Warned {
		observability.RecordEnforcement("warn")
	}
	if outcome.Banned {
		observability.RecordEnforcement("ban")
	}
	g.journal.Enqueue(&db.Incident{
		ChatID:    chatID,
		UserID:    userID,
		MessageID: messageID,
		Rule:      verdict.Rule,
		Reason:    verdict.Reason,
		Action:    action,
		Warnings:  outcome.Count,
	})
	observability.Logger.Info("spam enforced",
		zap.Int64("chat_id", chatID),
		zap.Int64("user_id", userID),
		zap.String("rule", verdict.Rule),
		zap.String("action", action),
		zap.Int("warnings", outcome.Count),
	)
}

// isExempt reports whether moderation must leave the user alone. The operator
// always is, even when the member lookup fails.
func (g *Guard) isExempt(ctx context.Context, chatID int64, user *api.User) bool {
	if g.operator != 0 && user.ID == g.operator {
		return true
	}
	member, err := g.members.Get(ctx, chatID, user.ID)
	if err != nil {
		g.getLogEntry().WithError(err).WithFields(log.Fields{
			"chat_id": chatID,
			"user_id": user.ID,
		}).Warn("cant get chat member, treating as regular user")
		return false
	}
	return permissions.IsAdministrator(member)
}

// guardMessage flattens a Telegram message for the rule pipeline. A command
// message never counts as a mention, so /cmd@bot invocations survive rule
// two.
func guardMessage(msg *api.Message, chat *api.Chat, user *api.User) *moderation.Message {
	return &moderation.Message{
		ChatID:     chat.ID,
		UserID:     user.ID,
		MessageID:  msg.MessageID,
		Text:       bot.ExtractContentFromMessage(msg),
		HasLink:    bot.MessageHasLink(msg),
		HasMention: bot.MessageHasMention(msg) && !msg.IsCommand(),
		IsForward:  bot.MessageIsForwarded(msg),
	}
}

func (g *Guard) validateUpdate(u *api.Update, chat *api.Chat, user *api.User) error {
	if u == nil {
		return errors.New("nil update")
	}
	if u.Message != nil && (chat == nil || user == nil) {
		return errors.New("nil chat or user")
	}
	return nil
}

func (g *Guard) getOrCreateSettings(ctx context.Context, chat *api.Chat) (*db.Settings, error) {
	settings, err := g.s.GetSettings(ctx, chat.ID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = db.DefaultSettings(chat.ID)
		if err := g.s.SetSettings(ctx, settings); err != nil {
			return nil, err
		}
	}
	return settings, nil
}

func (g *Guard) getLogEntry() *log.Entry {
	return log.WithField("object", "Guard")
}
