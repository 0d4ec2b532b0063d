package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"
	log "github.com/sirupsen/logrus"

	"github.com/guardbot/guardbot/internal/bot"
	"github.com/guardbot/guardbot/internal/db"
	"github.com/guardbot/guardbot/internal/handlers/base"
	moderation "github.com/guardbot/guardbot/internal/handlers/moderation"
	"github.com/guardbot/guardbot/internal/i18n"
	"github.com/guardbot/guardbot/internal/observability"
	"github.com/guardbot/guardbot/internal/policy/permissions"
)

// Admin is the moderation control surface. Chat admins manage the blacklist,
// custom commands and the chat language; the operator additionally controls
// the allowed chat set. Every mutation writes through to the store and then
// reloads the affected snapshot, so the guard picks the change up on the
// next message.
type Admin struct {
	*base.BaseHandler
	store     adminStore
	blacklist *moderation.Blacklist
	allowed   *moderation.AllowedChats
	commands  *bot.CommandSet
	members   *permissions.MemberCache
	operator  int64
	languages []string
	startedAt time.Time
}

type adminStore interface {
	ListBlacklistWords(ctx context.Context) ([]string, error)
	AddBlacklistWord(ctx context.Context, word string, addedBy int64) error
	RemoveBlacklistWord(ctx context.Context, word string) (bool, error)

	ListAllowedChats(ctx context.Context) ([]db.AllowedChat, error)
	AllowChat(ctx context.Context, chat db.AllowedChat) error
	RevokeChat(ctx context.Context, chatID int64) (bool, error)

	ListCommands(ctx context.Context) ([]db.CustomCommand, error)
	UpsertCommand(ctx context.Context, cmd db.CustomCommand) error
	RemoveCommand(ctx context.Context, trigger string) (bool, error)

	RecentIncidents(ctx context.Context, chatID int64, limit int) ([]db.Incident, error)
}

// recentIncidentsLimit caps the /incidents listing to one screenful.
const recentIncidentsLimit = 10

func NewAdmin(
	s bot.Service,
	blacklist *moderation.Blacklist,
	allowed *moderation.AllowedChats,
	commands *bot.CommandSet,
	members *permissions.MemberCache,
	operatorID int64,
) *Admin {
	a := &Admin{
		BaseHandler: base.NewBaseHandler(s, "Admin"),
		store:       s.GetDB(),
		blacklist:   blacklist,
		allowed:     allowed,
		commands:    commands,
		members:     members,
		operator:    operatorID,
		languages:   i18n.GetLanguagesList(),
		startedAt:   time.Now(),
	}
	a.GetLogger().Debug("created new admin handler")
	return a
}

func (a *Admin) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	if u == nil {
		return false, base.ErrNilUpdate
	}
	msg := u.Message
	if msg == nil || !msg.IsCommand() {
		return true, nil
	}
	if err := a.ValidateUpdate(u, chat, user); err != nil {
		return false, err
	}

	command := msg.Command()
	entry := a.GetLogger().WithFields(log.Fields{
		"chat_id": chat.ID,
		"user_id": user.ID,
		"command": command,
	})

	switch command {
	case "addword", "delword", "listwords", "addcommand", "delcommand", "listcommands", "setlang", "incidents":
		if !a.isAuthorized(ctx, chat, user) {
			entry.Debug("unauthorized, ignoring command")
			return true, nil
		}
	case "allowchat", "revokechat", "status":
		if !a.isOperator(user) {
			entry.Debug("not the operator, ignoring command")
			return true, nil
		}
	default:
		return true, nil
	}

	language := a.GetLanguage(ctx, chat, user)
	entry.Debug("processing admin command")

	switch command {
	case "addword":
		return a.handleAddWord(ctx, msg, user, language)
	case "delword":
		return a.handleDelWord(ctx, msg, language)
	case "listwords":
		return a.handleListWords(ctx, msg, language)
	case "allowchat":
		return a.handleAllowChat(ctx, msg, chat, user, language)
	case "revokechat":
		return a.handleRevokeChat(ctx, msg, language)
	case "addcommand":
		return a.handleAddCommand(ctx, msg, user, language)
	case "delcommand":
		return a.handleDelCommand(ctx, msg, language)
	case "listcommands":
		return a.handleListCommands(msg, language)
	case "setlang":
		return a.handleSetLang(ctx, msg, chat, language)
	case "incidents":
		return a.handleIncidents(ctx, msg, chat, language)
	case "status":
		return a.handleStatus(msg, language)
	}
	return true, nil
}

func (a *Admin) handleAddWord(ctx context.Context, msg *api.Message, user *api.User, language string) (bool, error) {
	word := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
	if word == "" {
		a.reply(msg, i18n.Get("Usage: /addword <word>", language))
		return false, nil
	}
	if err := a.store.AddBlacklistWord(ctx, word, user.ID); err != nil {
		return false, fmt.Errorf("add blacklist word: %w", err)
	}
	if err := a.reloadBlacklist(ctx); err != nil {
		return false, err
	}
	a.reply(msg, fmt.Sprintf(i18n.Get("Added %q to the blacklist, %d words total.", language), word, a.blacklist.Size()))
	return false, nil
}

func (a *Admin) handleDelWord(ctx context.Context, msg *api.Message, language string) (bool, error) {
	word := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
	if word == "" {
		a.reply(msg, i18n.Get("Usage: /delword <word>", language))
		return false, nil
	}
	removed, err := a.store.RemoveBlacklistWord(ctx, word)
	if err != nil {
		return false, fmt.Errorf("remove blacklist word: %w", err)
	}
	if !removed {
		a.reply(msg, fmt.Sprintf(i18n.Get("%q is not blacklisted.", language), word))
		return false, nil
	}
	if err := a.reloadBlacklist(ctx); err != nil {
		return false, err
	}
	a.reply(msg, fmt.Sprintf(i18n.Get("Removed %q from the blacklist.", language), word))
	return false, nil
}

func (a *Admin) handleListWords(ctx context.Context, msg *api.Message, language string) (bool, error) {
	words, err := a.store.ListBlacklistWords(ctx)
	if err != nil {
		return false, fmt.Errorf("list blacklist words: %w", err)
	}
	if len(words) == 0 {
		a.reply(msg, i18n.Get("The blacklist is empty.", language))
		return false, nil
	}
	a.reply(msg, i18n.Get("Blacklisted words", language)+":\n"+strings.Join(words, "\n"))
	return false, nil
}

func (a *Admin) handleAllowChat(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User, language string) (bool, error) {
	target := chat.ID
	title := chat.Title
	if arg := strings.TrimSpace(msg.CommandArguments()); arg != "" {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			a.reply(msg, i18n.Get("Usage: /allowchat [chat_id]", language))
			return false, nil
		}
		target = id
		title = ""
	}
	if err := a.store.AllowChat(ctx, db.AllowedChat{ID: target, Title: title, AddedBy: user.ID}); err != nil {
		return false, fmt.Errorf("allow chat: %w", err)
	}
	if err := a.reloadAllowedChats(ctx); err != nil {
		return false, err
	}
	a.reply(msg, fmt.Sprintf(i18n.Get("Chat %d is now allowed.", language), target))
	return false, nil
}

func (a *Admin) handleRevokeChat(ctx context.Context, msg *api.Message, language string) (bool, error) {
	target, err := strconv.ParseInt(strings.TrimSpace(msg.CommandArguments()), 10, 64)
	if err != nil {
		a.reply(msg, i18n.Get("Usage: /revokechat <chat_id>", language))
		return false, nil
	}
	revoked, err := a.store.RevokeChat(ctx, target)
	if err != nil {
		return false, fmt.Errorf("revoke chat: %w", err)
	}
	if !revoked {
		a.reply(msg, fmt.Sprintf(i18n.Get("Chat %d was not allowed.", language), target))
		return false, nil
	}
	if err := a.reloadAllowedChats(ctx); err != nil {
		return false, err
	}
	a.reply(msg, fmt.Sprintf(i18n.Get("Chat %d is no longer allowed.", language), target))
	return false, nil
}

func (a *Admin) handleAddCommand(ctx context.Context, msg *api.Message, user *api.User, language string) (bool, error) {
	parts := strings.SplitN(strings.TrimSpace(msg.CommandArguments()), " ", 2)
	if len(parts) < 2 {
		a.reply(msg, i18n.Get("Usage: /addcommand <trigger> <response>", language))
		return false, nil
	}
	trigger := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	response := strings.TrimSpace(parts[1])
	if trigger == "" || response == "" {
		a.reply(msg, i18n.Get("Usage: /addcommand <trigger> <response>", language))
		return false, nil
	}
	if err := a.store.UpsertCommand(ctx, db.CustomCommand{Trigger: trigger, Response: response, CreatedBy: user.ID}); err != nil {
		return false, fmt.Errorf("upsert command: %w", err)
	}
	if err := a.commands.Reload(ctx, a.store); err != nil {
		return false, fmt.Errorf("reload commands: %w", err)
	}
	a.reply(msg, fmt.Sprintf(i18n.Get("Command /%s saved.", language), trigger))
	return false, nil
}

func (a *Admin) handleDelCommand(ctx context.Context, msg *api.Message, language string) (bool, error) {
	trigger := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(msg.CommandArguments()), "/"))
	if trigger == "" {
		a.reply(msg, i18n.Get("Usage: /delcommand <trigger>", language))
		return false, nil
	}
	removed, err := a.store.RemoveCommand(ctx, trigger)
	if err != nil {
		return false, fmt.Errorf("remove command: %w", err)
	}
	if !removed {
		a.reply(msg, fmt.Sprintf(i18n.Get("There is no /%s command.", language), trigger))
		return false, nil
	}
	if err := a.commands.Reload(ctx, a.store); err != nil {
		return false, fmt.Errorf("reload commands: %w", err)
	}
	a.reply(msg, fmt.Sprintf(i18n.Get("Command /%s removed.", language), trigger))
	return false, nil
}

func (a *Admin) handleListCommands(msg *api.Message, language string) (bool, error) {
	triggers := a.commands.Triggers()
	if len(triggers) == 0 {
		a.reply(msg, i18n.Get("No custom commands yet.", language))
		return false, nil
	}
	a.reply(msg, i18n.Get("Custom commands", language)+":\n/"+strings.Join(triggers, "\n/"))
	return false, nil
}

func (a *Admin) handleSetLang(ctx context.Context, msg *api.Message, chat *api.Chat, language string) (bool, error) {
	argument := strings.TrimSpace(msg.CommandArguments())
	if !tool.In(argument, a.languages...) {
		hint := api.NewMessage(
			msg.Chat.ID,
			i18n.Get("You should use one of the following options", language)+": `"+strings.Join(a.languages, "`, `")+"`",
		)
		hint.ParseMode = api.ModeMarkdown
		hint.DisableNotification = true
		_, _ = a.GetService().GetBot().Send(hint)
		return false, nil
	}

	settings, err := a.GetOrCreateSettings(ctx, chat)
	if err != nil {
		return false, fmt.Errorf("get settings: %w", err)
	}
	settings.Language = argument
	if err := a.GetService().SetSettings(ctx, settings); err != nil {
		return false, fmt.Errorf("set settings: %w", err)
	}
	a.reply(msg, i18n.Get("Language set successfully", argument))
	return false, nil
}

func (a *Admin) handleIncidents(ctx context.Context, msg *api.Message, chat *api.Chat, language string) (bool, error) {
	incidents, err := a.store.RecentIncidents(ctx, chat.ID, recentIncidentsLimit)
	if err != nil {
		return false, fmt.Errorf("list incidents: %w", err)
	}
	if len(incidents) == 0 {
		a.reply(msg, i18n.Get("No incidents recorded in this chat.", language))
		return false, nil
	}
	lines := make([]string, 0, len(incidents))
	for _, incident := range incidents {
		lines = append(lines, fmt.Sprintf(
			"%s | %s/%s | %d",
			incident.CreatedAt.Format("2006-01-02 15:04"),
			incident.Action, incident.Rule, incident.UserID,
		))
	}
	a.reply(msg, i18n.Get("Recent incidents", language)+":\n"+strings.Join(lines, "\n"))
	return false, nil
}

func (a *Admin) handleStatus(msg *api.Message, language string) (bool, error) {
	uptime := time.Since(a.startedAt).Round(time.Second)
	a.reply(msg, fmt.Sprintf(
		i18n.Get("Words: %d | Chats: %d | Commands: %d | Uptime: %s", language),
		a.blacklist.Size(), a.allowed.Size(), a.commands.Size(), uptime,
	))
	return false, nil
}

func (a *Admin) reloadBlacklist(ctx context.Context) error {
	if err := a.blacklist.Reload(ctx, a.store); err != nil {
		return fmt.Errorf("reload blacklist: %w", err)
	}
	observability.SetBlacklistSize(a.blacklist.Size())
	return nil
}

func (a *Admin) reloadAllowedChats(ctx context.Context) error {
	chats, err := a.store.ListAllowedChats(ctx)
	if err != nil {
		return fmt.Errorf("reload allowed chats: %w", err)
	}
	ids := make([]int64, 0, len(chats))
	for _, allowedChat := range chats {
		ids = append(ids, allowedChat.ID)
	}
	a.allowed.Replace(ids)
	return nil
}

// isAuthorized admits the operator anywhere and privileged chat admins in
// their own group. Private chats are operator territory only.
func (a *Admin) isAuthorized(ctx context.Context, chat *api.Chat, user *api.User) bool {
	if a.isOperator(user) {
		return true
	}
	if chat.IsPrivate() {
		return false
	}
	member, err := a.members.Get(ctx, chat.ID, user.ID)
	if err != nil {
		a.GetLogger().WithError(err).WithFields(log.Fields{
			"chat_id": chat.ID,
			"user_id": user.ID,
		}).Warn("cant get chat member")
		return false
	}
	return permissions.IsPrivilegedModerator(member)
}

func (a *Admin) isOperator(user *api.User) bool {
	return a.operator != 0 && user.ID == a.operator
}

func (a *Admin) reply(msg *api.Message, text string) {
	reply := api.NewMessage(msg.Chat.ID, text)
	reply.ReplyParameters.MessageID = msg.MessageID
	reply.ReplyParameters.ChatID = msg.Chat.ID
	reply.MessageThreadID = msg.MessageThreadID
	reply.DisableNotification = true
	if _, err := a.GetService().GetBot().Send(reply); err != nil {
		a.GetLogger().WithError(err).Warn("cant send admin reply")
	}
}
