package handlers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/guardbot/guardbot/internal/db"
	moderation "github.com/guardbot/guardbot/internal/handlers/moderation"
	"github.com/guardbot/guardbot/internal/policy/permissions"
)

const (
	guardChatID = int64(-1001234)
	guardUserID = int64(7007)
	operatorID  = int64(42)
)

type serviceStub struct {
	bot      *api.BotAPI
	settings map[int64]*db.Settings
}

func (s *serviceStub) GetBot() *api.BotAPI { return s.bot }
func (s *serviceStub) GetDB() db.Client    { return nil }

func (s *serviceStub) GetSettings(_ context.Context, chatID int64) (*db.Settings, error) {
	return s.settings[chatID], nil
}

func (s *serviceStub) SetSettings(_ context.Context, settings *db.Settings) error {
	s.settings[settings.ID] = settings
	return nil
}

func (s *serviceStub) GetLanguage(context.Context, int64, *api.User) string { return "en" }

type recordingGateway struct {
	deleted []int
	banned  []int64
	sent    []string
	banErr  error
}

func (g *recordingGateway) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	g.deleted = append(g.deleted, messageID)
	return nil
}

func (g *recordingGateway) BanUser(_ context.Context, _ int64, userID int64) error {
	if g.banErr != nil {
		return g.banErr
	}
	g.banned = append(g.banned, userID)
	return nil
}

func (g *recordingGateway) SendMessage(_ context.Context, _ int64, content string) error {
	g.sent = append(g.sent, content)
	return nil
}

type journalStub struct {
	incidents []*db.Incident
}

func (j *journalStub) Enqueue(incident *db.Incident) {
	j.incidents = append(j.incidents, incident)
}

type memberStub struct {
	member api.ChatMember
	err    error
}

func (m *memberStub) GetChatMember(api.GetChatMemberConfig) (api.ChatMember, error) {
	return m.member, m.err
}

type guardEnv struct {
	guard   *Guard
	gateway *recordingGateway
	journal *journalStub
	service *serviceStub
	strikes *moderation.Strikes
}

func newGuardEnv(flood *moderation.FloodGuard, rules []moderation.RuleFunc, lookup permissions.MemberLookup) *guardEnv {
	gateway := &recordingGateway{}
	journal := &journalStub{}
	service := &serviceStub{settings: map[int64]*db.Settings{}}
	strikes := moderation.NewStrikes()
	guard := NewGuard(
		service,
		flood,
		moderation.NewPipeline(rules...),
		moderation.NewEnforcer(gateway, strikes, log.New().WithField("test", "guard")),
		moderation.NewAllowedChats(guardChatID),
		journal,
		permissions.NewMemberCache(lookup, time.Minute),
		operatorID,
	)
	return &guardEnv{guard: guard, gateway: gateway, journal: journal, service: service, strikes: strikes}
}

func regularMember() *memberStub {
	return &memberStub{member: api.ChatMember{Status: "member"}}
}

func defaultGuardRules(words ...string) []moderation.RuleFunc {
	return moderation.DefaultRules(moderation.NewBlacklist(words...), nil, 32)
}

func groupMessage(messageID int, text string, entities ...api.MessageEntity) (*api.Update, *api.Chat, *api.User) {
	user := &api.User{ID: guardUserID, UserName: "offender"}
	msg := &api.Message{
		MessageID: messageID,
		Chat:      api.Chat{ID: guardChatID, Type: "supergroup"},
		From:      user,
		Text:      text,
		Entities:  entities,
	}
	return &api.Update{Message: msg}, &api.Chat{ID: guardChatID, Type: "supergroup"}, user
}

func TestGuardDeletesAndWarnsFirstOffense(t *testing.T) {
	t.Parallel()

	env := newGuardEnv(moderation.NewFloodGuard(0), defaultGuardRules(), regularMember())

	u, chat, user := groupMessage(10, "join now https://spam.example")
	proceed, err := env.guard.Handle(context.Background(), u, chat, user)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if proceed {
		t.Fatal("spam must stop the handler chain")
	}
	if len(env.gateway.deleted) != 1 || env.gateway.deleted[0] != 10 {
		t.Fatalf("unexpected deletes: %+v", env.gateway.deleted)
	}
	if len(env.gateway.banned) != 0 {
		t.Fatalf("first offense must not ban: %+v", env.gateway.banned)
	}
	if len(env.gateway.sent) != 1 || !strings.Contains(env.gateway.sent[0], "(Warning 1/3)") {
		t.Fatalf("unexpected warning: %+v", env.gateway.sent)
	}
	if !strings.Contains(env.gateway.sent[0], "@offender") {
		t.Fatalf("warning must address the offender: %q", env.gateway.sent[0])
	}
	if len(env.journal.incidents) != 1 {
		t.Fatalf("unexpected incidents: %+v", env.journal.incidents)
	}
	incident := env.journal.incidents[0]
	if incident.Rule != moderation.RuleLinks || incident.Action != db.IncidentActionWarned || incident.Warnings != 1 {
		t.Fatalf("unexpected incident: %+v", incident)
	}
	if incident.ChatID != guardChatID || incident.UserID != guardUserID || incident.MessageID != 10 {
		t.Fatalf("incident must identify the message: %+v", incident)
	}
}

func TestGuardEscalatesToBanAtLimit(t *testing.T) {
	t.Parallel()

	env := newGuardEnv(moderation.NewFloodGuard(0), defaultGuardRules("casino"), regularMember())
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		u, chat, user := groupMessage(i, "best casino in town")
		proceed, err := env.guard.Handle(ctx, u, chat, user)
		if err != nil {
			t.Fatalf("offense %d: %v", i, err)
		}
		if proceed {
			t.Fatalf("offense %d must stop the chain", i)
		}
	}

	if len(env.gateway.banned) != 1 || env.gateway.banned[0] != guardUserID {
		t.Fatalf("unexpected bans: %+v", env.gateway.banned)
	}
	if got := env.gateway.sent[len(env.gateway.sent)-1]; !strings.Contains(got, "banned after 3 warnings") {
		t.Fatalf("unexpected ban notice: %q", got)
	}
	incident := env.journal.incidents[2]
	if incident.Action != db.IncidentActionBanned || incident.Warnings != 3 {
		t.Fatalf("unexpected ban incident: %+v", incident)
	}

	u, chat, user := groupMessage(4, "casino once more")
	if _, err := env.guard.Handle(ctx, u, chat, user); err != nil {
		t.Fatalf("post-ban offense: %v", err)
	}
	if got := env.gateway.sent[len(env.gateway.sent)-1]; !strings.Contains(got, "(Warning 1/3)") {
		t.Fatalf("counter must reset after a ban: %q", got)
	}
}

func TestGuardSuppressesFloodSilently(t *testing.T) {
	t.Parallel()

	ruleCalls := 0
	counting := func(context.Context, *moderation.Message) *moderation.Verdict {
		ruleCalls++
		return nil
	}
	env := newGuardEnv(moderation.NewFloodGuard(time.Hour), []moderation.RuleFunc{counting}, regularMember())
	ctx := context.Background()

	u, chat, user := groupMessage(1, "hello")
	proceed, err := env.guard.Handle(ctx, u, chat, user)
	if err != nil || !proceed {
		t.Fatalf("first message should pass: proceed=%v err=%v", proceed, err)
	}

	u, chat, user = groupMessage(2, "hello again")
	proceed, err = env.guard.Handle(ctx, u, chat, user)
	if err != nil {
		t.Fatalf("second message: %v", err)
	}
	if proceed {
		t.Fatal("flooded message must stop the chain")
	}
	if ruleCalls != 1 {
		t.Fatalf("flooded message must not reach the rules, got %d evaluations", ruleCalls)
	}
	if len(env.gateway.deleted) != 1 || env.gateway.deleted[0] != 2 {
		t.Fatalf("unexpected deletes: %+v", env.gateway.deleted)
	}
	if len(env.gateway.sent) != 0 {
		t.Fatalf("flood suppression must stay silent: %+v", env.gateway.sent)
	}
	if got := env.strikes.Count(guardChatID, guardUserID); got != 0 {
		t.Fatalf("flood must not strike the user, got %d", got)
	}
	if len(env.journal.incidents) != 1 {
		t.Fatalf("unexpected incidents: %+v", env.journal.incidents)
	}
	incident := env.journal.incidents[0]
	if incident.Rule != moderation.RuleFlood || incident.Action != db.IncidentActionFlood || incident.Warnings != 0 {
		t.Fatalf("unexpected flood incident: %+v", incident)
	}
}

func TestGuardExemptsAdministrators(t *testing.T) {
	t.Parallel()

	env := newGuardEnv(
		moderation.NewFloodGuard(0),
		defaultGuardRules("casino"),
		&memberStub{member: api.ChatMember{Status: "administrator"}},
	)

	u, chat, user := groupMessage(1, "casino https://spam.example")
	proceed, err := env.guard.Handle(context.Background(), u, chat, user)
	if err != nil || !proceed {
		t.Fatalf("admin message should pass: proceed=%v err=%v", proceed, err)
	}
	if len(env.gateway.deleted) != 0 || len(env.journal.incidents) != 0 {
		t.Fatalf("admin message must stay untouched: deletes=%+v incidents=%+v", env.gateway.deleted, env.journal.incidents)
	}
}

func TestGuardExemptsOperatorDespiteLookupFailure(t *testing.T) {
	t.Parallel()

	env := newGuardEnv(moderation.NewFloodGuard(0), defaultGuardRules(), &memberStub{err: errors.New("telegram is down")})

	u, chat, _ := groupMessage(1, "https://spam.example")
	operator := &api.User{ID: operatorID, UserName: "boss"}
	u.Message.From = operator
	proceed, err := env.guard.Handle(context.Background(), u, chat, operator)
	if err != nil || !proceed {
		t.Fatalf("operator message should pass: proceed=%v err=%v", proceed, err)
	}
	if len(env.gateway.deleted) != 0 {
		t.Fatalf("operator message must stay untouched: %+v", env.gateway.deleted)
	}
}

func TestGuardModeratesWhenMemberLookupFails(t *testing.T) {
	t.Parallel()

	env := newGuardEnv(moderation.NewFloodGuard(0), defaultGuardRules(), &memberStub{err: errors.New("telegram is down")})

	u, chat, user := groupMessage(1, "https://spam.example")
	proceed, err := env.guard.Handle(context.Background(), u, chat, user)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if proceed {
		t.Fatal("lookup failure must not grant exemption")
	}
	if len(env.gateway.deleted) != 1 {
		t.Fatalf("unexpected deletes: %+v", env.gateway.deleted)
	}
}

func TestGuardSkipsUnallowedChat(t *testing.T) {
	t.Parallel()

	env := newGuardEnv(moderation.NewFloodGuard(0), defaultGuardRules(), regularMember())

	u, _, user := groupMessage(1, "https://spam.example")
	other := &api.Chat{ID: guardChatID + 1, Type: "supergroup"}
	proceed, err := env.guard.Handle(context.Background(), u, other, user)
	if err != nil || !proceed {
		t.Fatalf("unallowed chat should pass through: proceed=%v err=%v", proceed, err)
	}
	if len(env.gateway.deleted) != 0 || len(env.journal.incidents) != 0 {
		t.Fatalf("unallowed chat must stay untouched: deletes=%+v incidents=%+v", env.gateway.deleted, env.journal.incidents)
	}
}

func TestGuardIgnoresPrivateChats(t *testing.T) {
	t.Parallel()

	env := newGuardEnv(moderation.NewFloodGuard(0), defaultGuardRules(), regularMember())

	u, _, user := groupMessage(1, "https://spam.example")
	private := &api.Chat{ID: guardUserID, Type: "private"}
	proceed, err := env.guard.Handle(context.Background(), u, private, user)
	if err != nil || !proceed {
		t.Fatalf("private chat should pass through: proceed=%v err=%v", proceed, err)
	}
	if len(env.gateway.deleted) != 0 {
		t.Fatalf("private chat must stay untouched: %+v", env.gateway.deleted)
	}
}

func TestGuardHonorsDisabledModeration(t *testing.T) {
	t.Parallel()

	env := newGuardEnv(moderation.NewFloodGuard(0), defaultGuardRules(), regularMember())
	env.service.settings[guardChatID] = &db.Settings{ID: guardChatID, Enabled: false, Language: "en", WarningsLimit: 3}

	u, chat, user := groupMessage(1, "https://spam.example")
	proceed, err := env.guard.Handle(context.Background(), u, chat, user)
	if err != nil || !proceed {
		t.Fatalf("disabled chat should pass through: proceed=%v err=%v", proceed, err)
	}
	if len(env.gateway.deleted) != 0 {
		t.Fatalf("disabled chat must stay untouched: %+v", env.gateway.deleted)
	}
}

func TestGuardAllowsCommandMentions(t *testing.T) {
	t.Parallel()

	env := newGuardEnv(moderation.NewFloodGuard(0), defaultGuardRules(), regularMember())
	ctx := context.Background()

	u, chat, user := groupMessage(1, "/report @offender",
		api.MessageEntity{Type: "bot_command", Offset: 0, Length: 7},
		api.MessageEntity{Type: "mention", Offset: 8, Length: 9},
	)
	proceed, err := env.guard.Handle(ctx, u, chat, user)
	if err != nil || !proceed {
		t.Fatalf("command mention should pass: proceed=%v err=%v", proceed, err)
	}

	u, chat, user = groupMessage(2, "ping @somebody",
		api.MessageEntity{Type: "mention", Offset: 5, Length: 9},
	)
	proceed, err = env.guard.Handle(ctx, u, chat, user)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if proceed {
		t.Fatal("plain mention must be caught")
	}
	if len(env.journal.incidents) != 1 || env.journal.incidents[0].Rule != moderation.RuleMentions {
		t.Fatalf("unexpected incidents: %+v", env.journal.incidents)
	}
}

func TestGuardCatchesForwardedMessages(t *testing.T) {
	t.Parallel()

	env := newGuardEnv(moderation.NewFloodGuard(0), defaultGuardRules(), regularMember())

	u, chat, user := groupMessage(1, "totally organic repost")
	u.Message.IsAutomaticForward = true
	proceed, err := env.guard.Handle(context.Background(), u, chat, user)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if proceed {
		t.Fatal("forwarded message must be caught")
	}
	if len(env.journal.incidents) != 1 || env.journal.incidents[0].Rule != moderation.RuleForwards {
		t.Fatalf("unexpected incidents: %+v", env.journal.incidents)
	}
}

func TestGuardPassesCleanMessages(t *testing.T) {
	t.Parallel()

	env := newGuardEnv(moderation.NewFloodGuard(0), defaultGuardRules("casino"), regularMember())

	u, chat, user := groupMessage(1, "good morning everyone")
	proceed, err := env.guard.Handle(context.Background(), u, chat, user)
	if err != nil || !proceed {
		t.Fatalf("clean message should pass: proceed=%v err=%v", proceed, err)
	}
	if len(env.gateway.deleted) != 0 || len(env.journal.incidents) != 0 {
		t.Fatalf("clean message must stay untouched: deletes=%+v incidents=%+v", env.gateway.deleted, env.journal.incidents)
	}
}

func TestGuardJournalsBanDespiteGatewayFailure(t *testing.T) {
	t.Parallel()

	env := newGuardEnv(moderation.NewFloodGuard(0), defaultGuardRules(), regularMember())
	env.service.settings[guardChatID] = &db.Settings{ID: guardChatID, Enabled: true, Language: "en", WarningsLimit: 1}
	env.gateway.banErr = errors.New("not enough rights")

	u, chat, user := groupMessage(1, "https://spam.example")
	proceed, err := env.guard.Handle(context.Background(), u, chat, user)
	if err != nil {
		t.Fatalf("enforce failures must not abort the chain: %v", err)
	}
	if proceed {
		t.Fatal("spam must stop the chain even when the ban call fails")
	}
	if len(env.journal.incidents) != 1 || env.journal.incidents[0].Action != db.IncidentActionBanned {
		t.Fatalf("unexpected incidents: %+v", env.journal.incidents)
	}
}

func TestGuardValidatesUpdates(t *testing.T) {
	t.Parallel()

	env := newGuardEnv(moderation.NewFloodGuard(0), defaultGuardRules(), regularMember())
	ctx := context.Background()

	if _, err := env.guard.Handle(ctx, nil, nil, nil); err == nil {
		t.Fatal("expected error for nil update")
	}

	u, _, _ := groupMessage(1, "hi")
	if _, err := env.guard.Handle(ctx, u, nil, nil); err == nil {
		t.Fatal("expected error for nil chat and user")
	}

	proceed, err := env.guard.Handle(ctx, &api.Update{}, nil, nil)
	if err != nil || !proceed {
		t.Fatalf("non-message update should pass through: proceed=%v err=%v", proceed, err)
	}
}

func TestGuardStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	env := newGuardEnv(moderation.NewFloodGuard(0), defaultGuardRules(), regularMember())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	u, chat, user := groupMessage(1, "hi")
	if _, err := env.guard.Handle(ctx, u, chat, user); err == nil {
		t.Fatal("expected context error")
	}
}
