package bot

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/guardbot/guardbot/internal/config"
	"github.com/guardbot/guardbot/internal/db"
	"github.com/guardbot/guardbot/internal/i18n"
)

type service struct {
	bot *api.BotAPI
	db  db.Client
}

func NewService(bot *api.BotAPI, db db.Client) *service {
	return &service{
		bot: bot,
		db:  db,
	}
}

func (s *service) GetBot() *api.BotAPI {
	return s.bot
}

func (s *service) GetDB() db.Client {
	return s.db
}

// GetSettings returns chat settings, creating defaults on first contact with
// the chat.
func (s *service) GetSettings(ctx context.Context, chatID int64) (*db.Settings, error) {
	settings, err := s.db.GetSettings(ctx, chatID)
	if errors.Is(err, db.ErrNotFound) {
		settings = db.DefaultSettings(chatID)
		applyConfigDefaults(settings, config.Get())
		if err := s.db.SetSettings(ctx, settings); err != nil {
			return nil, errors.WithMessage(err, "cant create default settings")
		}
		return settings, nil
	}
	if err != nil {
		return nil, errors.WithMessage(err, "cant get settings")
	}
	return settings, nil
}

// applyConfigDefaults overlays operator-configured defaults onto a freshly
// created settings row. Chats keep their stored values once the row exists.
func applyConfigDefaults(settings *db.Settings, cfg config.Config) {
	if cfg.DefaultLanguage != "" {
		settings.Language = cfg.DefaultLanguage
	}
	if cfg.Moderation.MaxWarnings > 0 {
		settings.WarningsLimit = cfg.Moderation.MaxWarnings
	}
}

func (s *service) SetSettings(ctx context.Context, settings *db.Settings) error {
	if settings == nil {
		return errors.New("nil settings")
	}
	return s.db.SetSettings(ctx, settings)
}

// GetLanguage resolves the language for replies: chat settings first, then
// the user's client language, then the configured default.
func (s *service) GetLanguage(ctx context.Context, chatID int64, user *api.User) string {
	settings, err := s.GetSettings(ctx, chatID)
	if err != nil {
		log.WithField("object", "Service").WithError(err).Debug("cant get settings for language")
	}
	if settings != nil && settings.Language != "" {
		return settings.Language
	}
	if user != nil && tool.In(user.LanguageCode, i18n.GetLanguagesList()...) {
		return user.LanguageCode
	}
	if lang := config.Get().DefaultLanguage; lang != "" {
		return lang
	}
	return "en"
}
