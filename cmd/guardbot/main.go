package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/guardbot/guardbot/internal/adapters"
	"github.com/guardbot/guardbot/internal/adapters/llm/gemini"
	"github.com/guardbot/guardbot/internal/adapters/llm/local"
	"github.com/guardbot/guardbot/internal/adapters/llm/openai"
	"github.com/guardbot/guardbot/internal/bot"
	"github.com/guardbot/guardbot/internal/config"
	"github.com/guardbot/guardbot/internal/db/sqlite"
	"github.com/guardbot/guardbot/internal/event"
	adminHandlers "github.com/guardbot/guardbot/internal/handlers/admin"
	chatHandlers "github.com/guardbot/guardbot/internal/handlers/chat"
	moderation "github.com/guardbot/guardbot/internal/handlers/moderation"
	"github.com/guardbot/guardbot/internal/infra"
	"github.com/guardbot/guardbot/internal/lifecycle"
	"github.com/guardbot/guardbot/internal/observability"
	"github.com/guardbot/guardbot/internal/policy/permissions"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatalln("cant load config")
	}
	log.SetFormatter(&config.GbFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := observability.Init(ctx); err != nil {
		log.WithError(err).Fatalln("cant initialize observability")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := observability.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("cant shutdown observability")
		}
	}()

	if err := os.MkdirAll(cfg.DotPath, os.ModePerm); err != nil {
		log.WithError(err).Fatalln("cant create work directory")
	}
	dbClient, err := sqlite.NewSQLiteClient(ctx, cfg.DotPath, "guardbot.db")
	if err != nil {
		log.WithError(err).Fatalln("cant open database")
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.WithError(err).Error("cant close database")
		}
	}()

	botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		log.WithError(err).Errorln("cant initialize bot api")
		time.Sleep(1 * time.Second)
		log.Fatalln("exiting")
	}
	if log.Level(cfg.LogLevel) == log.TraceLevel {
		botAPI.Debug = true
	}
	defer botAPI.StopReceivingUpdates()

	service := bot.NewService(botAPI, dbClient)

	blacklist := moderation.NewBlacklist()
	if err := blacklist.Reload(ctx, dbClient); err != nil {
		log.WithError(err).Fatalln("cant load blacklist")
	}
	observability.SetBlacklistSize(blacklist.Size())

	allowed := moderation.NewAllowedChats()
	allowedChats, err := dbClient.ListAllowedChats(ctx)
	if err != nil {
		log.WithError(err).Fatalln("cant load allowed chats")
	}
	allowedIDs := make([]int64, 0, len(allowedChats))
	for _, chat := range allowedChats {
		allowedIDs = append(allowedIDs, chat.ID)
	}
	allowed.Replace(allowedIDs)

	commands := bot.NewCommandSet()
	if err := commands.Reload(ctx, dbClient); err != nil {
		log.WithError(err).Fatalln("cant load custom commands")
	}

	detector := moderation.NewDetector(
		newClassifier(ctx, cfg.LLM),
		cfg.Moderation.ClassifyTimeout,
		log.WithField("object", "Detector"),
	)

	flood := moderation.NewFloodGuard(cfg.Moderation.FloodInterval)
	strikes := moderation.NewStrikes()
	gateway := chatHandlers.NewTelegramGateway(botAPI)
	enforcer := moderation.NewEnforcer(gateway, strikes, log.WithField("object", "Enforcer"))
	pipeline := moderation.NewPipeline(moderation.DefaultRules(blacklist, detector, cfg.Moderation.MinClassifyLength)...)
	members := permissions.NewMemberCache(botAPI, cfg.Moderation.AdminCacheTTL)
	journal := event.NewJournal(dbClient, cfg.Moderation.IncidentQueueSize, cfg.Moderation.IncidentRetention)

	bot.RegisterUpdateHandler("admin", adminHandlers.NewAdmin(service, blacklist, allowed, commands, members, cfg.OperatorID))
	bot.RegisterUpdateHandler("commands", chatHandlers.NewCommands(service, commands))
	bot.RegisterUpdateHandler("guard", chatHandlers.NewGuard(service, flood, pipeline, enforcer, allowed, journal, members, cfg.OperatorID))

	runtime := lifecycle.NewRuntime(
		observability.NewServer(cfg.ListenAddr),
		journal,
		moderation.NewFloodJanitor(flood, cfg.Moderation.FloodRetention),
	)
	if err := runtime.Start(ctx); err != nil {
		log.WithError(err).Fatalln("cant start runtime")
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := runtime.Stop(stopCtx); err != nil {
			log.WithError(err).Error("cant stop runtime")
		}
	}()

	updateConfig := api.NewUpdate(0)
	updateConfig.Timeout = 60
	updateProcessor := bot.NewUpdateProcessor(service)
	updateChan, errorChan := bot.GetUpdatesChans(ctx, botAPI, updateConfig)

	g, runCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-runCtx.Done():
				return runCtx.Err()
			case err := <-errorChan:
				return err
			case update := <-updateChan:
				go processUpdate(runCtx, updateProcessor, update)
			}
		}
	})
	g.Go(func() error {
		select {
		case <-runCtx.Done():
			return runCtx.Err()
		case <-infra.MonitorExecutable(runCtx):
			log.Errorln("executable file was modified")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.WithError(err).Errorln("no more updates")
	}
}

// processUpdate moderates one update in its own goroutine. A panic is
// contained to the update that caused it.
func processUpdate(ctx context.Context, updateProcessor *bot.UpdateProcessor, update api.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("update handler panic: %v, %s", r, infra.IdentifyPanic())
		}
	}()
	if err := updateProcessor.Process(ctx, &update); err != nil {
		log.WithError(err).Errorln("cant process update")
	}
}

// newClassifier picks the LLM provider from config. Failure to construct one
// is logged, not fatal: the rule pipeline fails open on the classifier step.
func newClassifier(ctx context.Context, cfg config.LLM) adapters.LLM {
	entry := log.WithField("object", "Classifier")
	switch cfg.Type {
	case "openai":
		return openai.NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL, entry)
	case "local":
		client, err := local.NewLocal(infra.GetWorkDir(cfg.ModelsDir), cfg.Model, entry)
		if err != nil {
			entry.WithError(err).Error("cant initialize local classifier")
			return nil
		}
		return client
	case "gemini":
		client, err := gemini.NewGemini(ctx, cfg.APIKey, cfg.Model, entry)
		if err != nil {
			entry.WithError(err).Error("cant initialize gemini classifier")
			return nil
		}
		return client
	default:
		entry.Warnf("unknown classifier type %q, AI rule disabled", cfg.Type)
		return nil
	}
}
