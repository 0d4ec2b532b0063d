package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		TelegramAPIToken string   `env:"TOKEN,required"`
		OperatorID       int64    `env:"OPERATOR_ID"`
		DefaultLanguage  string   `env:"LANG,default=en"`
		EnabledHandlers  []string `env:"HANDLERS,default=admin,commands,guard"`
		LogLevel         int      `env:"LOG_LEVEL,default=4"`
		DotPath          string   `env:"DOT_PATH,default=~/.guardbot"`
		ListenAddr       string   `env:"LISTEN_ADDR,default=:8080"`
		LLM              LLM
		Moderation       Moderation
	}

	LLM struct {
		APIKey    string `env:"LLM_API_KEY"`
		Model     string `env:"LLM_API_MODEL"`
		BaseURL   string `env:"LLM_API_URL,default=https://api.openai.com/v1"`
		Type      string `env:"LLM_API_TYPE,default=gemini"`
		ModelsDir string `env:"LLM_MODELS_DIR,default=models"`
	}

	Moderation struct {
		FloodInterval     time.Duration `env:"FLOOD_INTERVAL,default=2s"`
		FloodRetention    time.Duration `env:"FLOOD_RETENTION,default=1h"`
		MaxWarnings       int           `env:"MAX_WARNINGS,default=3"`
		MinClassifyLength int           `env:"MIN_CLASSIFY_LENGTH,default=20"`
		ClassifyTimeout   time.Duration `env:"CLASSIFY_TIMEOUT,default=5s"`
		AdminCacheTTL     time.Duration `env:"ADMIN_CACHE_TTL,default=5m"`
		IncidentQueueSize int           `env:"INCIDENT_QUEUE_SIZE,default=1024"`
		IncidentRetention time.Duration `env:"INCIDENT_RETENTION,default=2160h"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg := &Config{}
		envcfg := envconfig.Config{
			Lookuper: envconfig.PrefixLookuper("GB_", envconfig.OsLookuper()),
			Target:   cfg,
		}
		if err := envconfig.ProcessWith(context.Background(), &envcfg); err != nil {
			globalErr = fmt.Errorf("process env config: %w", err)
			return
		}
		home, err := os.UserHomeDir()
		if err != nil {
			globalErr = fmt.Errorf("get user home directory: %w", err)
			return
		}
		cfg.DotPath = strings.Replace(cfg.DotPath, "~", home, 1)
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}
