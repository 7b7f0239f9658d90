package config

import (
	"errors"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию бота.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		Token      string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL string `envconfig:"TG_WEBHOOK_URL"`
		APIID      int    `envconfig:"TG_API_ID"`
		APIHash    string `envconfig:"TG_API_HASH"`

		// WebAppAuthTTL ограничивает возраст initData Mini App.
		WebAppAuthTTL time.Duration `envconfig:"WEBAPP_AUTH_TTL" default:"24h"`
	} `envconfig:""`

	MTProto struct {
		SessionFile string `envconfig:"MTPROTO_SESSION_FILE"`
		GlobalRPS   int    `envconfig:"MTPROTO_GLOBAL_RPS" default:"20"`
	} `envconfig:""`

	Bot struct {
		Prefix       string   `envconfig:"BOT_PREFIX" default:"!wcb"`
		RootUserID   int64    `envconfig:"ROOT_USER_ID"`
		DefaultWords []string `envconfig:"DEFAULT_WATCH_WORDS"`
		Communities  []int64  `envconfig:"COMMUNITIES"`
	} `envconfig:""`

	Scan struct {
		ChannelConcurrency int `envconfig:"SCAN_CHANNEL_CONCURRENCY" default:"4"`
		PageSize           int `envconfig:"SCAN_PAGE_SIZE" default:"100"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	Redis struct {
		Addr     string        `envconfig:"REDIS_ADDR"`
		DedupTTL time.Duration `envconfig:"UPDATE_DEDUP_TTL" default:"24h"`
	} `envconfig:""`

	Events struct {
		RabbitURL string `envconfig:"RABBITMQ_URL"`
		Exchange  string `envconfig:"EVENTS_EXCHANGE" default:"wcb.events"`
	} `envconfig:""`
}

// Load загружает конфиг из .env и окружения.
func Load() AppConfig {
	cfg, err := load(".env")
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

func load(envFile string) (AppConfig, error) {
	var cfg AppConfig
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
