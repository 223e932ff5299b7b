package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppEnv   string `envconfig:"APP_ENV" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Storage backend selection: redis when REDIS_ADDR is set, otherwise
	// JSON files under DATA_DIR.
	RedisAddr string `envconfig:"REDIS_ADDR"`
	DataDir   string `envconfig:"DATA_DIR" default:"./data"`

	// Remote cart API mirrored to by the sync service. Empty means
	// local-only mode.
	CartAPIBaseURL string `envconfig:"CART_API_BASE_URL"`
	CSRFToken      string `envconfig:"CSRF_TOKEN"`

	// Checkout handoff target for wa.me links.
	WhatsAppPhone string `envconfig:"WHATSAPP_PHONE" default:"2347041087502"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
