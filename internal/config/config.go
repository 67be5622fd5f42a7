// internal/config/config.go
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

// Server is the configuration of cmd/server.
type Server struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	QueueName     string `env:"HISTORIAN_QUEUE_NAME" envDefault:"bombchip_actions"`

	RoomTTL       time.Duration `env:"ROOM_TTL" envDefault:"30m"`
	InviteTTL     time.Duration `env:"INVITE_TTL" envDefault:"30m"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`

	AuthPrivateKeyPath string        `env:"AUTH_PRIVATE_KEY_PATH"`
	AuthPublicKeyPath  string        `env:"AUTH_PUBLIC_KEY_PATH"`
	TokenTTL           time.Duration `env:"TOKEN_EXPIRE_TIME" envDefault:"0s"`

	WSOriginPatterns []string `env:"WS_ORIGIN_PATTERNS" envDefault:"*" envSeparator:","`

	APIRateLimit  int           `env:"API_RATE_LIMIT" envDefault:"30"`
	APIRateWindow time.Duration `env:"API_RATE_WINDOW" envDefault:"1m"`

	Log Log
}

// Historian is the configuration of cmd/historian.
type Historian struct {
	DatabaseURL   string        `env:"DATABASE_URL,required,notEmpty"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	QueueName     string        `env:"HISTORIAN_QUEUE_NAME" envDefault:"bombchip_actions"`
	BatchSize     int           `env:"HISTORIAN_BATCH_SIZE" envDefault:"100"`
	FlushInterval time.Duration `env:"HISTORIAN_FLUSH_INTERVAL" envDefault:"5s"`

	Log Log
}

// Log configures the process logger.
type Log struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
	JSON  bool   `env:"LOG_JSON" envDefault:"false"`
}

func LoadServer() (Server, error) {
	var cfg Server
	err := env.Parse(&cfg)
	return cfg, err
}

func LoadHistorian() (Historian, error) {
	var cfg Historian
	err := env.Parse(&cfg)
	return cfg, err
}

// NewLogger builds the logrus logger every component receives.
func (l Log) NewLogger() *logrus.Logger {
	logger := logrus.New()
	if l.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		logger.Warnf("unknown LOG_LEVEL %q, using info", l.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
