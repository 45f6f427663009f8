package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	"github.com/davidbz/modelarena/internal/adapter/anthropic"
	"github.com/davidbz/modelarena/internal/adapter/openai"
	"github.com/davidbz/modelarena/internal/adapter/xai"
)

// Config represents the service configuration.
type Config struct {
	Server    ServerConfig
	CORS      CORSConfig
	Storage   StorageConfig
	OpenAI    openai.Config
	Anthropic anthropic.Config
	XAI       xai.Config
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"300"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization,X-User-Id"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// StorageConfig contains persistence settings for comparisons and sessions.
type StorageConfig struct {
	SQLitePath      string `env:"SQLITE_PATH"       envDefault:"modelarena.db"`
	RedisAddr       string `env:"REDIS_ADDR"        envDefault:"localhost:6379"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	RedisDB         int    `env:"REDIS_DB"          envDefault:"0"`
	SessionTTLHours int    `env:"SESSION_TTL_HOURS" envDefault:"720"`
}

// DepConfig is used for dependency injection with dig. Adapter configs need
// named fields; their embedded names would all collide on "Config".
type DepConfig struct {
	dig.Out
	Server    *ServerConfig
	CORS      *CORSConfig
	Storage   *StorageConfig
	OpenAI    openai.Config
	Anthropic anthropic.Config
	XAI       xai.Config
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// ParseDependenciesConfig returns sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		Server:    &cfg.Server,
		CORS:      &cfg.CORS,
		Storage:   &cfg.Storage,
		OpenAI:    cfg.OpenAI,
		Anthropic: cfg.Anthropic,
		XAI:       cfg.XAI,
	}
}
