// Package config lê a configuração do gateway das variáveis de ambiente, uma
// única vez no start. Um arquivo .env opcional é carregado antes (não
// sobrescreve variáveis já definidas).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"chat-gateway/chat/application"
	"chat-gateway/chat/domain"
	"chat-gateway/chat/infra"
	rldomain "chat-gateway/middleware/ratelimit/domain"

	"github.com/joho/godotenv"
)

const DefaultAllowedOrigin = "https://xxristoskk.github.io"

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	ListenAddr    string
	AllowedOrigin string

	// APIKey vazia não é erro de start: vira 500 "Server configuration error" por requisição.
	APIKey          string
	UpstreamURL     string
	UpstreamModel   string
	UpstreamTimeout time.Duration
	UpstreamRPS     float64
	UpstreamBurst   int

	RateEnabled      bool
	RateWindow       time.Duration
	RateMax          int
	RateCleanupEvery time.Duration
	RateKeyHeader    string
	TrustXFF         bool
	AddHeaders       bool
	RateStore        string
	RateRedisPrefix  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateStatsEnabled   bool
	RateStatsPrefix    string
	RateStatsTTL       time.Duration
	RateStatsBucket    string
	RateStatsTrackKeys bool

	ConcurrencyMax     int
	ConcurrencyTimeout time.Duration

	MetricsEnabled bool
	LogLevel       string
	LogFormat      string
}

// Policy devolve a política de janela fixa configurada.
func (c Config) Policy() rldomain.Policy {
	return rldomain.Policy{Window: c.RateWindow, Max: c.RateMax}
}

// NeedsRedis indica se algum componente usa Redis.
func (c Config) NeedsRedis() bool {
	return (c.RateEnabled && c.RateStore == StoreRedis) || c.RateStatsEnabled
}

// LoadDotEnv carrega o arquivo (ENV_FILE, padrão ".env") se existir.
func LoadDotEnv() error {
	var env envReader
	path := env.str("ENV_FILE", ".env")
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load lê e valida. Não carrega .env (veja LoadDotEnv). Valores que não
// fazem parse (RATE_MAX=abc) são erro, não default.
func Load() (Config, error) {
	var env envReader
	cfg := Config{}
	cfg.ListenAddr = env.str("LISTEN_ADDR", ":8080")
	cfg.AllowedOrigin = env.str("ALLOWED_ORIGIN", DefaultAllowedOrigin)

	cfg.APIKey = strings.TrimSpace(env.str("DEEPSEEK_API_KEY", ""))
	cfg.UpstreamURL = env.str("UPSTREAM_URL", infra.DefaultURL)
	cfg.UpstreamModel = env.str("UPSTREAM_MODEL", domain.DefaultModel)
	cfg.UpstreamTimeout = env.duration("UPSTREAM_TIMEOUT", application.DefaultTimeout)
	cfg.UpstreamRPS = env.float("UPSTREAM_RPS", 0)
	cfg.UpstreamBurst = env.integer("UPSTREAM_BURST", 1)

	cfg.RateEnabled = env.boolean("RATE_ENABLED", true)
	cfg.RateWindow = env.duration("RATE_WINDOW", rldomain.DefaultWindow)
	cfg.RateMax = env.integer("RATE_MAX", rldomain.DefaultMax)
	cfg.RateCleanupEvery = env.duration("RATE_CLEANUP_EVERY", rldomain.DefaultCleanupEvery)
	cfg.RateKeyHeader = env.str("RATE_KEY_HEADER", "")
	cfg.TrustXFF = env.boolean("TRUST_XFF", true)
	cfg.AddHeaders = env.boolean("ADD_RATELIMIT_HEADERS", true)
	cfg.RateStore = strings.ToLower(strings.TrimSpace(env.str("RATE_STORE", StoreMemory)))
	cfg.RateRedisPrefix = env.str("RATE_REDIS_PREFIX", "ratelimit:window")

	cfg.RedisAddr = env.str("REDIS_ADDR", "")
	cfg.RedisPassword = env.str("REDIS_PASSWORD", "")
	cfg.RedisDB = env.integer("REDIS_DB", 0)

	cfg.RateStatsEnabled = env.boolean("RATE_STATS_ENABLED", false)
	cfg.RateStatsPrefix = env.str("RATE_STATS_PREFIX", "ratelimit:stats")
	cfg.RateStatsTTL = env.duration("RATE_STATS_TTL", 24*time.Hour)
	cfg.RateStatsBucket = env.str("RATE_STATS_BUCKET", "minute")
	cfg.RateStatsTrackKeys = env.boolean("RATE_STATS_TRACK_KEYS", false)

	cfg.ConcurrencyMax = env.integer("CONCURRENCY_MAX", 0)
	cfg.ConcurrencyTimeout = env.duration("CONCURRENCY_TIMEOUT", 0)

	cfg.MetricsEnabled = env.boolean("METRICS_ENABLED", true)
	cfg.LogLevel = env.str("LOG_LEVEL", "info")
	cfg.LogFormat = strings.ToLower(env.str("LOG_FORMAT", "json"))

	if err := env.err(); err != nil {
		return Config{}, fmt.Errorf("invalid environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.RateWindow <= 0 {
		return errors.New("RATE_WINDOW must be > 0")
	}
	if c.RateMax < 0 {
		return errors.New("RATE_MAX must be >= 0")
	}
	if c.RateStore != StoreMemory && c.RateStore != StoreRedis {
		return fmt.Errorf("RATE_STORE must be %q or %q, got %q", StoreMemory, StoreRedis, c.RateStore)
	}
	if c.NeedsRedis() && strings.TrimSpace(c.RedisAddr) == "" {
		return errors.New("REDIS_ADDR is required when RATE_STORE=redis or RATE_STATS_ENABLED=true")
	}
	if c.UpstreamTimeout <= 0 {
		return errors.New("UPSTREAM_TIMEOUT must be > 0")
	}
	if c.UpstreamRPS < 0 {
		return errors.New("UPSTREAM_RPS must be >= 0")
	}
	if c.ConcurrencyMax < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	return nil
}
