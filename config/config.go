// Package config loads service configuration with viper: built-in defaults,
// then an optional config.local.yaml or config.yaml, then ANALYTICS_* env vars.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"futures-analytics/internal/logger"
	"futures-analytics/internal/model"
)

// EnvPrefix prefixes every environment override, e.g. ANALYTICS_REDIS_ADDR.
const EnvPrefix = "ANALYTICS"

// Config holds all application configuration.
type Config struct {
	Service    ServiceConfig    `mapstructure:"service"`
	Log        logger.Config    `mapstructure:"log"`
	Feed       FeedConfig       `mapstructure:"feed"`
	Redis      RedisConfig      `mapstructure:"redis"`
	SQLite     SQLiteConfig     `mapstructure:"sqlite"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Alert      AlertConfig      `mapstructure:"alert"`
	Market     MarketConfig     `mapstructure:"market"`
	TickServer TickServerConfig `mapstructure:"tickserver"`
}

type ServiceConfig struct {
	Name string `mapstructure:"name"`
}

// FeedConfig points the ingest at the upstream tick websocket.
type FeedConfig struct {
	URL          string        `mapstructure:"url"`
	ReconnectMin time.Duration `mapstructure:"reconnect_min"`
	ReconnectMax time.Duration `mapstructure:"reconnect_max"`
	Buffer       int           `mapstructure:"buffer"`
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	StreamMaxLen int64         `mapstructure:"stream_maxlen"`
	LatestTTL    time.Duration `mapstructure:"latest_ttl"`
}

type SQLiteConfig struct {
	Path           string `mapstructure:"path"`
	BootstrapLimit int    `mapstructure:"bootstrap_limit"`
	Archive        bool   `mapstructure:"archive"` // persist finalized 1m candles
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// PipelineConfig configures the analysis session and risk defaults.
type PipelineConfig struct {
	Symbol             string        `mapstructure:"symbol"`
	Periods            string        `mapstructure:"periods"` // comma-separated minutes, e.g. "1,5,15"
	MaxCandles         int           `mapstructure:"max_candles"`
	IdleFlush          time.Duration `mapstructure:"idle_flush"`
	Margin             float64       `mapstructure:"margin"`
	RiskLevel          string        `mapstructure:"risk_level"`
	ContractMultiplier float64       `mapstructure:"contract_multiplier"`
}

// AlertConfig enables strong-signal alerts. Alerts are always logged; the
// webhook and Telegram are used when configured.
type AlertConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	WebhookURL     string `mapstructure:"webhook_url"`
	TelegramToken  string `mapstructure:"telegram_token"`
	TelegramChatID string `mapstructure:"telegram_chat_id"`
}

// MarketConfig lists exchange holidays as "2006-01-02" dates.
type MarketConfig struct {
	Holidays []string `mapstructure:"holidays"`
}

// TickServerConfig drives the development tick source.
type TickServerConfig struct {
	Addr       string        `mapstructure:"addr"`
	Interval   time.Duration `mapstructure:"interval"`
	Symbol     string        `mapstructure:"symbol"`
	StartPrice float64       `mapstructure:"start_price"`
	// SessionsOnly pauses the stream outside trading sessions.
	SessionsOnly bool `mapstructure:"sessions_only"`
}

// Load reads configuration. Extra search paths are tried before ./configs and ".".
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// config.local.yaml wins over config.yaml; neither is required
	v.SetConfigName("config.local")
	if err := v.ReadInConfig(); err != nil {
		v.SetConfigName("config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "analyticsd")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file_path", "")
	v.SetDefault("log.max_size", 200)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.compress", false)

	v.SetDefault("feed.url", "ws://localhost:9001/ws")
	v.SetDefault("feed.reconnect_min", time.Second)
	v.SetDefault("feed.reconnect_max", 30*time.Second)
	v.SetDefault("feed.buffer", 1024)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream_maxlen", 10000)
	v.SetDefault("redis.latest_ttl", 30*time.Minute)

	v.SetDefault("sqlite.path", "data/candles.db")
	v.SetDefault("sqlite.bootstrap_limit", 500)
	v.SetDefault("sqlite.archive", true)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("pipeline.symbol", "AG")
	v.SetDefault("pipeline.periods", "1,5,15,30,60")
	v.SetDefault("pipeline.max_candles", 500)
	v.SetDefault("pipeline.idle_flush", time.Duration(0))
	v.SetDefault("pipeline.margin", 0.08)
	v.SetDefault("pipeline.risk_level", "moderate")
	v.SetDefault("pipeline.contract_multiplier", 15.0)

	v.SetDefault("alert.enabled", true)
	v.SetDefault("alert.webhook_url", "")
	v.SetDefault("alert.telegram_token", "")
	v.SetDefault("alert.telegram_chat_id", "")

	v.SetDefault("tickserver.addr", ":9001")
	v.SetDefault("tickserver.interval", 2*time.Second)
	v.SetDefault("tickserver.symbol", "AG")
	v.SetDefault("tickserver.start_price", 24800.0)
	v.SetDefault("tickserver.sessions_only", false)
}

// ParsePeriods parses Pipeline.Periods into candle periods, rejecting
// unknown labels and skipping blanks and duplicates.
func (c *Config) ParsePeriods() ([]model.Period, error) {
	parts := strings.Split(c.Pipeline.Periods, ",")
	periods := make([]model.Period, 0, len(parts))
	seen := make(map[model.Period]bool, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p, err := model.ParsePeriod(part)
		if err != nil {
			return nil, fmt.Errorf("pipeline.periods: %w", err)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		periods = append(periods, p)
	}
	if len(periods) == 0 {
		return nil, fmt.Errorf("pipeline.periods: %w: none configured", model.ErrUnknownPeriod)
	}
	return periods, nil
}
