// Package config loads service settings from defaults, an optional
// config.yaml and MM_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jason-s-yu/arena/internal/engine"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Postgres    PostgresConfig    `mapstructure:"postgres"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Log         LogConfig         `mapstructure:"log"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Matchmaking MatchmakingConfig `mapstructure:"matchmaking"`
	Historian   HistorianConfig   `mapstructure:"historian"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type PostgresConfig struct {
	URL            string `mapstructure:"url"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	Database       string `mapstructure:"database"`
	MigrateOnStart bool   `mapstructure:"migrate_on_start"`
}

// ConnString prefers the explicit url and otherwise assembles one.
func (p PostgresConfig) ConnString() string {
	if p.URL != "" {
		return p.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     "/" + p.Database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

type RedisConfig struct {
	Addr           string `mapstructure:"addr"`
	Password       string `mapstructure:"password"`
	DB             int    `mapstructure:"db"`
	EventQueue     string `mapstructure:"event_queue"`
	PeerSetupQueue string `mapstructure:"peer_setup_queue"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

type AuthConfig struct {
	TokenExpire    time.Duration `mapstructure:"token_expire"` // 0 never expires
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	PublicKeyPath  string        `mapstructure:"public_key_path"`
}

type MatchmakingConfig struct {
	TickInterval  time.Duration  `mapstructure:"tick_interval"`
	ReadyTimeout  time.Duration  `mapstructure:"ready_timeout"`
	InitialWindow int            `mapstructure:"initial_window"`
	WindowStep    int            `mapstructure:"window_step"`
	MaxWindow     int            `mapstructure:"max_window"`
	DefaultRating int            `mapstructure:"default_rating"`
	KFactor       int            `mapstructure:"k_factor"`
	ScoreLimits   map[string]int `mapstructure:"score_limits"`
	MaxPartySize  int            `mapstructure:"max_party_size"`
	StoreTimeout  time.Duration  `mapstructure:"store_timeout"`
}

type HistorianConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	FlushDelay    time.Duration `mapstructure:"flush_delay"`
	StaleAfter    time.Duration `mapstructure:"stale_after"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)

	v.SetDefault("postgres.url", "")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.database", "arena")
	v.SetDefault("postgres.migrate_on_start", true)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.event_queue", "arena:match_events")
	v.SetDefault("redis.peer_setup_queue", "arena:peer_setup")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("auth.token_expire", "72h")
	v.SetDefault("auth.private_key_path", "")
	v.SetDefault("auth.public_key_path", "")

	d := engine.DefaultConfig()
	v.SetDefault("matchmaking.tick_interval", d.TickInterval)
	v.SetDefault("matchmaking.ready_timeout", d.ReadyTimeout)
	v.SetDefault("matchmaking.initial_window", d.InitialWindow)
	v.SetDefault("matchmaking.window_step", d.WindowStep)
	v.SetDefault("matchmaking.max_window", d.MaxWindow)
	v.SetDefault("matchmaking.default_rating", d.DefaultRating)
	v.SetDefault("matchmaking.k_factor", d.KFactor)
	v.SetDefault("matchmaking.score_limits", map[string]any{"1v1": 3, "2v2": 3, "3v3": 3})
	v.SetDefault("matchmaking.max_party_size", d.MaxPartySize)
	v.SetDefault("matchmaking.store_timeout", d.StoreTimeout)

	v.SetDefault("historian.batch_size", 20)
	v.SetDefault("historian.flush_delay", "500ms")
	v.SetDefault("historian.stale_after", "6h")
	v.SetDefault("historian.sweep_interval", "1m")
}

// Load reads config.yaml from the given directories if present, then applies
// environment overrides such as MM_MATCHMAKING_TICK_INTERVAL=2s.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("MM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	m := c.Matchmaking
	switch {
	case m.TickInterval <= 0:
		return errors.New("matchmaking.tick_interval must be positive")
	case m.ReadyTimeout <= 0:
		return errors.New("matchmaking.ready_timeout must be positive")
	case m.InitialWindow < 0 || m.MaxWindow < m.InitialWindow:
		return errors.New("matchmaking windows must satisfy 0 <= initial_window <= max_window")
	case m.MaxPartySize < 1:
		return errors.New("matchmaking.max_party_size must be at least 1")
	}
	for mode, limit := range m.ScoreLimits {
		if _, err := models.ParseMode(mode); err != nil {
			return fmt.Errorf("matchmaking.score_limits: %w", err)
		}
		if limit < 1 {
			return fmt.Errorf("matchmaking.score_limits.%s must be at least 1", mode)
		}
	}
	return nil
}

// Engine converts the matchmaking section into engine settings.
func (c *Config) Engine() engine.Config {
	m := c.Matchmaking
	limits := make(map[models.Mode]int, len(m.ScoreLimits))
	for mode, limit := range m.ScoreLimits {
		limits[models.Mode(mode)] = limit
	}
	return engine.Config{
		TickInterval:  m.TickInterval,
		ReadyTimeout:  m.ReadyTimeout,
		InitialWindow: m.InitialWindow,
		WindowStep:    m.WindowStep,
		MaxWindow:     m.MaxWindow,
		DefaultRating: m.DefaultRating,
		KFactor:       m.KFactor,
		ScoreLimits:   limits,
		MaxPartySize:  m.MaxPartySize,
		StoreTimeout:  m.StoreTimeout,
	}
}
