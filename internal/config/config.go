// Package config loads service configuration from an optional .env file,
// an optional YAML file and MATCH_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode     string `mapstructure:"mode"`
	HTTPAddr string `mapstructure:"http_addr"`
	LogLevel string `mapstructure:"log_level"`

	PostgresDSN string `mapstructure:"postgres_dsn"`
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisPass   string `mapstructure:"redis_password"`
	RedisDB     int    `mapstructure:"redis_db"`

	AMQPURL      string `mapstructure:"amqp_url"`
	AMQPExchange string `mapstructure:"amqp_exchange"`

	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTL         time.Duration `mapstructure:"jwt_ttl"`
	VerifierSecret string        `mapstructure:"verifier_secret"`

	// LocalesDir overrides the built-in translations when set.
	LocalesDir string `mapstructure:"locales_dir"`

	Matching MatchingConfig `mapstructure:"matching"`
	Widget   WidgetConfig   `mapstructure:"widget"`
}

// MatchingConfig holds the engine's tunables.
type MatchingConfig struct {
	QueueTTL        time.Duration `mapstructure:"queue_ttl"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	ChannelIDPrefix string        `mapstructure:"channel_id_prefix"`
	ChannelIDMaxLen int           `mapstructure:"channel_id_max_len"`
	Ranks           []string      `mapstructure:"ranks"`
	RequestsPerMin  int           `mapstructure:"requests_per_minute"`
	RequestBurst    int           `mapstructure:"request_burst"`
}

// WidgetConfig configures the default chat widget markup.
type WidgetConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// Load reads configuration. Missing files are not an error; every value has
// a default or an environment override (MATCH_POSTGRES_DSN, MATCH_MATCHING_QUEUE_TTL, ...).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	v.SetEnvPrefix("MATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Info().Str("file", fileName).Msg("config file not found, using defaults and environment")
	} else {
		log.Info().Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("postgres_dsn", "host=localhost user=user password=password dbname=dailymatch port=5432 sslmode=disable")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("amqp_url", "")
	v.SetDefault("amqp_exchange", DefaultAMQPExchange)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_ttl", DefaultTokenTTL)
	v.SetDefault("verifier_secret", "")
	v.SetDefault("locales_dir", "")

	v.SetDefault("matching.queue_ttl", DefaultQueueTTL)
	v.SetDefault("matching.session_ttl", DefaultSessionTTL)
	v.SetDefault("matching.sweep_interval", DefaultSweepInterval)
	v.SetDefault("matching.channel_id_prefix", DefaultChannelIDPrefix)
	v.SetDefault("matching.channel_id_max_len", DefaultChannelIDMaxLen)
	v.SetDefault("matching.ranks", DefaultRanks)
	v.SetDefault("matching.requests_per_minute", DefaultMatchRequestsPerMinute)
	v.SetDefault("matching.request_burst", DefaultMatchRequestBurst)

	v.SetDefault("widget.base_url", "https://chat.example.com/widget")
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("mode must be debug, release or test, got %q", c.Mode)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret must be set (MATCH_JWT_SECRET)")
	}
	return c.Matching.Validate()
}

// Validate checks the matching tunables.
func (m MatchingConfig) Validate() error {
	if m.QueueTTL <= 0 {
		return fmt.Errorf("matching.queue_ttl must be positive, got %s", m.QueueTTL)
	}
	if m.SessionTTL <= 0 {
		return fmt.Errorf("matching.session_ttl must be positive, got %s", m.SessionTTL)
	}
	if m.SweepInterval <= 0 {
		return fmt.Errorf("matching.sweep_interval must be positive, got %s", m.SweepInterval)
	}
	if m.ChannelIDMaxLen <= 0 || m.ChannelIDMaxLen > DefaultChannelIDMaxLen {
		return fmt.Errorf("matching.channel_id_max_len must be in 1..%d, got %d", DefaultChannelIDMaxLen, m.ChannelIDMaxLen)
	}
	if len(m.ChannelIDPrefix) >= m.ChannelIDMaxLen/2 {
		return fmt.Errorf("matching.channel_id_prefix %q leaves no room for the unique part", m.ChannelIDPrefix)
	}
	if len(m.Ranks) == 0 {
		return fmt.Errorf("matching.ranks must not be empty")
	}
	return nil
}

// DefaultMatching returns the matching tunables with their defaults applied.
func DefaultMatching() MatchingConfig {
	return MatchingConfig{
		QueueTTL:        DefaultQueueTTL,
		SessionTTL:      DefaultSessionTTL,
		SweepInterval:   DefaultSweepInterval,
		ChannelIDPrefix: DefaultChannelIDPrefix,
		ChannelIDMaxLen: DefaultChannelIDMaxLen,
		Ranks:           append([]string(nil), DefaultRanks...),
		RequestsPerMin:  DefaultMatchRequestsPerMinute,
		RequestBurst:    DefaultMatchRequestBurst,
	}
}
