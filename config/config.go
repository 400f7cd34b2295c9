package config

import (
	"errors"
	"log/slog"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	StoreMemory  = "memory"
	StoreRedis   = "redis"
	StoreLevelDB = "leveldb"
)

const (
	CounterLocal = "local"
	CounterRedis = "redis"
)

var paramPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	Environment  string        `mapstructure:"environment"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type SourceConfig struct {
	URL         string        `mapstructure:"url"`
	Format      string        `mapstructure:"format"`
	Timeout     time.Duration `mapstructure:"timeout"`
	UserAgent   string        `mapstructure:"user_agent"`
	MaxFetchRPS float64       `mapstructure:"max_fetch_rps"`
}

type CacheConfig struct {
	TTLSeconds      int    `mapstructure:"ttl_seconds"`
	Store           string `mapstructure:"store"`
	RefreshSchedule string `mapstructure:"refresh_schedule"`
}

// TTL returns the cache lifetime as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type LevelDBConfig struct {
	Path string `mapstructure:"path"`
}

type StrategyConfig struct {
	Type          string   `mapstructure:"type"`
	PrimaryChance float64  `mapstructure:"primary_chance"`
	PrimaryMatch  []string `mapstructure:"primary_match"`
	Counter       string   `mapstructure:"counter"`
}

type TagRule struct {
	Match string `mapstructure:"match"`
	Label string `mapstructure:"label"`
}

type TaggingConfig struct {
	Enabled bool      `mapstructure:"enabled"`
	Param   string    `mapstructure:"param"`
	Rules   []TagRule `mapstructure:"rules"`
}

type BotConfig struct {
	BypassEnabled bool   `mapstructure:"bypass_enabled"`
	Title         string `mapstructure:"title"`
	Description   string `mapstructure:"description"`
	Image         string `mapstructure:"image"`
}

type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
}

type AdminConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type Config struct {
	Server      ServerConfig   `mapstructure:"server"`
	Logging     LoggingConfig  `mapstructure:"logging"`
	Source      SourceConfig   `mapstructure:"source"`
	Cache       CacheConfig    `mapstructure:"cache"`
	Redis       RedisConfig    `mapstructure:"redis"`
	LevelDB     LevelDBConfig  `mapstructure:"leveldb"`
	Strategy    StrategyConfig `mapstructure:"strategy"`
	FallbackURL string         `mapstructure:"fallback_url"`
	Tagging     TaggingConfig  `mapstructure:"tagging"`
	Bot         BotConfig      `mapstructure:"bot"`
	Breaker     BreakerConfig  `mapstructure:"breaker"`
	Admin       AdminConfig    `mapstructure:"admin"`
}

// Load reads config.yaml from ./config or the working directory, overlays
// environment variables (server.address -> SERVER_ADDRESS) and validates the
// result.
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	return decode(v)
}

// LoadFile reads the given file instead of searching for config.yaml.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		slog.Error("failed to read config file", slog.String("file", path), slog.String("error", err.Error()))
		return nil, err
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "5s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("source.url", "")
	v.SetDefault("source.format", "plain")
	v.SetDefault("source.timeout", "5s")
	v.SetDefault("source.user_agent", "link-rotator/1.0")
	v.SetDefault("source.max_fetch_rps", 5)
	v.SetDefault("cache.ttl_seconds", 3600)
	v.SetDefault("cache.store", StoreMemory)
	v.SetDefault("cache.refresh_schedule", "")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "link-rotator")
	v.SetDefault("leveldb.path", "./data/cache")
	v.SetDefault("strategy.type", "sequential")
	v.SetDefault("strategy.primary_chance", 0.7)
	v.SetDefault("strategy.primary_match", []string{})
	v.SetDefault("strategy.counter", CounterLocal)
	v.SetDefault("fallback_url", "")
	v.SetDefault("tagging.enabled", false)
	v.SetDefault("tagging.param", "sub_id")
	v.SetDefault("bot.bypass_enabled", true)
	v.SetDefault("bot.title", "Redirecting")
	v.SetDefault("bot.description", "")
	v.SetDefault("bot.image", "")
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.reset_timeout", "30s")
	v.SetDefault("admin.enabled", false)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server),
		validation.Field(&c.Logging),
		validation.Field(&c.Source),
		validation.Field(&c.Cache),
		validation.Field(&c.Strategy),
		validation.Field(&c.FallbackURL,
			validation.Required,
			validation.By(validateHTTPURL),
		),
		validation.Field(&c.Redis,
			validation.When(c.Cache.Store == StoreRedis || c.Strategy.Counter == CounterRedis,
				validation.By(func(value interface{}) error {
					rc, ok := value.(RedisConfig)
					if !ok {
						return validation.NewError("validation_invalid_type", "must be a RedisConfig")
					}
					return validation.ValidateStruct(&rc,
						validation.Field(&rc.Address, validation.Required, validation.By(validateHostPort)),
						validation.Field(&rc.DB, validation.Min(0)),
					)
				}),
			),
		),
		validation.Field(&c.LevelDB,
			validation.When(c.Cache.Store == StoreLevelDB,
				validation.By(func(value interface{}) error {
					lc, ok := value.(LevelDBConfig)
					if !ok {
						return validation.NewError("validation_invalid_type", "must be a LevelDBConfig")
					}
					return validation.ValidateStruct(&lc,
						validation.Field(&lc.Path, validation.Required),
					)
				}),
			),
		),
		validation.Field(&c.Tagging),
		validation.Field(&c.Bot),
		validation.Field(&c.Breaker),
	)
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Environment,
			validation.Required,
			validation.In(EnvDev, EnvStaging, EnvProd),
		),
		validation.Field(&s.Address,
			validation.Required,
			validation.By(validateHostPort),
		),
		validation.Field(&s.ReadTimeout, validation.Min(time.Duration(0))),
		validation.Field(&s.WriteTimeout, validation.Min(time.Duration(0))),
	)
}

func (l LoggingConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level,
			validation.Required,
			validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
		),
	)
}

func (s SourceConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.URL,
			validation.Required,
			validation.By(validateHTTPURL),
		),
		validation.Field(&s.Format,
			validation.Required,
			validation.In("plain", "txt", "csv", "markdown", "md"),
		),
		validation.Field(&s.Timeout,
			validation.Required,
			validation.Min(time.Millisecond),
		),
		validation.Field(&s.MaxFetchRPS, validation.Min(0.0)),
	)
}

func (c CacheConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.TTLSeconds,
			validation.Required,
			validation.Min(1),
			validation.Max(86400),
		),
		validation.Field(&c.Store,
			validation.Required,
			validation.In(StoreMemory, StoreRedis, StoreLevelDB),
		),
	)
}

func (s StrategyConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Type,
			validation.Required,
			validation.In("sequential", "uniform", "weighted"),
		),
		validation.Field(&s.PrimaryChance,
			validation.Min(0.0),
			validation.Max(1.0),
		),
		validation.Field(&s.PrimaryMatch,
			validation.When(s.Type == "weighted", validation.Required),
		),
		validation.Field(&s.Counter,
			validation.Required,
			validation.In(CounterLocal, CounterRedis),
		),
	)
}

func (t TaggingConfig) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Param,
			validation.When(t.Enabled, validation.Required, validation.Match(paramPattern).Error("must be a plain query parameter name")),
		),
		validation.Field(&t.Rules,
			validation.Each(validation.By(validateTagRule)),
		),
	)
}

func (b BotConfig) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Image,
			validation.When(b.Image != "", validation.By(validateHTTPURL)),
		),
	)
}

func (b BreakerConfig) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.FailureThreshold, validation.Min(0)),
		validation.Field(&b.ResetTimeout,
			validation.When(b.FailureThreshold > 0, validation.Required, validation.Min(time.Millisecond)),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateHTTPURL(value interface{}) error {
	rawURL, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if rawURL == "" {
		return validation.NewError("validation_empty_url", "URL cannot be empty")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}

func validateTagRule(value interface{}) error {
	rule, ok := value.(TagRule)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a TagRule")
	}

	if strings.TrimSpace(rule.Match) == "" {
		return validation.NewError("validation_empty_match", "tag rule match cannot be empty")
	}

	if rule.Label == "" {
		return validation.NewError("validation_empty_label", "tag rule label cannot be empty")
	}

	return nil
}
