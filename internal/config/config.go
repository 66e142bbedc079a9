package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix          = "BUILDSHARE"
	defaultHTTPAddress = "0.0.0.0:8080"
	defaultDriver      = "sqlite"
	defaultDSN         = "buildshare.db"
	defaultLogLevel    = "info"
	defaultWebsiteURL  = "https://buildshare.gg"
)

// RateLimits holds the per-minute request budget for each endpoint class.
type RateLimits struct {
	Enabled        bool
	BuildCreate    int
	Vote           int
	Feedback       int
	AnalyticsWrite int
	Read           int
}

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress     string
	DatabaseDriver  string
	DatabaseDSN     string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	LogLevel        string
	WebsiteURL      string
	StorageTimeout  time.Duration
	PopularCacheTTL time.Duration
	RateLimits      RateLimits
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDriver)
	configViper.SetDefault("database.dsn", defaultDSN)
	configViper.SetDefault("database.op_timeout_s", 5)
	configViper.SetDefault("redis.addr", "")
	configViper.SetDefault("redis.password", "")
	configViper.SetDefault("redis.db", 0)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("website.url", defaultWebsiteURL)
	configViper.SetDefault("analytics.popular_cache_ttl_s", 60)
	configViper.SetDefault("ratelimit.enabled", true)
	configViper.SetDefault("ratelimit.build_create_per_min", 10)
	configViper.SetDefault("ratelimit.vote_per_min", 30)
	configViper.SetDefault("ratelimit.feedback_per_min", 20)
	configViper.SetDefault("ratelimit.analytics_write_per_min", 60)
	configViper.SetDefault("ratelimit.read_per_min", 120)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     configViper.GetString("http.address"),
		DatabaseDriver:  strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabaseDSN:     configViper.GetString("database.dsn"),
		RedisAddr:       configViper.GetString("redis.addr"),
		RedisPassword:   configViper.GetString("redis.password"),
		RedisDB:         configViper.GetInt("redis.db"),
		LogLevel:        configViper.GetString("log.level"),
		WebsiteURL:      strings.TrimRight(configViper.GetString("website.url"), "/"),
		StorageTimeout:  time.Duration(configViper.GetInt("database.op_timeout_s")) * time.Second,
		PopularCacheTTL: time.Duration(configViper.GetInt("analytics.popular_cache_ttl_s")) * time.Second,
		RateLimits: RateLimits{
			Enabled:        configViper.GetBool("ratelimit.enabled"),
			BuildCreate:    configViper.GetInt("ratelimit.build_create_per_min"),
			Vote:           configViper.GetInt("ratelimit.vote_per_min"),
			Feedback:       configViper.GetInt("ratelimit.feedback_per_min"),
			AnalyticsWrite: configViper.GetInt("ratelimit.analytics_write_per_min"),
			Read:           configViper.GetInt("ratelimit.read_per_min"),
		},
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.DatabaseDriver)
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.StorageTimeout <= 0 {
		return fmt.Errorf("database.op_timeout_s must be positive")
	}
	if c.RateLimits.Enabled {
		budgets := map[string]int{
			"ratelimit.build_create_per_min":    c.RateLimits.BuildCreate,
			"ratelimit.vote_per_min":            c.RateLimits.Vote,
			"ratelimit.feedback_per_min":        c.RateLimits.Feedback,
			"ratelimit.analytics_write_per_min": c.RateLimits.AnalyticsWrite,
			"ratelimit.read_per_min":            c.RateLimits.Read,
		}
		for key, budget := range budgets {
			if budget <= 0 {
				return fmt.Errorf("%s must be positive", key)
			}
		}
	}
	return nil
}
