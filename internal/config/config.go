package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/spice-ledger/internal/common"
)

// Config is the typed view of every setting the binary reads.
type Config struct {
	DatabasePath string
	ServerAddr   string
	JWTSecret    string
	JWTIssuer    string
	AMQPURL      string
	AMQPExchange string
	LogLevel     string
	LogFormat    string
	UserID       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	TokenTTL     time.Duration
	CacheTTL     time.Duration
	CacheSize    int
	TrendMonths  int
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath())
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("auth.issuer", "spice")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.size", 512)
	v.SetDefault("amqp.exchange", "spice.views")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("trend.months", 6)
}

// Load reads the configuration from v. Defaults must already be set.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DatabasePath: ExpandPath(v.GetString("database.path")),
		ServerAddr:   v.GetString("server.addr"),
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		JWTSecret:    v.GetString("auth.jwt_secret"),
		JWTIssuer:    v.GetString("auth.issuer"),
		TokenTTL:     v.GetDuration("auth.token_ttl"),
		CacheTTL:     v.GetDuration("cache.ttl"),
		CacheSize:    v.GetInt("cache.size"),
		AMQPURL:      v.GetString("amqp.url"),
		AMQPExchange: v.GetString("amqp.exchange"),
		LogLevel:     v.GetString("logging.level"),
		LogFormat:    v.GetString("logging.format"),
		UserID:       v.GetString("user.id"),
		TrendMonths:  v.GetInt("trend.months"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.DatabasePath) == "" {
		problems = append(problems, "database.path cannot be empty")
	}
	if _, err := common.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}
	switch c.LogFormat {
	case "console", "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("invalid log format %q: must be console, text or json", c.LogFormat))
	}
	if c.CacheSize < 1 {
		problems = append(problems, fmt.Sprintf("cache.size must be positive, got %d", c.CacheSize))
	}
	if c.CacheTTL < 0 {
		problems = append(problems, "cache.ttl cannot be negative")
	}
	if c.TokenTTL <= 0 {
		problems = append(problems, "auth.token_ttl must be positive")
	}
	if c.TrendMonths < 1 {
		problems = append(problems, fmt.Sprintf("trend.months must be positive, got %d", c.TrendMonths))
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme %q: must be amqp or amqps", u.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "amqp.exchange cannot be empty when amqp.url is set")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", common.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// RequireServer checks the settings only the HTTP server needs.
func (c *Config) RequireServer() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("%w: auth.jwt_secret (SPICE_AUTH_JWT_SECRET)", common.ErrMissingConfig))
	}
	if c.ServerAddr == "" {
		errs = append(errs, fmt.Errorf("%w: server.addr", common.ErrMissingConfig))
	}
	return errors.Join(errs...)
}
