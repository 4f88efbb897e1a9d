// Package config loads console configuration from YAML files and the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// APIConfig configures the REST backend client.
type APIConfig struct {
	// BaseURL is the root of the REST API, e.g. https://api.greonxpert.com/api.
	BaseURL string `yaml:"base_url"`

	// Token is the admin session token used for authenticated requests.
	Token string `yaml:"token"`

	// Timeout bounds every request.
	Timeout time.Duration `yaml:"timeout"`

	// ListRetries is how many times list refetches are retried.
	ListRetries int `yaml:"list_retries"`
}

// RelayConfig configures the push-notification relay.
type RelayConfig struct {
	Address        string   `yaml:"address"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// PublishSecret guards POST /rooms/{room}/events.
	PublishSecret string `yaml:"publish_secret"`

	// MaxConnections degrades the health report once reached.
	MaxConnections int `yaml:"max_connections"`

	// MaxPerIP caps websocket connections from one address.
	MaxPerIP int `yaml:"max_per_ip"`

	// PubSub selects the fan-out backend: "memory" or "redis".
	PubSub string      `yaml:"pubsub"`
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig configures the Redis pub/sub backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// WizardConfig configures the submission wizards.
type WizardConfig struct {
	// LinkToken scopes the access validation endpoint.
	LinkToken string `yaml:"link_token"`

	// FlashTTL is how long transient banners stay visible.
	FlashTTL time.Duration `yaml:"flash_ttl"`

	// PreviewBaseURL prefixes preview references.
	PreviewBaseURL string `yaml:"preview_base_url"`
}

// WatchConfig configures the push-notification client.
type WatchConfig struct {
	URL string `yaml:"url"`

	// Codec is "json" or "msgpack".
	Codec string `yaml:"codec"`

	// RefreshEvery is the minimum spacing between list refetches.
	RefreshEvery time.Duration `yaml:"refresh_every"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`

	// File receives logs when set; terminal front ends default to it.
	File string `yaml:"file"`
}

// Config combines all configuration settings.
type Config struct {
	API    APIConfig    `yaml:"api"`
	Relay  RelayConfig  `yaml:"relay"`
	Wizard WizardConfig `yaml:"wizard"`
	Watch  WatchConfig  `yaml:"watch"`
	Log    LogConfig    `yaml:"log"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:     "http://localhost:5000/api",
			Timeout:     30 * time.Second,
			ListRetries: 3,
		},
		Relay: RelayConfig{
			Address:        ":8088",
			MaxConnections: 10000,
			MaxPerIP:       32,
			PubSub:         "memory",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "greonxpert:",
			},
		},
		Wizard: WizardConfig{
			FlashTTL:       5 * time.Second,
			PreviewBaseURL: "/previews/",
		},
		Watch: WatchConfig{
			URL:          "ws://localhost:8088/ws",
			Codec:        "json",
			RefreshEvery: 2 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Environment variables that override file values.
const (
	EnvAPIURL    = "GREONXPERT_API_URL"
	EnvToken     = "GREONXPERT_TOKEN"
	EnvLinkToken = "GREONXPERT_LINK_TOKEN"
	EnvRelayAddr = "GREONXPERT_RELAY_ADDR"
	EnvRedisAddr = "GREONXPERT_REDIS_ADDR"
	EnvLogLevel  = "GREONXPERT_LOG_LEVEL"
)

// Load reads path (if non-empty) over the defaults and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. lookup is os.LookupEnv in production.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(EnvAPIURL, &c.API.BaseURL)
	set(EnvToken, &c.API.Token)
	set(EnvLinkToken, &c.Wizard.LinkToken)
	set(EnvRelayAddr, &c.Relay.Address)
	set(EnvRedisAddr, &c.Relay.Redis.Addr)
	set(EnvLogLevel, &c.Log.Level)
}

// Validate validates the configuration.
func (c Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ErrInvalidAPIURL)
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, ErrInvalidTimeout)
	}
	switch c.Relay.PubSub {
	case "memory":
	case "redis":
		if c.Relay.Redis.Addr == "" {
			errs = append(errs, ErrRedisAddrRequired)
		}
	default:
		errs = append(errs, ErrUnknownPubSub)
	}
	switch strings.ToLower(c.Watch.Codec) {
	case "json", "msgpack":
	default:
		errs = append(errs, ErrUnknownCodec)
	}

	return errors.Join(errs...)
}

// Configuration errors.
var (
	ErrInvalidAPIURL     = configError("api.base_url must be an absolute URL")
	ErrInvalidTimeout    = configError("api.timeout must be positive")
	ErrUnknownPubSub     = configError(`relay.pubsub must be "memory" or "redis"`)
	ErrRedisAddrRequired = configError("relay.redis.addr is required for the redis backend")
	ErrUnknownCodec      = configError(`watch.codec must be "json" or "msgpack"`)
)

type configError string

func (e configError) Error() string { return string(e) }
