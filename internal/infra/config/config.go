// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Game     GameConfig     `yaml:"game"`
	Resolver ResolverConfig `yaml:"resolver"`
	Cache    CacheConfig    `yaml:"cache"`
	Metadata MetadataConfig `yaml:"metadata"`
	Spotify  SpotifyConfig  `yaml:"spotify"`
	Store    StoreConfig    `yaml:"store"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Addr string `yaml:"addr" default:":8080"`
}

// GameConfig represents gameplay rules configuration.
type GameConfig struct {
	WinThreshold int `yaml:"win_threshold" default:"10" validate:"gte=1"`
	EndDelayMs   int `yaml:"end_delay_ms" default:"2000" validate:"gte=0,lte=30000"`
	MinPlayers   int `yaml:"min_players" default:"2" validate:"gte=1"`
	MaxPlayers   int `yaml:"max_players" default:"6" validate:"gtefield=MinPlayers"`
}

// EndDelay returns the win-to-game-end delay as a duration.
func (c GameConfig) EndDelay() time.Duration {
	return time.Duration(c.EndDelayMs) * time.Millisecond
}

// ResolverConfig represents resolution queue configuration.
type ResolverConfig struct {
	MinIntervalMs     int `yaml:"min_interval_ms" default:"1000" validate:"gte=100"`
	HighPriorityBatch int `yaml:"high_priority_batch" default:"20" validate:"gte=0"`
	PollIntervalSec   int `yaml:"poll_interval_sec" default:"3" validate:"gte=1"`
}

// MinInterval returns the provider call gap as a duration.
func (c ResolverConfig) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMs) * time.Millisecond
}

// PollInterval returns the cache polling period as a duration.
func (c ResolverConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// CacheConfig represents release-date cache configuration.
type CacheConfig struct {
	Path string `yaml:"path" default:"tunetap.db"`
}

// MetadataConfig represents the metadata provider configuration.
type MetadataConfig struct {
	Provider ProviderConfig `yaml:"provider"`
}

// ProviderConfig represents a single metadata provider configuration.
type ProviderConfig struct {
	Type     string         `yaml:"type" default:"musicbrainz" validate:"required"`
	Settings map[string]any `yaml:"settings"`
}

// SpotifyConfig represents Spotify API configuration.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret" validate:"required"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"US"`
}

// StoreConfig represents session snapshot configuration.
type StoreConfig struct {
	Path        string `yaml:"path" default:"session.json"`
	DebounceMs  int    `yaml:"debounce_ms" default:"100" validate:"gte=0"`
	MaxAgeHours int    `yaml:"max_age_hours" default:"24" validate:"gte=1"`
}

// Debounce returns the snapshot write debounce as a duration.
func (c StoreConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// MaxAge returns the oldest snapshot age accepted on load.
func (c StoreConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeHours) * time.Hour
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides sensitive fields from environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}
