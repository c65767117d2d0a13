// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/reelcast/reelcast/internal/relay"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Store     StoreConfig     `mapstructure:"store"`
	Source    SourceConfig    `mapstructure:"source"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Provider string `mapstructure:"provider"` // "mongo" or "memory"
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// SourceConfig governs the listing-page extractor.
type SourceConfig struct {
	BaseURL        string `mapstructure:"base_url"` // printf template with one %d page slot
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// TelegramConfig configures the channel adapter.
type TelegramConfig struct {
	Token     string `mapstructure:"token"`
	ChannelID int64  `mapstructure:"channel_id"`
	Commands  bool   `mapstructure:"commands"` // enable the interactive command listener
}

// PublisherConfig sets pacing and backoff delays.
type PublisherConfig struct {
	PostDelaySeconds       int `mapstructure:"post_delay_seconds"`
	FailureCooldownSeconds int `mapstructure:"failure_cooldown_seconds"`
	ImageTimeoutSeconds    int `mapstructure:"image_timeout_seconds"`
}

// ScheduleConfig defines the fixed daily trigger table.
type ScheduleConfig struct {
	Timezone     string   `mapstructure:"timezone"`
	HarvestAt    string   `mapstructure:"harvest_at"`
	ReleaseAt    []string `mapstructure:"release_at"`
	ReleaseAllAt string   `mapstructure:"release_all_at"`
	BatchSize    int      `mapstructure:"batch_size"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("REELCAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("store.provider", "memory")
	v.SetDefault("store.database", "reelcast")
	v.SetDefault("source.base_url", "https://uiiumovie.fun/page/%d/")
	v.SetDefault("source.user_agent", "Mozilla/5.0 (compatible; reelcast/1.0)")
	v.SetDefault("source.timeout_seconds", 15)
	v.SetDefault("telegram.commands", true)
	v.SetDefault("publisher.post_delay_seconds", 3)
	v.SetDefault("publisher.failure_cooldown_seconds", 5)
	v.SetDefault("publisher.image_timeout_seconds", 15)
	v.SetDefault("schedule.timezone", "Asia/Kolkata")
	v.SetDefault("schedule.harvest_at", "11:30")
	v.SetDefault("schedule.release_at", []string{"12:00", "15:00", "19:00", "22:00"})
	v.SetDefault("schedule.release_all_at", "23:55")
	v.SetDefault("schedule.batch_size", 4)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Store.Provider {
	case "memory":
	case "mongo":
		if c.Store.URI == "" {
			return fmt.Errorf("store.uri must be set when store.provider is mongo")
		}
	default:
		return fmt.Errorf("unknown store provider: %s", c.Store.Provider)
	}
	if !strings.Contains(c.Source.BaseURL, "%d") {
		return fmt.Errorf("source.base_url must contain a %%d page placeholder")
	}
	if c.Source.TimeoutSeconds <= 0 {
		return fmt.Errorf("source.timeout_seconds must be > 0")
	}
	if c.Schedule.BatchSize <= 0 {
		return fmt.Errorf("schedule.batch_size must be > 0")
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	if _, err := c.Schedule.Entries(); err != nil {
		return err
	}
	return nil
}

// Entries compiles the schedule config into the static trigger table.
func (c ScheduleConfig) Entries() ([]relay.ScheduleEntry, error) {
	entries := make([]relay.ScheduleEntry, 0, len(c.ReleaseAt)+2)

	h, m, err := parseTimeOfDay(c.HarvestAt)
	if err != nil {
		return nil, fmt.Errorf("schedule.harvest_at: %w", err)
	}
	entries = append(entries, relay.ScheduleEntry{Hour: h, Minute: m, Action: relay.ActionHarvest})

	for _, at := range c.ReleaseAt {
		h, m, err := parseTimeOfDay(at)
		if err != nil {
			return nil, fmt.Errorf("schedule.release_at: %w", err)
		}
		entries = append(entries, relay.ScheduleEntry{
			Hour:   h,
			Minute: m,
			Action: relay.ActionReleaseN,
			Count:  c.BatchSize,
		})
	}

	if c.ReleaseAllAt != "" {
		h, m, err := parseTimeOfDay(c.ReleaseAllAt)
		if err != nil {
			return nil, fmt.Errorf("schedule.release_all_at: %w", err)
		}
		entries = append(entries, relay.ScheduleEntry{Hour: h, Minute: m, Action: relay.ActionReleaseAll})
	}

	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		slot := fmt.Sprintf("%s@%02d:%02d", e.Action, e.Hour, e.Minute)
		if _, dup := seen[slot]; dup {
			return nil, fmt.Errorf("duplicate schedule entry %s", slot)
		}
		seen[slot] = struct{}{}
	}

	return entries, nil
}

// Location resolves the configured timezone.
func (c ScheduleConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	return loc, nil
}

func parseTimeOfDay(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time of day %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// ImageTimeout converts the image fetch timeout into a duration.
func (c PublisherConfig) ImageTimeout() time.Duration {
	return time.Duration(c.ImageTimeoutSeconds) * time.Second
}

// PostDelay converts the inter-post pacing delay into a duration.
func (c PublisherConfig) PostDelay() time.Duration {
	return time.Duration(c.PostDelaySeconds) * time.Second
}

// FailureCooldown converts the failure cooldown into a duration.
func (c PublisherConfig) FailureCooldown() time.Duration {
	return time.Duration(c.FailureCooldownSeconds) * time.Second
}
