// Package config handles application configuration from environment variables
// and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	// TargetChat is where notifications go: a numeric chat ID or @username.
	TargetChat   string
	Groups       []string
	Keywords     []string
	DatabasePath string
	LogLevel     string
	AllowedUsers []int64

	FallbackMinutes   int
	RetentionDays     int
	RetentionSchedule string

	PacingRate   float64
	PacingBurst  int
	PacingJitter time.Duration

	// FeedBridgeURL is a URL template with %s for a public channel handle.
	// Empty disables feed polling.
	FeedBridgeURL    string
	FeedPollInterval time.Duration

	// MetricsAddr enables the /metrics and /healthz listener when set.
	MetricsAddr string
}

// Load reads configuration from the environment. If CONFIG_FILE is set, the
// YAML file it names supplies values the environment does not override.
func Load() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	allowed, err := parseUserIDs(listValue(v.Get("allowed_users")))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		TelegramBotToken:  v.GetString("telegram_bot_token"),
		TargetChat:        strings.TrimSpace(v.GetString("target_chat")),
		Groups:            listValue(v.Get("groups_to_monitor")),
		Keywords:          listValue(v.Get("keywords")),
		DatabasePath:      v.GetString("database_path"),
		LogLevel:          v.GetString("log_level"),
		AllowedUsers:      allowed,
		FallbackMinutes:   v.GetInt("fallback_minutes"),
		RetentionDays:     v.GetInt("retention_days"),
		RetentionSchedule: v.GetString("retention_schedule"),
		PacingRate:        v.GetFloat64("pacing_rate"),
		PacingBurst:       v.GetInt("pacing_burst"),
		PacingJitter:      v.GetDuration("pacing_jitter"),
		FeedBridgeURL:     v.GetString("feed_bridge_url"),
		FeedPollInterval:  v.GetDuration("feed_poll_interval"),
		MetricsAddr:       v.GetString("metrics_addr"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DatabasePath resolves the database location the same way Load does,
// without requiring the rest of the monitor's settings.
func DatabasePath() (string, error) {
	v, err := newViper()
	if err != nil {
		return "", err
	}
	return v.GetString("database_path"), nil
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("database_path", "./data/message_times.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("fallback_minutes", 10)
	v.SetDefault("retention_days", 30)
	v.SetDefault("retention_schedule", "@daily")
	v.SetDefault("pacing_rate", 1.0)
	v.SetDefault("pacing_burst", 1)
	v.SetDefault("pacing_jitter", "2s")
	v.SetDefault("feed_bridge_url", "")
	v.SetDefault("feed_poll_interval", "5m")
	v.SetDefault("metrics_addr", "")

	for _, key := range []string{"telegram_bot_token", "target_chat", "groups_to_monitor", "keywords", "allowed_users"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}
	v.AutomaticEnv()

	if err := v.BindEnv("config_file"); err != nil {
		return nil, fmt.Errorf("bind config_file: %w", err)
	}
	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	return v, nil
}

// Validate checks the values the monitor cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.TelegramBotToken == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is required"))
	}
	if c.TargetChat == "" {
		errs = append(errs, errors.New("TARGET_CHAT is required"))
	}
	if len(c.Groups) == 0 {
		errs = append(errs, errors.New("GROUPS_TO_MONITOR must list at least one group"))
	}
	if len(c.Keywords) == 0 {
		errs = append(errs, errors.New("KEYWORDS must list at least one keyword"))
	}
	if c.FallbackMinutes < 0 {
		errs = append(errs, fmt.Errorf("FALLBACK_MINUTES must not be negative, got %d", c.FallbackMinutes))
	}
	if c.RetentionDays < 1 {
		errs = append(errs, fmt.Errorf("RETENTION_DAYS must be at least 1, got %d", c.RetentionDays))
	}
	if c.PacingRate < 0 {
		errs = append(errs, fmt.Errorf("PACING_RATE must not be negative, got %v", c.PacingRate))
	}
	if c.PacingJitter < 0 {
		errs = append(errs, fmt.Errorf("PACING_JITTER must not be negative, got %v", c.PacingJitter))
	}
	if c.FeedBridgeURL != "" {
		if !strings.Contains(c.FeedBridgeURL, "%s") {
			errs = append(errs, errors.New("FEED_BRIDGE_URL must contain %s for the channel handle"))
		}
		if c.FeedPollInterval < time.Minute {
			errs = append(errs, fmt.Errorf("FEED_POLL_INTERVAL must be at least 1m, got %v", c.FeedPollInterval))
		}
	}
	return errors.Join(errs...)
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// listValue accepts a comma separated string (environment) or a list (YAML)
// and returns the trimmed, non-empty items in order.
func listValue(raw any) []string {
	var items []string
	switch x := raw.(type) {
	case nil:
		return nil
	case string:
		items = strings.Split(x, ",")
	case []string:
		items = x
	case []any:
		for _, it := range x {
			items = append(items, fmt.Sprint(it))
		}
	default:
		items = []string{fmt.Sprint(x)}
	}

	var out []string
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func parseUserIDs(raw []string) ([]int64, error) {
	var ids []int64
	for _, s := range raw {
		uid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
		}
		ids = append(ids, uid)
	}
	return ids, nil
}
