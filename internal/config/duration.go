package config

import (
	"fmt"
	"strings"
	"time"
)

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// durationOr resolves a validated duration string, falling back to def when
// empty or zero.
func durationOr(raw string, def time.Duration) time.Duration {
	d, err := ParseDurationField("", raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func (c *Config) BacklogTimeout() time.Duration  { return durationOr(c.Backlog.Timeout, 10*time.Second) }
func (c *Config) WebhookTimeout() time.Duration  { return durationOr(c.Webhook.Timeout, 10*time.Second) }
func (c *Config) TelegramTimeout() time.Duration { return durationOr(c.Telegram.Timeout, 10*time.Second) }
func (c *Config) RunTimeout() time.Duration      { return durationOr(c.Alert.RunTimeout, 2*time.Minute) }

// StorageDurations returns busy timeout and retention; zero when unset.
func (c *Config) StorageDurations() (busy, retention time.Duration) {
	if c.Storage == nil {
		return 0, 0
	}
	return durationOr(c.Storage.BusyTimeout, 0), durationOr(c.Storage.Retention, 0)
}
