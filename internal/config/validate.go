package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"backlogalert/internal/scheduler"
)

var ErrNoWebhook = errors.New("webhook.url is required (or set " + EnvSlackPostURL + ")")

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate reports every problem at once.
func Validate(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if strings.TrimSpace(c.Backlog.Space) == "" && strings.TrimSpace(c.Backlog.BaseURL) == "" {
		add("backlog.space is required (or set %s)", EnvBacklogSpace)
	}
	if strings.TrimSpace(c.Backlog.APIKey) == "" {
		add("backlog.api_key is required (or set %s)", EnvBacklogAPIKey)
	}
	if c.Backlog.ProjectID <= 0 {
		add("backlog.project_id is required (or set %s)", EnvBacklogProjectID)
	}
	if c.Backlog.Count > 100 {
		add("backlog.count must be <= 100")
	}

	if u := strings.TrimSpace(c.Webhook.URL); u == "" {
		errs = append(errs, ErrNoWebhook)
	} else if pu, err := url.Parse(u); err != nil || (pu.Scheme != "https" && pu.Scheme != "http") || pu.Host == "" {
		add("webhook.url: invalid URL")
	}

	if c.Telegram.Enabled {
		if strings.TrimSpace(c.Telegram.Token) == "" {
			add("telegram.token is required when telegram.enabled (or set %s)", EnvTelegramToken)
		}
		if c.Telegram.ChatID == 0 {
			add("telegram.chat_id is required when telegram.enabled")
		}
	}

	for path, raw := range map[string]string{
		"backlog.timeout":   c.Backlog.Timeout,
		"webhook.timeout":   c.Webhook.Timeout,
		"telegram.timeout":  c.Telegram.Timeout,
		"alert.run_timeout": c.Alert.RunTimeout,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}

	switch strings.ToLower(strings.TrimSpace(c.Server.Mode)) {
	case "", "release", "debug", "test":
	default:
		add("server.mode: unknown gin mode %q", c.Server.Mode)
	}

	if c.Scheduler.Enabled {
		if err := validateSchedule(c.Scheduler.Spec); err != nil {
			add("scheduler.spec: %v", err)
		}
	}
	if tz := strings.TrimSpace(c.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add("scheduler.timezone: %v", err)
		}
	}

	if s := c.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none":
		case "file", "sqlite", "sqlite3":
			if strings.TrimSpace(s.Path) == "" {
				add("storage.path is required for driver %q", s.Driver)
			}
		default:
			add("storage.driver: unknown driver %q", s.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
		if _, err := ParseDurationField("storage.retention", s.Retention); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// validateSchedule accepts every form the scheduler registers. Cron
// expressions are checked with the same parser options the scheduler uses.
func validateSchedule(spec string) error {
	ps, err := scheduler.ParseSchedule(spec)
	if err != nil {
		return err
	}
	if ps.Kind == scheduler.SpecInterval {
		return nil
	}
	_, err = cronParser.Parse(ps.Cron)
	return err
}
