package config

// Config is the on-disk configuration (JSON or YAML).
//
// Durations are Go duration strings ("10s", "2m"). Secrets may be left empty
// here and supplied through the environment instead (see ApplyEnv).
type Config struct {
	Backlog   BacklogConfig   `json:"backlog"`
	Webhook   WebhookConfig   `json:"webhook"`
	Telegram  TelegramConfig  `json:"telegram,omitempty"`
	Alert     AlertConfig     `json:"alert,omitempty"`
	Server    ServerConfig    `json:"server,omitempty"`
	Scheduler SchedulerConfig `json:"scheduler,omitempty"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
}

type BacklogConfig struct {
	Space     string `json:"space"`
	Domain    string `json:"domain,omitempty"`   // default: backlog.jp
	BaseURL   string `json:"base_url,omitempty"` // overrides space/domain
	APIKey    string `json:"api_key,omitempty"`
	ProjectID int64  `json:"project_id"`
	StatusIDs []int  `json:"status_ids,omitempty"` // default: 1,2,3
	Count     int    `json:"count,omitempty"`      // default: 20
	Timeout   string `json:"timeout,omitempty"`    // default: 10s
}

type WebhookConfig struct {
	URL        string `json:"url,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"` // default: 1
	Timeout    string `json:"timeout,omitempty"`      // default: 10s
}

// TelegramConfig enables an optional mirror of every notification.
type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	Token    string `json:"token,omitempty"`
	ChatID   int64  `json:"chat_id,omitempty"`
	ThreadID int    `json:"thread_id,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
}

type AlertConfig struct {
	RunTimeout   string `json:"run_timeout,omitempty"`    // default: 2m
	DevEnvVar    string `json:"dev_env_var,omitempty"`    // default: GAE_ENV
	DevEnvPrefix string `json:"dev_env_prefix,omitempty"` // default: localdev
}

type ServerConfig struct {
	Enabled bool        `json:"enabled"`
	Addr    string      `json:"addr,omitempty"` // default: :8080
	Mode    string      `json:"mode,omitempty"` // gin mode: release | debug | test
	Pprof   PprofConfig `json:"pprof,omitempty"`
}

// PprofConfig mounts /debug/pprof on the HTTP server.
//
// Without a token it is only mounted when addr is a loopback address.
type PprofConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"` // do not log
}

type SchedulerConfig struct {
	Enabled  bool   `json:"enabled"`
	Spec     string `json:"spec,omitempty"`     // default: "0 9 * * *"
	Timezone string `json:"timezone,omitempty"` // default: Asia/Tokyo
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the optional run audit log.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/backlogalert.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
	Retention   string `json:"retention,omitempty"`    // sqlite; e.g. "720h"
}

const (
	DefaultBacklogDomain = "backlog.jp"
	DefaultCount         = 20
	DefaultServerAddr    = ":8080"
	DefaultCronSpec      = "0 9 * * *"
	DefaultTimezone      = "Asia/Tokyo"
	DefaultDevEnvVar     = "GAE_ENV"
	DefaultDevEnvPrefix  = "localdev"
)

// ApplyDefaults fills zero values in place.
func (c *Config) ApplyDefaults() {
	if c.Backlog.Domain == "" {
		c.Backlog.Domain = DefaultBacklogDomain
	}
	if len(c.Backlog.StatusIDs) == 0 {
		c.Backlog.StatusIDs = []int{1, 2, 3}
	}
	if c.Backlog.Count <= 0 {
		c.Backlog.Count = DefaultCount
	}
	if c.Webhook.RatePerSec <= 0 {
		c.Webhook.RatePerSec = 1
	}
	if c.Alert.DevEnvVar == "" {
		c.Alert.DevEnvVar = DefaultDevEnvVar
	}
	if c.Alert.DevEnvPrefix == "" {
		c.Alert.DevEnvPrefix = DefaultDevEnvPrefix
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Scheduler.Spec == "" {
		c.Scheduler.Spec = DefaultCronSpec
	}
	if c.Scheduler.Timezone == "" {
		c.Scheduler.Timezone = DefaultTimezone
	}
}
