package config

import (
	"reflect"
	"strings"

	logx "backlogalert/pkg/logx"
)

// Change summarises a reload.
type Change struct {
	Sections []string     // changed top-level sections
	Fields   []logx.Field // safe attrs for logging; never secrets
	// Restart lists changed sections that only take effect after a restart.
	Restart []string
}

func (c Change) Empty() bool { return len(c.Sections) == 0 }

// Has reports whether section changed.
func (c Change) Has(section string) bool {
	for _, s := range c.Sections {
		if s == section {
			return true
		}
	}
	return false
}

// SummarizeConfigChange compares two configs. Logging and scheduler changes
// apply live; every other section is flagged for restart.
func SummarizeConfigChange(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var ch Change
	mark := func(section string, live bool, fields ...logx.Field) {
		ch.Sections = append(ch.Sections, section)
		ch.Fields = append(ch.Fields, fields...)
		if !live {
			ch.Restart = append(ch.Restart, section)
		}
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		mark("logging", true,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Scheduler, newCfg.Scheduler) {
		mark("scheduler", true,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.String("scheduler.spec", newCfg.Scheduler.Spec),
			logx.String("scheduler.timezone", newCfg.Scheduler.Timezone),
		)
	}
	// Backlog (never log the API key)
	if !reflect.DeepEqual(oldCfg.Backlog, newCfg.Backlog) {
		mark("backlog", false,
			logx.String("backlog.space", newCfg.Backlog.Space),
			logx.Int64("backlog.project_id", newCfg.Backlog.ProjectID),
			logx.Bool("backlog.api_key_changed", oldCfg.Backlog.APIKey != newCfg.Backlog.APIKey),
		)
	}
	// Webhook URLs embed a secret.
	if !reflect.DeepEqual(oldCfg.Webhook, newCfg.Webhook) {
		mark("webhook", false, logx.Bool("webhook.url_changed", oldCfg.Webhook.URL != newCfg.Webhook.URL))
	}
	if !reflect.DeepEqual(oldCfg.Telegram, newCfg.Telegram) {
		mark("telegram", false,
			logx.Bool("telegram.enabled", newCfg.Telegram.Enabled),
			logx.Bool("telegram.token_set", strings.TrimSpace(newCfg.Telegram.Token) != ""),
		)
	}
	if !reflect.DeepEqual(oldCfg.Alert, newCfg.Alert) {
		mark("alert", false, logx.String("alert.run_timeout", newCfg.Alert.RunTimeout))
	}
	if !reflect.DeepEqual(oldCfg.Server, newCfg.Server) {
		mark("server", false,
			logx.Bool("server.enabled", newCfg.Server.Enabled),
			logx.String("server.addr", newCfg.Server.Addr),
			logx.Bool("server.pprof", newCfg.Server.Pprof.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		driver := ""
		if newCfg.Storage != nil {
			driver = newCfg.Storage.Driver
		}
		mark("storage", false, logx.String("storage.driver", driver))
	}
	return ch
}
