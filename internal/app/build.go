package app

import (
	"fmt"
	"strings"

	"backlogalert/internal/alert"
	"backlogalert/internal/backlog"
	"backlogalert/internal/config"
	"backlogalert/internal/delivery"
	"backlogalert/internal/slack"
	"backlogalert/internal/storage"
	"backlogalert/internal/telegram"
	logx "backlogalert/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool) {
	if cfg.Storage == nil {
		return storage.Config{}, false
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false
	}
	busy, retention := cfg.StorageDurations()
	return storage.Config{
		Driver:      driver,
		Path:        strings.TrimSpace(cfg.Storage.Path),
		BusyTimeout: busy,
		Retention:   retention,
	}, true
}

// buildSinks returns the webhook sink followed by the optional Telegram mirror.
func buildSinks(cfg *config.Config) ([]delivery.Sink, error) {
	hook, err := slack.NewWebhook(slack.WebhookConfig{
		URL:        cfg.Webhook.URL,
		RatePerSec: cfg.Webhook.RatePerSec,
		Timeout:    cfg.WebhookTimeout(),
	}, nil)
	if err != nil {
		return nil, err
	}
	sinks := []delivery.Sink{hook}

	if cfg.Telegram.Enabled {
		tg, err := telegram.New(telegram.Config{
			Token:    cfg.Telegram.Token,
			ChatID:   cfg.Telegram.ChatID,
			ThreadID: cfg.Telegram.ThreadID,
			Timeout:  cfg.TelegramTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		sinks = append(sinks, tg)
	}
	return sinks, nil
}

func buildRunner(cfg *config.Config, rec alert.Recorder, log logx.Logger) (*alert.Runner, error) {
	client, err := backlog.New(backlog.Config{
		Space:   cfg.Backlog.Space,
		Domain:  cfg.Backlog.Domain,
		BaseURL: cfg.Backlog.BaseURL,
		APIKey:  cfg.Backlog.APIKey,
		Timeout: cfg.BacklogTimeout(),
	}, nil, log.With(logx.String("comp", "backlog")))
	if err != nil {
		return nil, err
	}

	sinks, err := buildSinks(cfg)
	if err != nil {
		return nil, err
	}
	deliver := delivery.New(
		delivery.EnvGuard(cfg.Alert.DevEnvVar, cfg.Alert.DevEnvPrefix),
		log.With(logx.String("comp", "delivery")),
		sinks...,
	)
	log.Info("delivery configured", logx.String("comp", "app"), logx.String("sinks", strings.Join(deliver.Sinks(), ",")))

	opts := []alert.Option{alert.WithLogger(log.With(logx.String("comp", "alert")))}
	if rec != nil {
		opts = append(opts, alert.WithRecorder(rec))
	}
	return alert.New(alert.Config{
		ProjectID:  cfg.Backlog.ProjectID,
		StatusIDs:  cfg.Backlog.StatusIDs,
		Count:      cfg.Backlog.Count,
		RunTimeout: cfg.RunTimeout(),
	}, client, deliver, opts...), nil
}
