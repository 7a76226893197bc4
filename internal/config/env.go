package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override file values.
const (
	EnvBacklogAPIKey    = "BACKLOG_API_KEY"
	EnvBacklogSpace     = "BACKLOG_SPACE"
	EnvBacklogProjectID = "BACKLOG_PROJECT_ID"
	EnvSlackPostURL     = "SLACK_POST_URL"
	EnvTelegramToken    = "TELEGRAM_TOKEN"
)

// LoadDotEnv loads the first existing file into the process environment.
// Variables already set are not overwritten. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		err := godotenv.Load(p)
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides secrets and identifiers from lookup (os.LookupEnv when nil).
// Environment wins over the file.
func ApplyEnv(c *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(k string) (string, bool) {
		v, ok := lookup(k)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvBacklogAPIKey); ok {
		c.Backlog.APIKey = v
	}
	if v, ok := get(EnvBacklogSpace); ok {
		c.Backlog.Space = v
	}
	if v, ok := get(EnvBacklogProjectID); ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid project id %q", EnvBacklogProjectID, v)
		}
		c.Backlog.ProjectID = id
	}
	if v, ok := get(EnvSlackPostURL); ok {
		c.Webhook.URL = v
	}
	if v, ok := get(EnvTelegramToken); ok {
		c.Telegram.Token = v
	}
	return nil
}
