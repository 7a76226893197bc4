package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	Retention   time.Duration // sqlite only; 0 keeps everything
}

// RunRecord is one alert run.
type RunRecord struct {
	ID        int64     `json:"id"`
	At        time.Time `json:"at"`
	Trigger   string    `json:"trigger"`
	Anchor    string    `json:"anchor,omitempty"` // YYYY-MM-DD
	Fetched   int       `json:"fetched"`
	Overdue   int       `json:"overdue"`
	DueToday  int       `json:"due_today"`
	DueSoon   int       `json:"due_soon"`
	SoonGated bool      `json:"soon_gated"`
	TookMS    int64     `json:"took_ms"`
	Error     string    `json:"error,omitempty"`
}

// DeliveryRecord is one notification attempt within a run.
type DeliveryRecord struct {
	RunID   int64     `json:"run_id"`
	At      time.Time `json:"at"`
	Trigger string    `json:"trigger"`
	Kind    string    `json:"kind"`
	Title   string    `json:"title"`
	Issues  int       `json:"issues"`
	Skipped bool      `json:"skipped"`
	Sent    []string  `json:"sent,omitempty"`
	Error   string    `json:"error,omitempty"`
}
