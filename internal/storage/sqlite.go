package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	logx "backlogalert/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	retention  time.Duration
	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, retention: cfg.Retention, pruneEvery: 50}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendRun(ctx context.Context, run RunRecord, deliveries []DeliveryRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if run.At.IsZero() {
		run.At = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs(at, trigger, anchor, fetched, overdue, due_today, due_soon, soon_gated, took_ms, err)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		run.At.Format(time.RFC3339Nano), run.Trigger, nullStr(run.Anchor), run.Fetched, run.Overdue,
		run.DueToday, run.DueSoon, boolInt(run.SoonGated), run.TookMS, nullStr(run.Error),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, d := range deliveries {
		at := d.At
		if at.IsZero() {
			at = run.At
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO deliveries(run_id, at, trigger, kind, title, issues, skipped, sent, err)
			 VALUES(?,?,?,?,?,?,?,?,?)`,
			runID, at.Format(time.RFC3339Nano), run.Trigger, d.Kind, d.Title, d.Issues,
			boolInt(d.Skipped), nullStr(strings.Join(d.Sent, ",")), nullStr(d.Error),
		); err != nil {
			return fmt.Errorf("insert delivery: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if s.retention > 0 && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		if err := s.prune(pctx, time.Now().Add(-s.retention)); err != nil {
			s.log.Warn("prune failed", logx.Err(err))
		}
		cancel()
	}
	return nil
}

func (s *sqliteStore) RecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, at, trigger, kind, title, issues, skipped, COALESCE(sent, ''), COALESCE(err, '')
		 FROM deliveries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeliveryRecord
	for rows.Next() {
		var (
			d       DeliveryRecord
			at      string
			skipped int
			sent    string
		)
		if err := rows.Scan(&d.RunID, &at, &d.Trigger, &d.Kind, &d.Title, &d.Issues, &skipped, &sent, &d.Error); err != nil {
			return nil, err
		}
		d.At, _ = time.Parse(time.RFC3339Nano, at)
		d.Skipped = skipped != 0
		if sent != "" {
			d.Sent = strings.Split(sent, ",")
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *sqliteStore) prune(ctx context.Context, before time.Time) error {
	cutoff := before.Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM deliveries WHERE run_id IN (SELECT id FROM runs WHERE at < ?)`, cutoff); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE at < ?`, cutoff)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
