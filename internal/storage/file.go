package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "backlogalert/pkg/logx"
)

// fileStore appends one JSON line per run to <prefix>.runs.jsonl.
type fileStore struct {
	log logx.Logger

	mu     sync.Mutex
	path   string
	f      *os.File
	nextID int64
}

type runLine struct {
	Run        RunRecord        `json:"run"`
	Deliveries []DeliveryRecord `json:"deliveries,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	runsPath := filepath.Join(dir, base+".runs.jsonl")

	lines, err := readRunLines(runsPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	var next int64 = 1
	if n := len(lines); n > 0 {
		next = lines[n-1].Run.ID + 1
	}

	f, err := os.OpenFile(runsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: runsPath, f: f, nextID: next}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *fileStore) AppendRun(ctx context.Context, run RunRecord, deliveries []DeliveryRecord) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return errors.New("runs file closed")
	}
	if run.At.IsZero() {
		run.At = time.Now()
	}
	run.ID = s.nextID
	ds := make([]DeliveryRecord, len(deliveries))
	for i, d := range deliveries {
		d.RunID = run.ID
		d.Trigger = run.Trigger
		if d.At.IsZero() {
			d.At = run.At
		}
		ds[i] = d
	}
	if err := json.NewEncoder(s.f).Encode(runLine{Run: run, Deliveries: ds}); err != nil {
		return err
	}
	s.nextID++
	return nil
}

func (s *fileStore) RecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	_ = ctx
	if limit <= 0 {
		limit = 20
	}
	s.mu.Lock()
	lines, err := readRunLines(s.path)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]DeliveryRecord, 0, limit)
	for i := len(lines) - 1; i >= 0 && len(out) < limit; i-- {
		ds := lines[i].Deliveries
		for j := len(ds) - 1; j >= 0 && len(out) < limit; j-- {
			out = append(out, ds[j])
		}
	}
	return out, nil
}

func readRunLines(path string) ([]runLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []runLine
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		b := sc.Bytes()
		if len(strings.TrimSpace(string(b))) == 0 {
			continue
		}
		var l runLine
		if err := json.Unmarshal(b, &l); err != nil {
			// skip torn lines from a crash mid-write
			continue
		}
		out = append(out, l)
	}
	return out, sc.Err()
}
