package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	logx "backlogalert/pkg/logx"
)

func TestAddValidates(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, logx.Nop())
	noop := func(context.Context) error { return nil }
	if err := s.AddSchedule("", "0 9 * * *", 0, noop); err == nil {
		t.Fatal("expected name error")
	}
	if err := s.AddSchedule("alert", "0 9 * * *", 0, nil); err == nil {
		t.Fatal("expected job error")
	}
	if err := s.AddSchedule("alert", "61 9 * * *", 0, noop); err == nil {
		t.Fatal("expected cron error")
	}
	if err := s.AddSchedule("alert", "daily 25:00", 0, noop); err == nil {
		t.Fatal("expected HH:MM error")
	}
}

func TestAddReplacesByName(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Timezone: "Asia/Tokyo"}, logx.Nop())
	noop := func(context.Context) error { return nil }
	if err := s.AddSchedule("alert", "0 9 * * *", time.Minute, noop); err != nil {
		t.Fatal(err)
	}
	if err := s.AddSchedule("alert", "daily 10:30", time.Minute, noop); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if len(snap.Schedules) != 1 || snap.Schedules[0].Spec != "30 10 * * *" {
		t.Fatalf("schedules = %+v", snap.Schedules)
	}
	if snap.Running {
		t.Fatal("not started yet")
	}
	if !s.Remove("alert") || s.Remove("alert") {
		t.Fatal("Remove should report removal exactly once")
	}
}

func TestStartDisabledIsNoop(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := New(Config{Enabled: false}, logx.Nop())
	s.Start(context.Background())
	if s.Snapshot().Running {
		t.Fatal("disabled scheduler must not run")
	}
	s.Stop(context.Background())
}

func TestJobFiresAndSkipsOverlap(t *testing.T) {
	defer goleak.VerifyNone(t)

	var (
		runs    atomic.Int32
		active  atomic.Int32
		maxSeen atomic.Int32
	)
	release := make(chan struct{})
	s := New(Config{Enabled: true, Timezone: "UTC"}, logx.Nop())
	err := s.AddSchedule("alert", "* * * * * *", 0, func(ctx context.Context) error {
		runs.Add(1)
		n := active.Add(1)
		defer active.Add(-1)
		if n > maxSeen.Load() {
			maxSeen.Store(n)
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return errors.New("done")
	})
	if err != nil {
		t.Fatal(err)
	}
	s.Start(context.Background())

	deadline := time.Now().Add(5 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if runs.Load() == 0 {
		t.Fatal("job never fired")
	}
	// Let at least one more tick pass while the first run blocks.
	time.Sleep(1200 * time.Millisecond)
	if got := maxSeen.Load(); got != 1 {
		t.Fatalf("max concurrent runs = %d, want 1", got)
	}
	snap := s.Snapshot()
	if !snap.Running || snap.Schedules[0].Next.IsZero() {
		t.Fatalf("snapshot = %+v", snap)
	}

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestStopCancelsInFlightJob(t *testing.T) {
	defer goleak.VerifyNone(t)

	started := make(chan struct{}, 1)
	var sawCancel atomic.Bool
	s := New(Config{Enabled: true, Timezone: "UTC"}, logx.Nop())
	if err := s.AddSchedule("alert", "* * * * * *", time.Minute, func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		sawCancel.Store(true)
		return ctx.Err()
	}); err != nil {
		t.Fatal(err)
	}
	s.Start(context.Background())

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never fired")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
	if !sawCancel.Load() {
		t.Fatal("in-flight job did not observe shutdown")
	}
}

func TestApplyTogglesRunning(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	s := New(Config{Enabled: false, Timezone: "UTC"}, logx.Nop())
	if err := s.AddSchedule("alert", "0 9 * * *", 0, func(context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}

	s.Apply(ctx, Config{Enabled: true, Timezone: "UTC"})
	if !s.Snapshot().Running {
		t.Fatal("Apply(enabled) should start")
	}
	s.Apply(ctx, Config{Enabled: true, Timezone: "Asia/Tokyo"})
	snap := s.Snapshot()
	if !snap.Running || snap.Timezone != "Asia/Tokyo" || len(snap.Schedules) != 1 {
		t.Fatalf("snapshot after tz change = %+v", snap)
	}
	s.Apply(ctx, Config{Enabled: false})
	if s.Snapshot().Running {
		t.Fatal("Apply(disabled) should stop")
	}
}
