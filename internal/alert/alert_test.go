package alert

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"backlogalert/internal/backlog"
	"backlogalert/internal/delivery"
	"backlogalert/internal/duedate"
	"backlogalert/internal/slack"
	logx "backlogalert/pkg/logx"
)

type fakeTracker struct {
	issues []backlog.Issue
	err    error
	got    backlog.Query
}

func (f *fakeTracker) ListIssues(_ context.Context, q backlog.Query) ([]backlog.Issue, error) {
	f.got = q
	return f.issues, f.err
}

type recordingSink struct {
	mu  sync.Mutex
	got []slack.Payload
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Send(_ context.Context, p slack.Payload) error {
	r.mu.Lock()
	r.got = append(r.got, p)
	r.mu.Unlock()
	return nil
}

func (r *recordingSink) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.got))
	for _, p := range r.got {
		out = append(out, p.Title())
	}
	return out
}

type memRecorder struct{ reports []Report }

func (m *memRecorder) RecordRun(_ context.Context, r Report) error {
	m.reports = append(m.reports, r)
	return nil
}

func clockAt(t time.Time) func() time.Time { return func() time.Time { return t } }

func newRunner(tr Tracker, sink *recordingSink, guard delivery.Guard, now time.Time, opts ...Option) *Runner {
	svc := delivery.New(guard, logx.Nop(), sink)
	opts = append([]Option{WithClock(clockAt(now))}, opts...)
	return New(Config{ProjectID: 42}, tr, svc, opts...)
}

func TestRunQueriesTracker(t *testing.T) {
	t.Parallel()
	tr := &fakeTracker{}
	r := New(Config{ProjectID: 42, Count: 50}, tr, delivery.New(nil, logx.Nop()), WithClock(clockAt(monday)))
	if _, err := r.Run(context.Background(), "test"); err != nil {
		t.Fatal(err)
	}
	want := backlog.Query{ProjectIDs: []int64{42}, StatusIDs: []int{1, 2, 3}, Sort: "dueDate", Order: "asc", Count: 50}
	if diff := cmp.Diff(want, tr.got); diff != "" {
		t.Fatalf("query mismatch (-want +got):\n%s", diff)
	}
}

func TestRunMondayDeliversDueSoon(t *testing.T) {
	t.Parallel()
	due := "2023-12-20T00:00:00+09:00"
	tr := &fakeTracker{issues: []backlog.Issue{{Summary: "A", DueDate: &due}}}
	sink := &recordingSink{}
	rec := &memRecorder{}
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, duedate.JST)

	rep, err := newRunner(tr, sink, nil, now, WithRecorder(rec)).Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := slack.Payload{
		Text: "*もうすぐ期限切れ*",
		Attachments: []slack.Attachment{{
			Fallback: "もうすぐ期限切れ",
			Color:    "#FDFB00",
			Fields:   []slack.Field{{Value: "- 2023-12-20 A\n"}},
		}},
	}
	if len(sink.got) != 1 {
		t.Fatalf("delivered %d payloads, want 1", len(sink.got))
	}
	if diff := cmp.Diff(want, sink.got[0]); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
	if rep.DueSoon != 1 || rep.Overdue != 0 || rep.SoonGated {
		t.Fatalf("report = %+v", rep)
	}
	if len(rep.Notifications) != 1 || rep.Notifications[0].Kind != KindDueSoon || !rep.Notifications[0].Result.OK() {
		t.Fatalf("notifications = %+v", rep.Notifications)
	}
	if len(rec.reports) != 1 {
		t.Fatalf("recorded %d reports", len(rec.reports))
	}
}

func TestRunTuesdayGatesDueSoon(t *testing.T) {
	t.Parallel()
	due := "2023-12-20T00:00:00+09:00"
	tr := &fakeTracker{issues: []backlog.Issue{{Summary: "A", DueDate: &due}}}
	sink := &recordingSink{}
	rec := &memRecorder{}
	now := time.Date(2024, 1, 2, 9, 0, 0, 0, duedate.JST)

	rep, err := newRunner(tr, sink, nil, now, WithRecorder(rec)).Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.got) != 0 {
		t.Fatalf("delivered %v, want nothing", sink.titles())
	}
	if !rep.SoonGated || rep.DueSoon != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if len(rec.reports) != 1 {
		t.Fatal("gated runs are still recorded")
	}
}

func TestRunDeliversTodayEveryDay(t *testing.T) {
	t.Parallel()
	tuesday := time.Date(2024, 1, 2, 0, 0, 0, 0, duedate.JST)
	tr := &fakeTracker{issues: []backlog.Issue{
		dated("today", tuesday),
		dated("soon", tuesday.AddDate(0, 0, 2)),
	}}
	sink := &recordingSink{}
	if _, err := newRunner(tr, sink, nil, tuesday.Add(8*time.Hour)).Run(context.Background(), "test"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"今日が期限"}, sink.titles()); diff != "" {
		t.Fatalf("titles mismatch (-want +got):\n%s", diff)
	}
	if c := sink.got[0].Attachments[0].Color; c != "#0084FD" {
		t.Fatalf("color = %s", c)
	}
}

func TestRunMondayOrder(t *testing.T) {
	t.Parallel()
	tr := &fakeTracker{issues: []backlog.Issue{
		dated("late", monday.AddDate(0, 0, -1)),
		dated("today", monday),
		dated("next", monday.AddDate(0, 0, 5)),
	}}
	sink := &recordingSink{}
	if _, err := newRunner(tr, sink, nil, monday).Run(context.Background(), "test"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"今日が期限", "もうすぐ期限切れ"}, sink.titles()); diff != "" {
		t.Fatalf("titles mismatch (-want +got):\n%s", diff)
	}
	if got := sink.got[1].Body(); got != "- 2023-12-31 late\n- 2024-01-06 next\n" {
		t.Fatalf("due-soon body = %q", got)
	}
}

func TestRunLocalDevSendsNothing(t *testing.T) {
	t.Parallel()
	tr := &fakeTracker{issues: []backlog.Issue{
		dated("late", monday.AddDate(0, 0, -1)),
		dated("today", monday),
	}}
	sink := &recordingSink{}
	rep, err := newRunner(tr, sink, func() bool { return true }, monday).Run(context.Background(), "test")
	if err != nil {
		t.Fatal(err)
	}
	if len(sink.got) != 0 {
		t.Fatalf("sink received %v", sink.titles())
	}
	if len(rep.Notifications) != 2 {
		t.Fatalf("notifications = %+v", rep.Notifications)
	}
	for _, n := range rep.Notifications {
		if !n.Result.Skipped {
			t.Fatalf("%s not marked skipped", n.Kind)
		}
	}
}

func TestRunFetchErrorPropagates(t *testing.T) {
	t.Parallel()
	boom := errors.New("tracker down")
	rec := &memRecorder{}
	_, err := newRunner(&fakeTracker{err: boom}, &recordingSink{}, nil, monday, WithRecorder(rec)).Run(context.Background(), "test")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if len(rec.reports) != 1 || !errors.Is(rec.reports[0].Err, boom) {
		t.Fatalf("failed run not recorded: %+v", rec.reports)
	}
}

func TestRunParseErrorPropagates(t *testing.T) {
	t.Parallel()
	bad := "01/01/2024"
	sink := &recordingSink{}
	_, err := newRunner(&fakeTracker{issues: []backlog.Issue{{Summary: "x", DueDate: &bad}}}, sink, nil, monday).Run(context.Background(), "test")
	var pe *duedate.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *duedate.ParseError", err)
	}
	if len(sink.got) != 0 {
		t.Fatal("nothing is delivered after a parse error")
	}
}

func TestRunSucceedsWhenWebhookFails(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var p slack.Payload
		b, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(b, &p); err != nil {
			t.Errorf("bad body: %v", err)
		}
		http.Error(w, "no_service", http.StatusNotFound)
	}))
	defer srv.Close()

	wh, err := slack.NewWebhook(slack.WebhookConfig{URL: srv.URL, RatePerSec: 100}, srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	tr := &fakeTracker{issues: []backlog.Issue{dated("today", monday)}}
	r := New(Config{ProjectID: 1}, tr, delivery.New(nil, logx.Nop(), wh), WithClock(clockAt(monday)))

	rep, err := r.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("Run returned %v; delivery failures must not propagate", err)
	}
	if calls != 1 {
		t.Fatalf("webhook calls = %d", calls)
	}
	var se *slack.StatusError
	if len(rep.Notifications) != 1 || !errors.As(rep.Notifications[0].Result.Err, &se) {
		t.Fatalf("notifications = %+v", rep.Notifications)
	}
}

func TestKindTitlesAndColors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		kind         Kind
		title, color string
	}{
		{KindOverdue, "期限切れ", "#D00000"},
		{KindDueToday, "今日が期限", "#0084FD"},
		{KindDueSoon, "もうすぐ期限切れ", "#FDFB00"},
	}
	for _, tt := range tests {
		if tt.kind.Title() != tt.title || tt.kind.Color() != tt.color {
			t.Fatalf("%s: %q %q", tt.kind, tt.kind.Title(), tt.kind.Color())
		}
	}
}
