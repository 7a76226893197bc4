// Package alert runs the due-date alert pipeline: fetch open issues, bucket
// them by urgency and deliver one chat notification per non-empty bucket.
package alert

import (
	"context"
	"fmt"
	"time"

	"backlogalert/internal/backlog"
	"backlogalert/internal/delivery"
	"backlogalert/internal/duedate"
	"backlogalert/internal/slack"
	logx "backlogalert/pkg/logx"
)

// DefaultStatusIDs are the open statuses (Open, In Progress, Resolved).
var DefaultStatusIDs = []int{1, 2, 3}

type Tracker interface {
	ListIssues(ctx context.Context, q backlog.Query) ([]backlog.Issue, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, p slack.Payload) delivery.Result
}

// Recorder persists run reports. Failures are logged and ignored.
type Recorder interface {
	RecordRun(ctx context.Context, r Report) error
}

type Config struct {
	ProjectID  int64
	StatusIDs  []int
	Count      int           // tracker page size; 0 keeps the tracker default
	RunTimeout time.Duration // 0 disables
}

// Notification is one fired bucket.
type Notification struct {
	Kind   Kind
	Issues int
	Result delivery.Result
}

// Report summarises one run.
type Report struct {
	Trigger       string
	StartedAt     time.Time
	Anchor        time.Time
	Fetched       int
	Overdue       int
	DueToday      int
	DueSoon       int
	SoonGated     bool // due-soon skipped because the anchor is not a Monday
	Notifications []Notification
	Took          time.Duration
	Err           error // fetch or classify failure
}

type Runner struct {
	cfg      Config
	tracker  Tracker
	deliver  Deliverer
	recorder Recorder
	now      func() time.Time
	log      logx.Logger
}

type Option func(*Runner)

func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

func WithRecorder(rec Recorder) Option { return func(r *Runner) { r.recorder = rec } }

func WithLogger(log logx.Logger) Option { return func(r *Runner) { r.log = log } }

func New(cfg Config, tracker Tracker, deliver Deliverer, opts ...Option) *Runner {
	if len(cfg.StatusIDs) == 0 {
		cfg.StatusIDs = DefaultStatusIDs
	}
	r := &Runner{cfg: cfg, tracker: tracker, deliver: deliver, now: time.Now, log: logx.Nop()}
	for _, o := range opts {
		if o != nil {
			o(r)
		}
	}
	if r.log.IsZero() {
		r.log = logx.Nop()
	}
	return r
}

// Run executes one alert pass. Fetch and due-date parse failures are
// returned; delivery failures only show up in the report. Every run is
// handed to the recorder, failed ones included.
func (r *Runner) Run(ctx context.Context, trigger string) (Report, error) {
	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}

	start := time.Now()
	log := r.log.With(logx.String("trigger", trigger))
	log.Info("run started")

	rep := Report{Trigger: trigger, StartedAt: r.now()}
	rep.Err = r.run(ctx, log, &rep)
	r.finish(ctx, log, &rep, start)
	return rep, rep.Err
}

func (r *Runner) run(ctx context.Context, log logx.Logger, rep *Report) error {
	issues, err := r.tracker.ListIssues(ctx, backlog.Query{
		ProjectIDs: []int64{r.cfg.ProjectID},
		StatusIDs:  r.cfg.StatusIDs,
		Sort:       "dueDate",
		Order:      "asc",
		Count:      r.cfg.Count,
	})
	if err != nil {
		log.Error("fetch failed", logx.Err(err))
		return fmt.Errorf("fetch issues: %w", err)
	}
	rep.Fetched = len(issues)

	anchor := duedate.Anchor(rep.StartedAt)
	rep.Anchor = anchor

	b, err := Classify(issues, anchor)
	if err != nil {
		log.Error("classify failed", logx.Err(err))
		return fmt.Errorf("classify: %w", err)
	}
	rep.Overdue, rep.DueToday, rep.DueSoon = len(b.Overdue), len(b.DueToday), len(b.DueSoon)
	if log.Enabled(logx.LevelDebug) {
		for _, is := range TakeWhileDated(issues) {
			due, _ := duedate.Parse(*is.DueDate)
			log.Debug("classified", logx.String("issue", is.IssueKey), logx.String("summary", is.Summary), logx.Int("delta", duedate.DaysUntil(due, anchor)))
		}
	}
	log.Info("issues classified",
		logx.Int("fetched", rep.Fetched),
		logx.Time("anchor", anchor),
		logx.Int("overdue", rep.Overdue),
		logx.Int("due_today", rep.DueToday),
		logx.Int("due_soon", rep.DueSoon),
	)

	if err := r.notify(ctx, rep, KindOverdue, b.Overdue); err != nil {
		return err
	}
	if err := r.notify(ctx, rep, KindDueToday, b.DueToday); err != nil {
		return err
	}

	// Due-soon is a weekly digest.
	if anchor.Weekday() != time.Monday {
		rep.SoonGated = true
		return nil
	}
	return r.notify(ctx, rep, KindDueSoon, b.DueSoon)
}

func (r *Runner) notify(ctx context.Context, rep *Report, kind Kind, issues []backlog.Issue) error {
	if len(issues) == 0 {
		return nil
	}
	p, err := slack.BuildPayload(issues, kind.Title(), kind.Color())
	if err != nil {
		return fmt.Errorf("build %s payload: %w", kind, err)
	}
	res := r.deliver.Deliver(ctx, p)
	rep.Notifications = append(rep.Notifications, Notification{Kind: kind, Issues: len(issues), Result: res})
	return nil
}

func (r *Runner) finish(ctx context.Context, log logx.Logger, rep *Report, start time.Time) {
	rep.Took = time.Since(start)
	failed := 0
	for _, n := range rep.Notifications {
		if n.Result.Err != nil {
			failed++
		}
	}
	if rep.Err != nil {
		log.Warn("run failed", logx.Err(rep.Err), logx.Duration("took", rep.Took))
	} else {
		log.Info("run finished",
			logx.Int("notifications", len(rep.Notifications)),
			logx.Int("failed", failed),
			logx.Bool("soon_gated", rep.SoonGated),
			logx.Duration("took", rep.Took),
		)
	}
	if r.recorder != nil {
		if err := r.recorder.RecordRun(ctx, *rep); err != nil {
			log.Warn("record run failed", logx.Err(err))
		}
	}
}
