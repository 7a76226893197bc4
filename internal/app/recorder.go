package app

import (
	"context"

	"backlogalert/internal/alert"
	"backlogalert/internal/duedate"
	"backlogalert/internal/storage"
)

// storeRecorder writes run reports to the audit store.
type storeRecorder struct {
	store storage.Store
}

func (r storeRecorder) RecordRun(ctx context.Context, rep alert.Report) error {
	run, deliveries := reportRecords(rep)
	return r.store.AppendRun(ctx, run, deliveries)
}

func reportRecords(rep alert.Report) (storage.RunRecord, []storage.DeliveryRecord) {
	run := storage.RunRecord{
		At:        rep.StartedAt,
		Trigger:   rep.Trigger,
		Fetched:   rep.Fetched,
		Overdue:   rep.Overdue,
		DueToday:  rep.DueToday,
		DueSoon:   rep.DueSoon,
		SoonGated: rep.SoonGated,
		TookMS:    rep.Took.Milliseconds(),
	}
	if !rep.Anchor.IsZero() {
		run.Anchor = rep.Anchor.Format(duedate.DateLayout)
	}
	if rep.Err != nil {
		run.Error = rep.Err.Error()
	}

	out := make([]storage.DeliveryRecord, 0, len(rep.Notifications))
	for _, n := range rep.Notifications {
		d := storage.DeliveryRecord{
			At:      rep.StartedAt,
			Trigger: rep.Trigger,
			Kind:    string(n.Kind),
			Title:   n.Kind.Title(),
			Issues:  n.Issues,
			Skipped: n.Result.Skipped,
			Sent:    n.Result.Sent,
		}
		if n.Result.Err != nil {
			d.Error = n.Result.Err.Error()
		}
		out = append(out, d)
	}
	return run, out
}
