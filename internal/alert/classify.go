package alert

import (
	"time"

	"backlogalert/internal/backlog"
	"backlogalert/internal/duedate"
)

// Buckets holds the surfaced classifications, each in input order.
type Buckets struct {
	Overdue  []backlog.Issue
	DueToday []backlog.Issue
	DueSoon  []backlog.Issue
}

// SoonWindow is the largest delta (in days) still reported as due soon.
const SoonWindow = 7

// TakeWhileDated returns the prefix of issues before the first one without a
// due date. The tracker sorts undated issues last, so the first undated issue
// ends the scan even if dated issues follow it.
func TakeWhileDated(issues []backlog.Issue) []backlog.Issue {
	for i, is := range issues {
		if !is.HasDueDate() {
			return issues[:i]
		}
	}
	return issues
}

// Classify buckets the dated prefix of issues against anchor.
//
// Branches are evaluated in this order and the first match wins:
// delta == 0 is due today, delta <= SoonWindow is due soon, delta < 0 is
// overdue. Negative deltas are therefore reported as due soon and the
// overdue bucket stays empty; the order is kept as deployed.
func Classify(issues []backlog.Issue, anchor time.Time) (Buckets, error) {
	var b Buckets
	for _, is := range TakeWhileDated(issues) {
		due, err := duedate.Parse(*is.DueDate)
		if err != nil {
			return Buckets{}, err
		}
		switch delta := duedate.DaysUntil(due, anchor); {
		case delta == 0:
			b.DueToday = append(b.DueToday, is)
		case delta <= SoonWindow:
			b.DueSoon = append(b.DueSoon, is)
		case delta < 0:
			b.Overdue = append(b.Overdue, is)
		}
	}
	return b, nil
}
