// Package duedate parses tracker due-date timestamps and computes whole-day
// distances against the daily anchor.
package duedate

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the default FormatDate output.
const DateLayout = "2006-01-02"

// JST is the fixed +09:00 zone every anchor is computed in.
var JST = time.FixedZone("JST", 9*60*60)

// Accepted input layouts. Only second precision with an explicit offset is valid.
var layouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05-0700",
}

// ParseError reports a due date that does not match any accepted layout.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("duedate: invalid timestamp %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse parses YYYY-MM-DDTHH:MM:SS followed by Z, ±HH:MM or ±HHMM.
func Parse(s string) (time.Time, error) {
	in := strings.TrimSpace(s)
	if strings.ContainsAny(in, ".,") {
		return time.Time{}, &ParseError{Input: s, Err: fmt.Errorf("fractional seconds not accepted")}
	}
	var firstErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, in)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, &ParseError{Input: s, Err: firstErr}
}

// FormatDate parses s and renders it with layout (DateLayout when omitted).
// The rendered date is the one in the input's own offset.
func FormatDate(s string, layout ...string) (string, error) {
	t, err := Parse(s)
	if err != nil {
		return "", err
	}
	l := DateLayout
	if len(layout) > 0 && layout[0] != "" {
		l = layout[0]
	}
	return t.Format(l), nil
}

// Anchor returns midnight of now's calendar day in JST.
func Anchor(now time.Time) time.Time {
	return Midnight(now, JST)
}

// Midnight returns the start of t's calendar day in loc.
func Midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DaysUntil returns the floored number of whole days from anchor to due.
// due is reduced to its own calendar date and placed at midnight in the
// anchor's zone, so the result never depends on the due time-of-day.
func DaysUntil(due, anchor time.Time) int {
	y, m, d := due.Date()
	dueDay := time.Date(y, m, d, 0, 0, 0, 0, anchor.Location())
	diff := dueDay.Sub(anchor)
	days := int(diff / (24 * time.Hour))
	if diff < 0 && diff%(24*time.Hour) != 0 {
		days--
	}
	return days
}
