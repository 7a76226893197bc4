// Package scheduler triggers registered jobs on cron or interval schedules.
//
// Jobs run on the cron goroutine with a per-job timeout. A job whose
// previous run is still in flight is skipped rather than queued.
package scheduler
