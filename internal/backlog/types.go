package backlog

import "time"

// Issue is the subset of a Backlog issue record the alert pipeline reads.
// DueDate stays raw: its parsing belongs to the classifier so a malformed
// value aborts the run there.
type Issue struct {
	ID        int64   `json:"id"`
	ProjectID int64   `json:"projectId"`
	IssueKey  string  `json:"issueKey"`
	Summary   string  `json:"summary"`
	DueDate   *string `json:"dueDate"`
	Status    *Status `json:"status,omitempty"`
}

type Status struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// HasDueDate reports whether the tracker sent a due date. An empty string
// still counts and fails to parse later.
func (i Issue) HasDueDate() bool {
	return i.DueDate != nil
}

// Query is the filter passed to ListIssues.
type Query struct {
	ProjectIDs []int64
	StatusIDs  []int
	Sort       string // e.g. "dueDate"
	Order      string // "asc" | "desc"; empty leaves the server default
	Count      int    // 1..100; 0 leaves the server default
}

// Config configures the client.
type Config struct {
	Space   string // e.g. "example"
	Domain  string // "backlog.jp" (default) or "backlog.com"
	BaseURL string // overrides Space/Domain when set (tests, proxies)
	APIKey  string
	Timeout time.Duration
}
