// Package slack renders alert buckets into incoming-webhook payloads and
// posts them.
package slack

import (
	"strings"

	"backlogalert/internal/backlog"
	"backlogalert/internal/duedate"
)

type Payload struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments"`
}

type Attachment struct {
	Fallback string  `json:"fallback"`
	Color    string  `json:"color"`
	Fields   []Field `json:"fields"`
}

type Field struct {
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Title returns the attachment fallback, which is the plain title.
func (p Payload) Title() string {
	if len(p.Attachments) == 0 {
		return strings.Trim(p.Text, "*")
	}
	return p.Attachments[0].Fallback
}

// Body returns the rendered issue lines.
func (p Payload) Body() string {
	if len(p.Attachments) == 0 || len(p.Attachments[0].Fields) == 0 {
		return ""
	}
	return p.Attachments[0].Fields[0].Value
}

// BuildPayload renders one "- YYYY-MM-DD summary" line per issue, in order.
// Summaries pass through unescaped.
func BuildPayload(issues []backlog.Issue, title, color string) (Payload, error) {
	var b strings.Builder
	for _, is := range issues {
		raw := ""
		if is.DueDate != nil {
			raw = *is.DueDate
		}
		date, err := duedate.FormatDate(raw)
		if err != nil {
			return Payload{}, err
		}
		b.WriteString("- ")
		b.WriteString(date)
		b.WriteString(" ")
		b.WriteString(is.Summary)
		b.WriteString("\n")
	}

	return Payload{
		Text: "*" + title + "*",
		Attachments: []Attachment{{
			Fallback: title,
			Color:    color,
			Fields:   []Field{{Value: b.String(), Short: false}},
		}},
	}, nil
}
