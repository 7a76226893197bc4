package alert

// Kind identifies one notification type.
type Kind string

const (
	KindOverdue  Kind = "overdue"
	KindDueToday Kind = "due_today"
	KindDueSoon  Kind = "due_soon"
)

// Title is the chat message heading for the kind.
func (k Kind) Title() string {
	switch k {
	case KindOverdue:
		return "期限切れ"
	case KindDueToday:
		return "今日が期限"
	case KindDueSoon:
		return "もうすぐ期限切れ"
	default:
		return string(k)
	}
}

// Color is the attachment color for the kind.
func (k Kind) Color() string {
	switch k {
	case KindOverdue:
		return "#D00000"
	case KindDueToday:
		return "#0084FD"
	case KindDueSoon:
		return "#FDFB00"
	default:
		return ""
	}
}
