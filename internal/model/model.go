package model

import "time"

// EventType is the closed set of event kinds the aggregator understands.
type EventType string

const (
	TypeClassSession EventType = "class_session"
	TypeWebinar      EventType = "webinar"
	TypeQuiz         EventType = "quiz"
	TypeTask         EventType = "task"
	TypeTest         EventType = "test"
	TypeHomework     EventType = "homework"
	TypeLMSItem      EventType = "lms_item"
)

// AllTypes lists every EventType in a fixed order.
var AllTypes = []EventType{
	TypeClassSession,
	TypeWebinar,
	TypeQuiz,
	TypeTask,
	TypeTest,
	TypeHomework,
	TypeLMSItem,
}

// IsDeadline reports whether events of this type carry a due-by instant
// rather than a start/end interval.
func (t EventType) IsDeadline() bool {
	switch t {
	case TypeQuiz, TypeTask, TypeTest, TypeHomework, TypeLMSItem:
		return true
	default:
		return false
	}
}

// Visual is the coarse grouping used by the front-end for icons.
// Quizzes, tasks, tests and homework all render as "task".
func (t EventType) Visual() string {
	switch t {
	case TypeClassSession:
		return "lesson"
	case TypeWebinar:
		return "webinar"
	case TypeLMSItem:
		return "lms"
	default:
		return "task"
	}
}

// Source identifies the upstream platform an event came from.
type Source string

const (
	SourceUniversity Source = "platform_a" // university scheduling system
	SourceProvider   Source = "platform_b" // commercial course provider
	SourceLMS        Source = "platform_c" // e-learning platform
)

// UnknownCycle is the upstream marker for sessions without a usable cycle.
const UnknownCycle = "unknown"

// NormalizedEvent is the unified representation every upstream item is
// mapped into. Start and End are in the viewer's zone; for deadline-only
// items both equal the deadline instant.
type NormalizedEvent struct {
	ID         string    `json:"id"`
	UpstreamID string    `json:"upstream_id"`
	Type       EventType `json:"type"`
	Source     Source    `json:"source"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	Title      string `json:"title"`
	IsDeadline bool   `json:"is_deadline"`

	CycleID   string `json:"cycle_id,omitempty"`
	CycleCode string `json:"cycle_code,omitempty"`
	CycleName string `json:"cycle_name,omitempty"`

	TeacherName string `json:"teacher_name,omitempty"`
	CourseName  string `json:"course_name,omitempty"`
	Link        string `json:"link,omitempty"`

	// Module is the LMS module name (e.g. "assign", "quiz") when present.
	Module    string `json:"module,omitempty"`
	Completed bool   `json:"completed"`
	IsLXP     bool   `json:"is_lxp"`
}

// Groupable reports whether the event carries a usable cycle code.
func (e NormalizedEvent) Groupable() bool {
	return e.CycleCode != "" && e.CycleCode != UnknownCycle
}
