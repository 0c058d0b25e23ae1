package normalize

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Payload is the bulk-events document returned by the backend proxy.
// Every section and collection is optional; a missing key decodes to nil
// and is treated as "no items of that kind".
type Payload struct {
	University *UniversitySection `json:"university,omitempty"`
	Provider   *ProviderSection   `json:"provider,omitempty"`
	LMS        *LMSSection        `json:"lms,omitempty"`
}

// UniversitySection holds the university scheduling system's data.
type UniversitySection struct {
	ClassSessions []RawItem `json:"class_sessions,omitempty"`
}

// ProviderSection holds the commercial course provider's data.
type ProviderSection struct {
	Webinars []RawItem `json:"webinars,omitempty"`
	Quizzes  []RawItem `json:"quizzes,omitempty"`
	Tasks    []RawItem `json:"tasks,omitempty"`
	Tests    []RawItem `json:"tests,omitempty"`
	Homework []RawItem `json:"homework,omitempty"`
}

// LMSSection holds the e-learning platform's data.
type LMSSection struct {
	Events []RawItem `json:"lms_events,omitempty"`
}

// RawItem is the union of every field the upstream item shapes carry.
type RawItem struct {
	ID FlexString `json:"id"`

	Name       string `json:"name"`
	Title      string `json:"title"`
	BlockTitle string `json:"block_title"`
	CourseName string `json:"course_name"`

	Start    FlexString `json:"start"`
	StartsAt FlexString `json:"starts_at"`
	End      FlexString `json:"end"`
	EndsAt   FlexString `json:"ends_at"`
	Deadline FlexString `json:"deadline"`
	DtEnd    FlexString `json:"dt_end"`

	TeacherFullName string            `json:"teacher_full_name"`
	Cycle           *CycleRealization `json:"cycle_realization,omitempty"`

	ModName     string `json:"modname"`
	IsLXP       bool   `json:"is_lxp"`
	Passed      bool   `json:"passed"`
	IsCompleted bool   `json:"is_completed"`

	Link string `json:"link"`
	URL  string `json:"url"`
}

// CycleRealization identifies the recurring lesson cycle a session belongs to.
type CycleRealization struct {
	ID   FlexString `json:"id"`
	Code string     `json:"code"`
	Name string     `json:"name"`
}

// FlexString accepts a JSON string, number or null. Booleans, objects and
// arrays decode to "", leaving the item to fail its own validation.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		*f = ""
		return nil
	}
	// Unix timestamps sometimes arrive as floats; keep whole seconds.
	if f64, err := n.Float64(); err == nil && f64 == float64(int64(f64)) {
		*f = FlexString(strconv.FormatInt(int64(f64), 10))
		return nil
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// Decode parses a bulk-events document.
func Decode(body []byte) (*Payload, error) {
	var p Payload
	if len(bytes.TrimSpace(body)) == 0 {
		return &p, nil
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
