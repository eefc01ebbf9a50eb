package domain

import (
	"strings"
	"time"
)

// Priority bounds as reported by Todoist. 4 is the most urgent.
const (
	PriorityLowest  = 1
	PriorityHighest = 4
)

// NoSection is the section id carried by tasks that live directly in a project.
const NoSection int64 = 0

// Task is one remote task snapshot. Only Completed changes locally, and only
// through close/reopen actions.
type Task struct {
	ID        int64   `json:"id"`
	Content   string  `json:"content"`
	Completed bool    `json:"completed"`
	Priority  int     `json:"priority"`
	Due       *Due    `json:"due,omitempty"`
	ProjectID int64   `json:"project_id"`
	SectionID int64   `json:"section_id"`
	ParentID  *int64  `json:"parent_id,omitempty"`
	Order     int     `json:"order"`
	LabelIDs  []int64 `json:"label_ids"`
}

// Due describes a task due date with an optional time of day.
type Due struct {
	Date      string `json:"date"`
	Datetime  string `json:"datetime,omitempty"`
	String    string `json:"string,omitempty"`
	Recurring bool   `json:"recurring,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
}

// floatingDatetimeLayout is the Todoist datetime form without an offset.
const floatingDatetimeLayout = "2006-01-02T15:04:05"

// dateLayout is the Todoist date-only form.
const dateLayout = "2006-01-02"

// HasParent reports whether the task is a subtask.
func (t Task) HasParent() bool {
	return t.ParentID != nil && *t.ParentID != 0
}

// ParentRef returns the parent id, or 0 for top-level tasks.
func (t Task) ParentRef() int64 {
	if !t.HasParent() {
		return 0
	}
	return *t.ParentID
}

// Time returns the instant used for ordering: datetime when present, else the date at midnight in loc.
func (d Due) Time(loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	if dt := strings.TrimSpace(d.Datetime); dt != "" {
		if ts, err := time.Parse(time.RFC3339, dt); err == nil {
			return ts, true
		}
		if ts, err := time.ParseInLocation(floatingDatetimeLayout, dt, loc); err == nil {
			return ts, true
		}
	}
	date := strings.TrimSpace(d.Date)
	if len(date) > len(dateLayout) {
		date = date[:len(dateLayout)]
	}
	ts, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// Day returns the calendar day of the due descriptor in loc.
func (d Due) Day(loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	ts, ok := d.Time(loc)
	if !ok {
		return time.Time{}, false
	}
	return StartOfDay(ts, loc), true
}

// StartOfDay truncates ts to midnight in loc.
func StartOfDay(ts time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	ts = ts.In(loc)
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, loc)
}

// PriorityBucket maps the API priority onto the displayed P1..P4 labels.
func PriorityBucket(priority int) string {
	switch priority {
	case 4:
		return "P1"
	case 3:
		return "P2"
	case 2:
		return "P3"
	default:
		return "P4"
	}
}
