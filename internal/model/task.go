package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type Task struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	DueDate   *time.Time `json:"due_date"`
	Completed bool       `json:"completed"`
}

// HasDueDate reports whether the task has a deadline.
func (t Task) HasDueDate() bool {
	return t.DueDate != nil
}

// Clone returns a copy that shares no storage with t.
func (t Task) Clone() Task {
	if t.DueDate != nil {
		due := *t.DueDate
		t.DueDate = &due
	}
	return t
}

// View is a render-ready projection item.
type View struct {
	Task
	FormattedDueDate string `json:"formatted_due_date,omitempty"`
}

func NewView(t Task) View {
	v := View{Task: t.Clone()}
	if t.DueDate != nil {
		v.FormattedDueDate = FormatDueDate(*t.DueDate)
	}
	return v
}

type Stats struct {
	Total            int `json:"total"`
	Completed        int `json:"completed"`
	Pending          int `json:"pending"`
	OverdueOrUndated int `json:"overdue_or_undated"`
}

// Record is a task as delivered by a loader.
type Record struct {
	ID        string
	Title     string
	DueDate   *time.Time
	Completed bool
}

type recordJSON struct {
	ID        json.RawMessage `json:"id"`
	Title     string          `json:"title"`
	Todo      string          `json:"todo"`
	DueDate   *time.Time      `json:"dueDate"`
	Completed bool            `json:"completed"`
}

// UnmarshalJSON accepts numeric or string ids and falls back to "todo" for the title.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, err := parseRecordID(raw.ID)
	if err != nil {
		return err
	}

	r.ID = id
	r.Title = raw.Title
	if r.Title == "" {
		r.Title = raw.Todo
	}
	r.DueDate = raw.DueDate
	r.Completed = raw.Completed
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        string     `json:"id"`
		Title     string     `json:"title"`
		DueDate   *time.Time `json:"dueDate,omitempty"`
		Completed bool       `json:"completed"`
	}{r.ID, r.Title, r.DueDate, r.Completed})
}

func parseRecordID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("record id %s: %w", raw, err)
	}
	return n.String(), nil
}
