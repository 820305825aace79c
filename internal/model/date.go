package model

import (
	"errors"
	"strings"
	"time"
)

// DisplayLayout is the en-US short date the client shows next to a task ("Jan 10, 2024").
const DisplayLayout = "Jan 2, 2006"

const dateOnlyLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date")

func FormatDueDate(t time.Time) string {
	return t.Format(DisplayLayout)
}

// ParseDueDate accepts RFC 3339 timestamps and bare dates (midnight UTC).
func ParseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(dateOnlyLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, ErrInvalidDate
}
