package handler

import (
	"strings"
	"time"

	"github.com/BuzzLyutic/todo-board/internal/model"
)

// Titles are capped at the input boundary, not by the task list.
type taskRequest struct {
	Title   string  `json:"title" validate:"required,max=100"`
	DueDate *string `json:"due_date"`
}

func (r taskRequest) dueDate() (*time.Time, error) {
	if r.DueDate == nil || strings.TrimSpace(*r.DueDate) == "" {
		return nil, nil
	}
	t, err := model.ParseDueDate(*r.DueDate)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type sortRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type editRequest struct {
	ID string `json:"id" validate:"required"`
}

type stateResponse struct {
	State         LoadState `json:"state"`
	Error         string    `json:"error,omitempty"`
	SortByDueDate bool      `json:"sort_by_due_date"`
}

type reminderResponse struct {
	Count int    `json:"count"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

type deletedResponse struct {
	Deleted int `json:"deleted"`
}
