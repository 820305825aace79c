package service

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/BuzzLyutic/todo-board/internal/model"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
)

// TaskList owns the task collection of a session. It is not safe for
// concurrent use: callers serialize access.
type TaskList struct {
	tasks       []model.Task // newest first
	sortByDue   bool
	editID      string
	initialized bool

	newID func() string
	now   func() time.Time
}

type Option func(*TaskList)

func WithIDGenerator(gen func() string) Option {
	return func(l *TaskList) { l.newID = gen }
}

func WithClock(now func() time.Time) Option {
	return func(l *TaskList) { l.now = now }
}

func NewTaskList(opts ...Option) *TaskList {
	l := &TaskList{
		newID: TimestampIDs(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Initialize replaces the collection with the loaded records. Records with a
// blank title or a repeated id are dropped; records without an id get a
// generated one.
func (l *TaskList) Initialize(records []model.Record) {
	tasks := make([]model.Task, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.ID != "" {
			seen[r.ID] = struct{}{}
		}
	}

	kept := make(map[string]struct{}, len(records))
	for _, r := range records {
		title := strings.TrimSpace(r.Title)
		if title == "" {
			continue
		}

		id := r.ID
		if id == "" {
			id = l.freshID(seen)
			seen[id] = struct{}{}
		} else if _, dup := kept[id]; dup {
			continue
		}
		kept[id] = struct{}{}

		tasks = append(tasks, model.Task{
			ID:        id,
			Title:     title,
			DueDate:   cloneTime(r.DueDate),
			Completed: r.Completed,
		})
	}

	l.tasks = tasks
	l.editID = ""
	l.initialized = true
}

func (l *TaskList) Initialized() bool {
	return l.initialized
}

func (l *TaskList) Len() int {
	return len(l.tasks)
}

func (l *TaskList) AddTask(title string, due *time.Time) (model.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Task{}, fmt.Errorf("%w: title is empty", ErrValidation)
	}

	id := l.newID()
	for l.indexOf(id) >= 0 {
		id = l.newID()
	}

	t := model.Task{
		ID:      id,
		Title:   title,
		DueDate: cloneTime(due),
	}
	l.tasks = slices.Insert(l.tasks, 0, t)
	return t.Clone(), nil
}

func (l *TaskList) UpdateTask(id, title string, due *time.Time) (model.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Task{}, fmt.Errorf("%w: title is empty", ErrValidation)
	}

	i := l.indexOf(id)
	if i < 0 {
		return model.Task{}, fmt.Errorf("task %q: %w", id, ErrNotFound)
	}

	l.tasks[i].Title = title
	l.tasks[i].DueDate = cloneTime(due)
	return l.tasks[i].Clone(), nil
}

// ToggleCompleted flips the completion flag of one task. Due dates are left alone.
func (l *TaskList) ToggleCompleted(id string) (model.Task, bool) {
	i := l.indexOf(id)
	if i < 0 {
		return model.Task{}, false
	}
	l.tasks[i].Completed = !l.tasks[i].Completed
	return l.tasks[i].Clone(), true
}

func (l *TaskList) DeleteTask(id string) bool {
	i := l.indexOf(id)
	if i < 0 {
		return false
	}
	l.tasks = slices.Delete(l.tasks, i, i+1)
	if l.editID == id {
		l.editID = ""
	}
	return true
}

// DeleteAllCompleted removes every completed task and returns how many went.
// Confirmation is the caller's job.
func (l *TaskList) DeleteAllCompleted() int {
	if t, ok := l.EditTarget(); ok && t.Completed {
		l.EndEdit()
	}

	before := len(l.tasks)
	l.tasks = slices.DeleteFunc(l.tasks, func(t model.Task) bool { return t.Completed })
	return before - len(l.tasks)
}

func (l *TaskList) SetSortByDueDate(enabled bool) {
	l.sortByDue = enabled
}

func (l *TaskList) SortByDueDate() bool {
	return l.sortByDue
}

func (l *TaskList) Get(id string) (model.Task, bool) {
	i := l.indexOf(id)
	if i < 0 {
		return model.Task{}, false
	}
	return l.tasks[i].Clone(), true
}

// Tasks returns a copy of the collection in storage order.
func (l *TaskList) Tasks() []model.Task {
	out := make([]model.Task, 0, len(l.tasks))
	for _, t := range l.tasks {
		out = append(out, t.Clone())
	}
	return out
}

// Projection returns the display order. With due-date sorting on, dated tasks
// come first in ascending order (incomplete before completed on the same
// instant), followed by undated tasks in storage order.
func (l *TaskList) Projection() []model.View {
	ordered := l.tasks
	if l.sortByDue {
		ordered = sortByDueDate(l.tasks)
	}

	views := make([]model.View, 0, len(ordered))
	for _, t := range ordered {
		views = append(views, model.NewView(t))
	}
	return views
}

func sortByDueDate(tasks []model.Task) []model.Task {
	dated := make([]model.Task, 0, len(tasks))
	var undated []model.Task
	for _, t := range tasks {
		if t.HasDueDate() {
			dated = append(dated, t)
		} else {
			undated = append(undated, t)
		}
	}

	slices.SortStableFunc(dated, func(a, b model.Task) int {
		if c := a.DueDate.Compare(*b.DueDate); c != 0 {
			return c
		}
		switch {
		case !a.Completed && b.Completed:
			return -1
		case a.Completed && !b.Completed:
			return 1
		}
		return 0
	})

	return append(dated, undated...)
}

// OverdueOrUndated returns incomplete tasks that have no due date or are due now or earlier.
func (l *TaskList) OverdueOrUndated() []model.Task {
	now := l.now()
	var out []model.Task
	for _, t := range l.tasks {
		if t.Completed {
			continue
		}
		if t.DueDate == nil || !t.DueDate.After(now) {
			out = append(out, t.Clone())
		}
	}
	return out
}

func (l *TaskList) Stats() model.Stats {
	s := model.Stats{Total: len(l.tasks)}
	for _, t := range l.tasks {
		if t.Completed {
			s.Completed++
		}
	}
	s.Pending = s.Total - s.Completed
	s.OverdueOrUndated = len(l.OverdueOrUndated())
	return s
}

// BeginEdit marks a task as the edit target.
func (l *TaskList) BeginEdit(id string) (model.Task, error) {
	t, ok := l.Get(id)
	if !ok {
		return model.Task{}, fmt.Errorf("task %q: %w", id, ErrNotFound)
	}
	l.editID = id
	return t, nil
}

func (l *TaskList) EditTarget() (model.Task, bool) {
	if l.editID == "" {
		return model.Task{}, false
	}
	return l.Get(l.editID)
}

func (l *TaskList) EndEdit() {
	l.editID = ""
}

func (l *TaskList) freshID(taken map[string]struct{}) string {
	for {
		id := l.newID()
		if _, ok := taken[id]; !ok {
			return id
		}
	}
}

func (l *TaskList) indexOf(id string) int {
	return slices.IndexFunc(l.tasks, func(t model.Task) bool { return t.ID == id })
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
