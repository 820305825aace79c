package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-board/internal/model"
	"github.com/BuzzLyutic/todo-board/internal/notify"
	"github.com/BuzzLyutic/todo-board/internal/repo"
	"github.com/BuzzLyutic/todo-board/internal/service"
	"github.com/BuzzLyutic/todo-board/pkg/respond"
)

type LoadState string

const (
	StateIdle    LoadState = "idle"
	StateLoading LoadState = "loading"
	StateFailed  LoadState = "failed"
	StateReady   LoadState = "ready"
)

const maxInbox = 20

var (
	ErrLoadInProgress = errors.New("load in progress")
	ErrAlreadyLoaded  = errors.New("tasks already loaded")
)

const (
	loadErrorTitle   = "Network Error!"
	loadErrorMessage = "Unable to load your tasks. Please check your internet connection."

	confirmTitle   = "Delete All Completed Tasks"
	confirmMessage = "Are you sure you want to delete all completed tasks? This action cannot be undone."
)

// Subscriber delivers notifications received while the handler is active.
type Subscriber interface {
	Subscribe(fn func(notify.Notification)) (unsubscribe func())
}

// TaskHandler exposes a session's task list over HTTP. Every call into the
// list goes through mu, so the list itself never sees concurrent callers.
type TaskHandler struct {
	list     *service.TaskList
	reminder *service.Reminder
	loader   repo.Loader
	logger   *zap.Logger
	validate *validator.Validate

	mu          sync.Mutex
	state       LoadState
	loadErr     string
	inbox       []notify.Notification
	unsubscribe func()
}

func NewTaskHandler(list *service.TaskList, reminder *service.Reminder, loader repo.Loader, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		list:     list,
		reminder: reminder,
		loader:   loader,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		state:    StateIdle,
	}
}

// Activate starts collecting notifications from sub. Close undoes it.
func (h *TaskHandler) Activate(sub Subscriber) {
	unsubscribe := sub.Subscribe(h.receive)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	h.unsubscribe = unsubscribe
}

func (h *TaskHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unsubscribe != nil {
		h.unsubscribe()
		h.unsubscribe = nil
	}
}

func (h *TaskHandler) receive(n notify.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inbox = append(h.inbox, n)
	if len(h.inbox) > maxInbox {
		h.inbox = h.inbox[len(h.inbox)-maxInbox:]
	}
}

// Load fetches the initial tasks and hands them to the list. It may be
// retried after a failure; once the list is ready it refuses to run again.
// The reminder fires once, when the load succeeds.
func (h *TaskHandler) Load(ctx context.Context) error {
	h.mu.Lock()
	switch h.state {
	case StateLoading:
		h.mu.Unlock()
		return ErrLoadInProgress
	case StateReady:
		h.mu.Unlock()
		return ErrAlreadyLoaded
	}
	h.state = StateLoading
	h.loadErr = ""
	h.mu.Unlock()

	records, err := h.loader.Load(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.state = StateFailed
		h.loadErr = err.Error()
		h.logger.Error("failed to load tasks", zap.Error(err))
		return err
	}

	h.list.Initialize(records)
	h.state = StateReady
	h.logger.Info("tasks loaded", zap.Int("tasks", h.list.Len()))
	h.reminder.Remind(ctx, h.list)
	return nil
}

// Remind re-evaluates unfinished tasks; a no-op until tasks are loaded.
func (h *TaskHandler) Remind(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateReady {
		return
	}
	h.reminder.Remind(ctx, h.list)
}

func (h *TaskHandler) Register(r chi.Router) {
	r.Get("/api/state", h.State)
	r.Post("/api/reload", h.Reload)
	r.Get("/api/notifications", h.Notifications)
	r.Delete("/api/notifications", h.DismissNotifications)

	r.Group(func(r chi.Router) {
		r.Use(h.requireReady)

		r.Route("/api/tasks", func(r chi.Router) {
			r.Get("/", h.List)
			r.Post("/", h.Create)
			r.Delete("/completed", h.DeleteCompleted)
			r.Get("/{id}", h.Get)
			r.Patch("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
			r.Post("/{id}/toggle", h.Toggle)
		})

		r.Put("/api/sort", h.SetSort)
		r.Get("/api/edit", h.EditTarget)
		r.Put("/api/edit", h.BeginEdit)
		r.Delete("/api/edit", h.EndEdit)
		r.Get("/api/stats", h.Stats)
		r.Get("/api/reminder", h.Reminder)
	})
}

func (h *TaskHandler) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		ready := h.state == StateReady
		h.mu.Unlock()

		if !ready {
			respond.ErrorDetail(w, r, http.StatusServiceUnavailable, loadErrorTitle, loadErrorMessage)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *TaskHandler) State(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	resp := stateResponse{State: h.state, Error: h.loadErr, SortByDueDate: h.list.SortByDueDate()}
	h.mu.Unlock()

	respond.JSON(w, r, http.StatusOK, resp)
}

func (h *TaskHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.Load(r.Context()); err != nil {
		h.handleErrors(w, r, err)
		return
	}
	h.State(w, r)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	views := h.list.Projection()
	h.mu.Unlock()

	respond.JSON(w, r, http.StatusOK, views)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !h.decode(w, r, &req) {
		return
	}
	due, err := req.dueDate()
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	h.mu.Lock()
	task, err := h.list.AddTask(req.Title, due)
	h.mu.Unlock()
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/tasks/%s", task.ID))
	respond.JSON(w, r, http.StatusCreated, model.NewView(task))
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.mu.Lock()
	task, ok := h.list.Get(id)
	h.mu.Unlock()
	if !ok {
		h.handleErrors(w, r, service.ErrNotFound)
		return
	}
	respond.JSON(w, r, http.StatusOK, model.NewView(task))
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req taskRequest
	if !h.decode(w, r, &req) {
		return
	}
	due, err := req.dueDate()
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	h.mu.Lock()
	task, err := h.list.UpdateTask(id, req.Title, due)
	h.mu.Unlock()
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, model.NewView(task))
}

func (h *TaskHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.mu.Lock()
	task, ok := h.list.ToggleCompleted(id)
	h.mu.Unlock()
	if !ok {
		h.handleErrors(w, r, service.ErrNotFound)
		return
	}
	respond.JSON(w, r, http.StatusOK, model.NewView(task))
}

// Delete answers 204 whether or not the task existed.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.mu.Lock()
	h.list.DeleteTask(id)
	h.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// DeleteCompleted requires ?confirm=true; without it the confirmation prompt
// comes back with 428 and nothing is removed.
func (h *TaskHandler) DeleteCompleted(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		respond.ErrorDetail(w, r, http.StatusPreconditionRequired, confirmTitle, confirmMessage)
		return
	}

	h.mu.Lock()
	n := h.list.DeleteAllCompleted()
	h.mu.Unlock()

	h.logger.Info("deleted completed tasks", zap.Int("count", n))
	respond.JSON(w, r, http.StatusOK, deletedResponse{Deleted: n})
}

func (h *TaskHandler) SetSort(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.mu.Lock()
	h.list.SetSortByDueDate(*req.Enabled)
	h.mu.Unlock()

	h.State(w, r)
}

func (h *TaskHandler) EditTarget(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	task, ok := h.list.EditTarget()
	h.mu.Unlock()
	if !ok {
		h.handleErrors(w, r, service.ErrNotFound)
		return
	}
	respond.JSON(w, r, http.StatusOK, model.NewView(task))
}

func (h *TaskHandler) BeginEdit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.mu.Lock()
	task, err := h.list.BeginEdit(req.ID)
	h.mu.Unlock()
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, model.NewView(task))
}

func (h *TaskHandler) EndEdit(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.list.EndEdit()
	h.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	stats := h.list.Stats()
	h.mu.Unlock()

	respond.JSON(w, r, http.StatusOK, stats)
}

func (h *TaskHandler) Reminder(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	n, body := h.reminder.Preview(h.list)
	h.mu.Unlock()

	respond.JSON(w, r, http.StatusOK, reminderResponse{Count: n, Title: service.ReminderTitle, Body: body})
}

func (h *TaskHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	inbox := make([]notify.Notification, len(h.inbox))
	copy(inbox, h.inbox)
	h.mu.Unlock()

	respond.JSON(w, r, http.StatusOK, inbox)
}

func (h *TaskHandler) DismissNotifications(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.inbox = nil
	h.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.ContentLength == 0 {
		respond.Error(w, r, http.StatusBadRequest, "empty request body")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Debug("failed to decode json", zap.Error(err))
		respond.Error(w, r, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.handleErrors(w, r, err)
		return false
	}
	return true
}

func (h *TaskHandler) handleErrors(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrNotFound):
		respond.Error(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrValidation):
		respond.Error(w, r, http.StatusBadRequest, "validation error")
	case errors.As(err, &verrs):
		respond.ErrorDetail(w, r, http.StatusBadRequest, "validation error", verrs.Error())
	case errors.Is(err, model.ErrInvalidDate):
		respond.ErrorDetail(w, r, http.StatusBadRequest, "validation error", "due_date must be RFC 3339 or YYYY-MM-DD")
	case errors.Is(err, ErrLoadInProgress), errors.Is(err, ErrAlreadyLoaded):
		respond.Error(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, repo.ErrLoad), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		respond.ErrorDetail(w, r, http.StatusServiceUnavailable, loadErrorTitle, loadErrorMessage)
	default:
		h.logger.Error("internal error", zap.Error(err))
		respond.Error(w, r, http.StatusInternalServerError, "internal error")
	}
}
