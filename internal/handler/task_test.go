package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-board/internal/model"
	"github.com/BuzzLyutic/todo-board/internal/notify"
	"github.com/BuzzLyutic/todo-board/internal/repo"
	"github.com/BuzzLyutic/todo-board/internal/service"
	"github.com/BuzzLyutic/todo-board/pkg/respond"
)

// MockLoader - мок загрузчика
type MockLoader struct {
	mock.Mock
}

func (m *MockLoader) Load(ctx context.Context) ([]model.Record, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]model.Record)
	return records, args.Error(1)
}

type testEnv struct {
	handler *TaskHandler
	router  http.Handler
	hub     *notify.Hub
}

func setupHandler(t *testing.T, loader repo.Loader) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	hub := notify.NewHub(logger)
	list := service.NewTaskList()
	h := NewTaskHandler(list, service.NewReminder(hub, logger), loader, logger)
	h.Activate(hub)
	t.Cleanup(h.Close)

	r := chi.NewRouter()
	h.Register(r)

	return &testEnv{handler: h, router: r, hub: hub}
}

func setupReady(t *testing.T, records ...model.Record) *testEnv {
	t.Helper()
	env := setupHandler(t, repo.NewStaticLoader(records...))
	require.NoError(t, env.handler.Load(context.Background()))
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func TestTaskHandler_NotReady(t *testing.T) {
	env := setupHandler(t, repo.NewStaticLoader())

	for _, path := range []string{"/api/tasks", "/api/stats", "/api/reminder"} {
		w := env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)

		body := decodeBody[respond.ErrorBody](t, w)
		assert.Equal(t, "Network Error!", body.Error)
	}

	w := env.do(t, http.MethodGet, "/api/state", nil)
	assert.Equal(t, StateIdle, decodeBody[stateResponse](t, w).State)
}

func TestTaskHandler_LoadFailureThenReload(t *testing.T) {
	loader := new(MockLoader)
	loader.On("Load", mock.Anything).Return(nil, fmt.Errorf("%w: connection refused", repo.ErrLoad)).Once()
	loader.On("Load", mock.Anything).Return([]model.Record{{ID: "1", Title: "Loaded"}}, nil).Once()

	env := setupHandler(t, loader)

	err := env.handler.Load(context.Background())
	assert.ErrorIs(t, err, repo.ErrLoad)

	w := env.do(t, http.MethodGet, "/api/state", nil)
	state := decodeBody[stateResponse](t, w)
	assert.Equal(t, StateFailed, state.State)
	assert.Contains(t, state.Error, "connection refused")

	w = env.do(t, http.MethodGet, "/api/tasks", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = env.do(t, http.MethodPost, "/api/reload", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, StateReady, decodeBody[stateResponse](t, w).State)

	w = env.do(t, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	views := decodeBody[[]model.View](t, w)
	require.Len(t, views, 1)
	assert.Equal(t, "Loaded", views[0].Title)

	w = env.do(t, http.MethodPost, "/api/reload", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	loader.AssertExpectations(t)
}

func TestTaskHandler_ReloadFailure(t *testing.T) {
	loader := new(MockLoader)
	loader.On("Load", mock.Anything).Return(nil, errors.Join(repo.ErrLoad, errors.New("dns"))).Twice()

	env := setupHandler(t, loader)
	_ = env.handler.Load(context.Background())

	w := env.do(t, http.MethodPost, "/api/reload", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	loader.AssertExpectations(t)
}

func TestTaskHandler_Create(t *testing.T) {
	tests := []struct {
		name          string
		body          interface{}
		wantCode      int
		checkResponse func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:     "successful creation",
			body:     map[string]interface{}{"title": "Buy milk"},
			wantCode: http.StatusCreated,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				view := decodeBody[model.View](t, w)
				assert.NotEmpty(t, view.ID)
				assert.Equal(t, "Buy milk", view.Title)
				assert.False(t, view.Completed)
				assert.Nil(t, view.DueDate)
				assert.Equal(t, "/api/tasks/"+view.ID, w.Header().Get("Location"))
			},
		},
		{
			name:     "with due date",
			body:     map[string]interface{}{"title": "Dentist", "due_date": "2024-01-05"},
			wantCode: http.StatusCreated,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				view := decodeBody[model.View](t, w)
				assert.Equal(t, "Jan 5, 2024", view.FormattedDueDate)
			},
		},
		{
			name:     "empty body",
			body:     nil,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "invalid json",
			body:     "{",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing title",
			body:     map[string]interface{}{"due_date": "2024-01-05"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "whitespace title",
			body:     map[string]interface{}{"title": "   "},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "title too long",
			body:     map[string]interface{}{"title": strings.Repeat("a", 101)},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "bad due date",
			body:     map[string]interface{}{"title": "x", "due_date": "tomorrow"},
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupReady(t)

			w := env.do(t, http.MethodPost, "/api/tasks", tt.body)
			assert.Equal(t, tt.wantCode, w.Code)

			if tt.checkResponse != nil {
				tt.checkResponse(t, w)
				return
			}

			w = env.do(t, http.MethodGet, "/api/tasks", nil)
			assert.Empty(t, decodeBody[[]model.View](t, w), "rejected input must not add a task")
		})
	}
}

func TestTaskHandler_CRUDWorkflow(t *testing.T) {
	env := setupReady(t)

	w := env.do(t, http.MethodPost, "/api/tasks", map[string]string{"title": "Buy milk"})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeBody[model.View](t, w)

	t.Run("get", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/tasks/"+created.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, created.ID, decodeBody[model.View](t, w).ID)

		w = env.do(t, http.MethodGet, "/api/tasks/nope", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("update", func(t *testing.T) {
		w := env.do(t, http.MethodPatch, "/api/tasks/"+created.ID, map[string]string{
			"title":    "Buy oat milk",
			"due_date": "2024-01-10T09:00:00Z",
		})
		require.Equal(t, http.StatusOK, w.Code)
		updated := decodeBody[model.View](t, w)
		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, "Buy oat milk", updated.Title)
		assert.Equal(t, "Jan 10, 2024", updated.FormattedDueDate)

		w = env.do(t, http.MethodPatch, "/api/tasks/nope", map[string]string{"title": "x"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("toggle", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/tasks/"+created.ID+"/toggle", nil)
		require.Equal(t, http.StatusOK, w.Code)
		toggled := decodeBody[model.View](t, w)
		assert.True(t, toggled.Completed)
		assert.NotNil(t, toggled.DueDate, "toggle keeps the due date")

		w = env.do(t, http.MethodPost, "/api/tasks/nope/toggle", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("stats", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/stats", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, model.Stats{Total: 1, Completed: 1}, decodeBody[model.Stats](t, w))
	})

	t.Run("delete", func(t *testing.T) {
		w := env.do(t, http.MethodDelete, "/api/tasks/"+created.ID, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = env.do(t, http.MethodDelete, "/api/tasks/"+created.ID, nil)
		assert.Equal(t, http.StatusNoContent, w.Code, "deleting a missing task is a no-op")

		w = env.do(t, http.MethodGet, "/api/tasks", nil)
		assert.Empty(t, decodeBody[[]model.View](t, w))
	})
}

func TestTaskHandler_DeleteCompleted(t *testing.T) {
	env := setupReady(t,
		model.Record{ID: "A", Title: "A", Completed: true},
		model.Record{ID: "B", Title: "B"},
		model.Record{ID: "C", Title: "C", Completed: true},
	)

	w := env.do(t, http.MethodDelete, "/api/tasks/completed", nil)
	require.Equal(t, http.StatusPreconditionRequired, w.Code)
	prompt := decodeBody[respond.ErrorBody](t, w)
	assert.Equal(t, "Delete All Completed Tasks", prompt.Error)
	assert.Contains(t, prompt.Message, "cannot be undone")

	w = env.do(t, http.MethodGet, "/api/tasks", nil)
	assert.Len(t, decodeBody[[]model.View](t, w), 3, "nothing removed without confirmation")

	w = env.do(t, http.MethodDelete, "/api/tasks/completed?confirm=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decodeBody[deletedResponse](t, w).Deleted)

	w = env.do(t, http.MethodGet, "/api/tasks", nil)
	views := decodeBody[[]model.View](t, w)
	require.Len(t, views, 1)
	assert.Equal(t, "B", views[0].ID)
}

func TestTaskHandler_Sort(t *testing.T) {
	day := func(d int) *time.Time {
		t := time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
		return &t
	}
	env := setupReady(t,
		model.Record{ID: "A", Title: "A", DueDate: day(10)},
		model.Record{ID: "B", Title: "B", DueDate: day(10), Completed: true},
		model.Record{ID: "C", Title: "C", DueDate: day(5)},
		model.Record{ID: "D", Title: "D"},
	)

	order := func() []string {
		w := env.do(t, http.MethodGet, "/api/tasks", nil)
		var out []string
		for _, v := range decodeBody[[]model.View](t, w) {
			out = append(out, v.ID)
		}
		return out
	}

	assert.Equal(t, []string{"A", "B", "C", "D"}, order())

	w := env.do(t, http.MethodPut, "/api/sort", map[string]bool{"enabled": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeBody[stateResponse](t, w).SortByDueDate)
	assert.Equal(t, []string{"C", "A", "B", "D"}, order())

	w = env.do(t, http.MethodPut, "/api/sort", map[string]bool{"enabled": false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"A", "B", "C", "D"}, order())

	w = env.do(t, http.MethodPut, "/api/sort", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTaskHandler_Edit(t *testing.T) {
	env := setupReady(t, model.Record{ID: "1", Title: "Edit me"})

	w := env.do(t, http.MethodGet, "/api/edit", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPut, "/api/edit", map[string]string{"id": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPut, "/api/edit", map[string]string{"id": "1"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/edit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Edit me", decodeBody[model.View](t, w).Title)

	w = env.do(t, http.MethodDelete, "/api/edit", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/api/edit", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTaskHandler_ReminderOnLoad(t *testing.T) {
	env := setupHandler(t, repo.NewStaticLoader(
		model.Record{ID: "1", Title: "a"},
		model.Record{ID: "2", Title: "b"},
		model.Record{ID: "3", Title: "c", Completed: true},
	))
	require.NoError(t, env.handler.Load(context.Background()))

	var inbox []notify.Notification
	assert.Eventually(t, func() bool {
		w := env.do(t, http.MethodGet, "/api/notifications", nil)
		inbox = decodeBody[[]notify.Notification](t, w)
		return len(inbox) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Len(t, inbox, 1)
	assert.Equal(t, service.ReminderTitle, inbox[0].Title)
	assert.Equal(t, service.ReminderBody(2), inbox[0].Body)

	// mutations do not trigger further reminders
	env.do(t, http.MethodPost, "/api/tasks", map[string]string{"title": "new"})
	env.do(t, http.MethodPost, "/api/tasks/1/toggle", nil)
	time.Sleep(50 * time.Millisecond)
	w := env.do(t, http.MethodGet, "/api/notifications", nil)
	assert.Len(t, decodeBody[[]notify.Notification](t, w), 1)

	w = env.do(t, http.MethodGet, "/api/reminder", nil)
	require.Equal(t, http.StatusOK, w.Code)
	preview := decodeBody[reminderResponse](t, w)
	assert.Equal(t, 2, preview.Count)
	assert.Equal(t, service.ReminderBody(2), preview.Body)

	w = env.do(t, http.MethodDelete, "/api/notifications", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodGet, "/api/notifications", nil)
	assert.Empty(t, decodeBody[[]notify.Notification](t, w))
}

func TestTaskHandler_RemindOnlyWhenReady(t *testing.T) {
	env := setupHandler(t, repo.NewStaticLoader(model.Record{ID: "1", Title: "a"}))

	env.handler.Remind(context.Background())
	time.Sleep(30 * time.Millisecond)
	w := env.do(t, http.MethodGet, "/api/notifications", nil)
	assert.Empty(t, decodeBody[[]notify.Notification](t, w))
}

func TestTaskHandler_InboxIsBounded(t *testing.T) {
	env := setupReady(t)

	for i := 0; i < maxInbox+5; i++ {
		require.NoError(t, env.hub.Schedule(context.Background(), "t", fmt.Sprintf("body %d", i)))
	}

	w := env.do(t, http.MethodGet, "/api/notifications", nil)
	inbox := decodeBody[[]notify.Notification](t, w)
	require.Len(t, inbox, maxInbox)
	assert.Equal(t, fmt.Sprintf("body %d", maxInbox+4), inbox[maxInbox-1].Body)
}

func TestTaskHandler_CloseUnsubscribes(t *testing.T) {
	env := setupReady(t)
	assert.Equal(t, 1, env.hub.Subscribers())

	env.handler.Close()
	env.handler.Close()
	assert.Equal(t, 0, env.hub.Subscribers())

	require.NoError(t, env.hub.Schedule(context.Background(), "t", "b"))
	w := env.do(t, http.MethodGet, "/api/notifications", nil)
	assert.Empty(t, decodeBody[[]notify.Notification](t, w))
}
