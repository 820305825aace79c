// Package notify delivers local notifications to whoever is listening.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Notification struct {
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// Hub shows notifications immediately: each one is logged and handed to every
// current subscriber.
type Hub struct {
	logger *zap.Logger
	now    func() time.Time

	mu     sync.RWMutex
	subs   map[int]func(Notification)
	nextID int
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		now:    time.Now,
		subs:   make(map[int]func(Notification)),
	}
}

func (h *Hub) Schedule(ctx context.Context, title, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n := Notification{Title: title, Body: body, ReceivedAt: h.now()}
	h.logger.Info("notification", zap.String("title", title), zap.String("body", body))

	h.mu.RLock()
	subs := make([]func(Notification), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.RUnlock()

	for _, fn := range subs {
		fn(n)
	}
	return nil
}

// Subscribe registers fn for notifications received from now on. The
// returned function removes it and may be called more than once.
func (h *Hub) Subscribe(fn func(Notification)) (unsubscribe func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
