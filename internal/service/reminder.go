package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

const ReminderTitle = "Upcoming Tasks 🗓️ ~"

// Notifier shows a local notification.
type Notifier interface {
	Schedule(ctx context.Context, title, body string) error
}

type Reminder struct {
	notifier Notifier
	logger   *zap.Logger
}

func NewReminder(notifier Notifier, logger *zap.Logger) *Reminder {
	return &Reminder{
		notifier: notifier,
		logger:   logger,
	}
}

func ReminderBody(n int) string {
	noun := "tasks"
	if n == 1 {
		noun = "task"
	}
	return fmt.Sprintf("You still have %d %s not finished yet. Please remember to check~", n, noun)
}

// Preview returns the number of unfinished tasks and the text a reminder would carry.
func (r *Reminder) Preview(l *TaskList) (int, string) {
	n := len(l.OverdueOrUndated())
	return n, ReminderBody(n)
}

// Remind counts unfinished tasks and, if there are any, hands a notification
// to the notifier without waiting for it. Delivery failures are only logged.
func (r *Reminder) Remind(ctx context.Context, l *TaskList) int {
	n, body := r.Preview(l)
	if n == 0 {
		return 0
	}

	// fire-and-forget: контекст запроса может закончиться раньше доставки
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := r.notifier.Schedule(ctx, ReminderTitle, body); err != nil {
			r.logger.Warn("reminder not delivered", zap.Int("tasks", n), zap.Error(err))
		}
	}()

	r.logger.Info("reminder scheduled", zap.Int("tasks", n))
	return n
}
