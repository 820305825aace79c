package repo

import (
	"context"
	"errors"

	"github.com/BuzzLyutic/todo-board/internal/model"
)

var ErrLoad = errors.New("load failed")

// Loader определяет источник начального списка задач
type Loader interface {
	Load(ctx context.Context) ([]model.Record, error)
}
