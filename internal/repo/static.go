package repo

import (
	"context"
	"slices"

	"github.com/BuzzLyutic/todo-board/internal/model"
)

// StaticLoader serves a fixed set of records.
type StaticLoader struct {
	records []model.Record
}

func NewStaticLoader(records ...model.Record) *StaticLoader {
	return &StaticLoader{records: records}
}

func (l *StaticLoader) Load(ctx context.Context) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(l.records), nil
}
