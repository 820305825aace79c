package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BuzzLyutic/todo-board/internal/model"
)

type PgLoader struct { // Загрузка задач из БД
	pool *pgxpool.Pool
}

func NewPgLoader(pool *pgxpool.Pool) *PgLoader {
	return &PgLoader{
		pool: pool,
	}
}

func (l *PgLoader) Load(ctx context.Context) ([]model.Record, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id::text, title, due_date, completed
		FROM tasks
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	defer rows.Close()

	records := make([]model.Record, 0)
	for rows.Next() {
		var (
			r   model.Record
			due *time.Time
		)
		if err := rows.Scan(&r.ID, &r.Title, &due, &r.Completed); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoad, err)
		}
		r.DueDate = due
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	return records, nil
}
