package repository

import (
	"context"
	"fmt"

	"github.com/shnkreddy98/bootstrap/internal/model"
	"github.com/shnkreddy98/bootstrap/internal/schema"
	"github.com/shnkreddy98/bootstrap/internal/store"
)

const todoColumns = `id, user_id, title, completed, created_at`

// todoIDRecord は削除結果の行を表す。
type todoIDRecord struct {
	ID int64 `json:"id"`
}

// PostgresTodoRepo はPostgreSQLを使用したTodoリポジトリ。
type PostgresTodoRepo struct {
	store *store.Store
}

// NewPostgresTodoRepo はPostgresTodoRepoを生成する。
func NewPostgresTodoRepo(s *store.Store) *PostgresTodoRepo {
	return &PostgresTodoRepo{store: s}
}

// ListByUser はユーザーのTodoを作成日時の新しい順に返す。
func (r *PostgresTodoRepo) ListByUser(ctx context.Context, userID string) ([]model.Todo, error) {
	todos, err := store.QueryMany[model.Todo](ctx, r.store, schema.Todo,
		`SELECT `+todoColumns+` FROM todos
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	return todos, nil
}

// Create はTodoを作成して返す。
func (r *PostgresTodoRepo) Create(ctx context.Context, userID, title string, completed bool) (*model.Todo, error) {
	todo, err := store.QueryOne[model.Todo](ctx, r.store, schema.Todo,
		`INSERT INTO todos (user_id, title, completed)
		 VALUES ($1, $2, $3)
		 RETURNING `+todoColumns,
		userID, title, completed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}
	if todo == nil {
		return nil, fmt.Errorf("failed to create todo: no row returned")
	}
	return todo, nil
}

// SetCompleted は完了状態を更新する。
// WHERE句にuser_idを含めるため、他ユーザーのTodoは更新されずnilが返る。
func (r *PostgresTodoRepo) SetCompleted(ctx context.Context, userID string, id int64, completed bool) (*model.Todo, error) {
	todo, err := store.QueryOne[model.Todo](ctx, r.store, schema.Todo,
		`UPDATE todos SET completed = $1
		 WHERE id = $2 AND user_id = $3
		 RETURNING `+todoColumns,
		completed, id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}
	return todo, nil
}

// Delete はTodoを削除する。
// WHERE句にuser_idを含めるため、他ユーザーのTodoは削除されずfalseが返る。
func (r *PostgresTodoRepo) Delete(ctx context.Context, userID string, id int64) (bool, error) {
	rec, err := store.QueryOne[todoIDRecord](ctx, r.store, schema.TodoID,
		`DELETE FROM todos WHERE id = $1 AND user_id = $2 RETURNING id`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete todo: %w", err)
	}
	return rec != nil, nil
}

// compile-time interface check
var _ TodoRepository = (*PostgresTodoRepo)(nil)
