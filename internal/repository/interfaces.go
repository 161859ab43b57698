// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/shnkreddy98/bootstrap/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Upsert はuser_idをキーにユーザーを作成または更新する。
	// 競合時はemail、氏名、匿名フラグ、updated_atを無条件に上書きする（後勝ち）。
	// 返却行の検証に失敗した場合はstore.ValidationErrorを返す。
	Upsert(ctx context.Context, user *model.User) error

	// FindByUserID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.User, error)
}

// TodoRepository はTodoデータの永続化インターフェース。
// すべての操作はuserIDでスコープされ、他ユーザーのTodoには触れない。
type TodoRepository interface {
	// ListByUser はユーザーのTodoを作成日時の新しい順に返す。
	ListByUser(ctx context.Context, userID string) ([]model.Todo, error)

	// Create はTodoを作成して返す。
	Create(ctx context.Context, userID, title string, completed bool) (*model.Todo, error)

	// SetCompleted は完了状態を更新して返す。
	// 対象が存在しない、または他ユーザーのものである場合はnilを返す。
	SetCompleted(ctx context.Context, userID string, id int64, completed bool) (*model.Todo, error)

	// Delete はTodoを削除する。
	// 対象が存在しない、または他ユーザーのものである場合はfalseを返す。
	Delete(ctx context.Context, userID string, id int64) (bool, error)
}
