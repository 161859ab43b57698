// Package todo はTodo管理のドメインロジックを提供する。
package todo

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/shnkreddy98/bootstrap/internal/model"
	"github.com/shnkreddy98/bootstrap/internal/repository"
	"github.com/shnkreddy98/bootstrap/internal/security"
)

// Service はTodo管理のサービス層。
// すべての操作は呼び出し元ユーザーのTodoに限定される。
type Service struct {
	repo      repository.TodoRepository
	sanitizer security.TitleSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.TodoRepository, sanitizer security.TitleSanitizer) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
	}
}

// ListTodos はユーザーのTodoを新しい順に返す。
func (s *Service) ListTodos(ctx context.Context, userID string) ([]model.Todo, error) {
	todos, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Todo一覧の取得に失敗しました: %w", err)
	}
	return todos, nil
}

// CreateTodo はタイトルをサニタイズしてTodoを作成する。
// サニタイズ後に空、または200文字を超える場合はINVALID_TITLEを返す。
func (s *Service) CreateTodo(ctx context.Context, userID, title string, completed bool) (*model.Todo, error) {
	cleaned := s.sanitizer.Sanitize(title)
	if cleaned == "" {
		return nil, model.NewInvalidTitleError("タイトルは必須です")
	}
	if utf8.RuneCountInString(cleaned) > model.TitleMaxLength {
		return nil, model.NewInvalidTitleError(fmt.Sprintf("タイトルは%d文字以内で入力してください", model.TitleMaxLength))
	}

	todo, err := s.repo.Create(ctx, userID, cleaned, completed)
	if err != nil {
		return nil, fmt.Errorf("Todoの作成に失敗しました: %w", err)
	}
	return todo, nil
}

// SetCompleted はTodoの完了状態を更新する。
// 存在しない、または他ユーザーのTodoの場合はTODO_NOT_FOUNDを返す。
func (s *Service) SetCompleted(ctx context.Context, userID string, id int64, completed bool) (*model.Todo, error) {
	todo, err := s.repo.SetCompleted(ctx, userID, id, completed)
	if err != nil {
		return nil, fmt.Errorf("Todoの更新に失敗しました: %w", err)
	}
	if todo == nil {
		return nil, model.NewTodoNotFoundError()
	}
	return todo, nil
}

// DeleteTodo はTodoを削除する。
// 存在しない、または他ユーザーのTodoの場合はTODO_NOT_FOUNDを返す。
func (s *Service) DeleteTodo(ctx context.Context, userID string, id int64) error {
	deleted, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("Todoの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewTodoNotFoundError()
	}
	return nil
}
