// Package model はドメインモデルを定義する。
package model

import "time"

// TitleMaxLength はTodoタイトルの最大文字数。
const TitleMaxLength = 200

// Todo はユーザーが所有するタスクを表す。
// JSONタグはDB行のカラム名とAPIレスポンスの両方に共通で使う。
type Todo struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}
