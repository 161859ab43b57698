// Package model はドメインモデルを定義する。
package model

import "time"

// User はリクエストを送ってきた利用者を表す。
// 外部IdPのsubject、またはCookieで払い出した匿名IDで識別される。
type User struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAnonymous はemail、first name、last nameのいずれも持たない場合にtrueを返す。
// プロキシがPIIを除去してsubjectのみを渡してくるケースも匿名として扱う。
func (u *User) IsAnonymous() bool {
	return u.Email == "" && u.FirstName == "" && u.LastName == ""
}
