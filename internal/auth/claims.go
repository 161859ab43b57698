package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/shnkreddy98/bootstrap/internal/model"
	"github.com/shnkreddy98/bootstrap/internal/schema"
)

// Claims はベアラートークンのペイロード。
// 登録済みクレームに加え、IdPが付与するプロフィール情報を持つ。
type Claims struct {
	jwt.RegisteredClaims
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// User はクレームからユーザーを組み立てる。
// プロフィール情報を1つも持たない場合は匿名ユーザーになる。
func (c *Claims) User() *model.User {
	return &model.User{
		ID:        c.Subject,
		Email:     c.Email,
		FirstName: c.FirstName,
		LastName:  c.LastName,
	}
}

// decodeClaims はペイロードJSONをスキーマで検証してからClaimsにデコードする。
func decodeClaims(raw []byte) (*Claims, error) {
	var c Claims
	if err := schema.Claims.Decode(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
