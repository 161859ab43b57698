package auth

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shnkreddy98/bootstrap/internal/model"
)

const (
	// mockTokenTag はモックトークンの先頭フィールド。
	mockTokenTag = "mock"
	// mockTokenTTL はモックトークンの有効期間。
	mockTokenTTL = time.Hour
)

// MockUser は開発・テスト用の固定ユーザー。
type MockUser struct {
	Name string
	User model.User
}

// MockUsers は定義済みのテストユーザー。順序はトークン出力の順序になる。
var MockUsers = []MockUser{
	{Name: "testUser1", User: model.User{ID: "test-user-1", Email: "test1@example.com", FirstName: "Test", LastName: "User"}},
	{Name: "testUser2", User: model.User{ID: "test-user-2", Email: "test2@example.com", FirstName: "Second", LastName: "Tester"}},
	{Name: "anonymous", User: model.User{ID: "test-anonymous-user"}},
}

// LookupMockUser は名前でテストユーザーを探す。
func LookupMockUser(name string) (model.User, bool) {
	for _, mu := range MockUsers {
		if mu.Name == name {
			return mu.User, true
		}
	}
	return model.User{}, false
}

// MockToken は名前付きのモックトークン。
type MockToken struct {
	Name  string
	Token string
}

// GenerateMockToken はモックトークンを生成する。
// 形式は "mock.<userId>.<base64(JSON)>" で、有効期限はnowから1時間。
func GenerateMockToken(u model.User, now time.Time) string {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(mockTokenTTL)),
		},
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}

	// Claimsはmarshal可能な型のみで構成されるためエラーにならない
	payload, _ := json.Marshal(claims)
	return fmt.Sprintf("%s.%s.%s", mockTokenTag, u.ID, base64.StdEncoding.EncodeToString(payload))
}

// AllMockTokens は定義済みテストユーザー全員分のモックトークンを生成する。
func AllMockTokens(now time.Time) []MockToken {
	tokens := make([]MockToken, 0, len(MockUsers))
	for _, mu := range MockUsers {
		tokens = append(tokens, MockToken{Name: mu.Name, Token: GenerateMockToken(mu.User, now)})
	}
	return tokens
}

// IsMockToken はトークンがモックトークンのタグを持つかどうかを返す。
func IsMockToken(token string) bool {
	return strings.HasPrefix(token, mockTokenTag+".")
}

// ParseMockToken はモックトークンを解析する。
// タグ不一致、構造不正、base64/JSONの不正、スキーマ違反、有効期限切れの場合はokがfalseになる。
// ペイロードにsubが無い場合は2番目のフィールドをsubとして扱う。
func ParseMockToken(token string, now time.Time) (*Claims, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] != mockTokenTag {
		return nil, false
	}

	payload, ok := decodeBase64(parts[2])
	if !ok {
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil || doc == nil {
		return nil, false
	}

	if sub, exists := doc["sub"]; !exists || sub == nil || sub == "" {
		doc["sub"] = parts[1]
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, false
	}

	claims, err := decodeClaims(raw)
	if err != nil {
		return nil, false
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Unix() < now.Unix() {
		return nil, false
	}

	return claims, true
}

// decodeBase64 はパディング有無、URL安全形式のいずれも受け付ける。
func decodeBase64(s string) ([]byte, bool) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, true
		}
	}
	return nil, false
}
