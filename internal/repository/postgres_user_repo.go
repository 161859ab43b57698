package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shnkreddy98/bootstrap/internal/model"
	"github.com/shnkreddy98/bootstrap/internal/schema"
	"github.com/shnkreddy98/bootstrap/internal/store"
)

const userColumns = `id, user_id, email, first_name, last_name, is_anonymous, created_at, updated_at`

// userRecord はusersテーブルの1行を表す。
type userRecord struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	Email       *string   `json:"email"`
	FirstName   *string   `json:"first_name"`
	LastName    *string   `json:"last_name"`
	IsAnonymous bool      `json:"is_anonymous"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r *userRecord) toModel() *model.User {
	return &model.User{
		ID:        r.UserID,
		Email:     deref(r.Email),
		FirstName: deref(r.FirstName),
		LastName:  deref(r.LastName),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	store *store.Store
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(s *store.Store) *PostgresUserRepo {
	return &PostgresUserRepo{store: s}
}

// Upsert はuser_idをキーにユーザーをUPSERTする。
// 成功時はuserのCreatedAt、UpdatedAtをDBの値で埋める。
func (r *PostgresUserRepo) Upsert(ctx context.Context, user *model.User) error {
	rec, err := store.QueryOne[userRecord](ctx, r.store, schema.UserRecord,
		`INSERT INTO users (user_id, email, first_name, last_name, is_anonymous, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (user_id)
		 DO UPDATE SET
		   email = EXCLUDED.email,
		   first_name = EXCLUDED.first_name,
		   last_name = EXCLUDED.last_name,
		   is_anonymous = EXCLUDED.is_anonymous,
		   updated_at = NOW()
		 RETURNING `+userColumns,
		user.ID, nullable(user.Email), nullable(user.FirstName), nullable(user.LastName), user.IsAnonymous(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("failed to upsert user: no row returned for %s", user.ID)
	}

	user.CreatedAt = rec.CreatedAt
	user.UpdatedAt = rec.UpdatedAt
	return nil
}

// FindByUserID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUserID(ctx context.Context, userID string) (*model.User, error) {
	rec, err := store.QueryOne[userRecord](ctx, r.store, schema.UserRecord,
		`SELECT `+userColumns+` FROM users WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	return rec.toModel(), nil
}

// nullable は空文字列をNULLとして渡す。
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
