// Package store はスキーマ検証付きのSQLクエリ実行を提供する。
//
// すべての結果行は呼び出し元に返す前にJSON Schemaで検証される。
// スキーマと一致しない行はValidationErrorとして明示的に失敗させ、
// 壊れたデータを下流に流さない。
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shnkreddy98/bootstrap/internal/schema"
)

// Querier はクエリ実行に必要なインターフェース。
// *sql.DB と *sql.Tx の両方が満たす。
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ValidationObserver は行の検証失敗を通知されるコールバック。
type ValidationObserver func(schemaName string)

// Store はQuerierとスキーマ検証を束ねる。
type Store struct {
	q         Querier
	onInvalid ValidationObserver
}

// Option はStoreの生成オプション。
type Option func(*Store)

// WithValidationObserver は検証失敗時に呼ばれるオブザーバーを設定する。
func WithValidationObserver(fn ValidationObserver) Option {
	return func(s *Store) {
		s.onInvalid = fn
	}
}

// New はStoreを生成する。
func New(q Querier, opts ...Option) *Store {
	s := &Store{q: q}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidationError はDB行がスキーマと一致しないことを表す。
// スキーマとDBのドリフトなどプログラム側の不具合として扱い、リトライしない。
type ValidationError struct {
	Schema string
	Row    int
	Err    error
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	return fmt.Sprintf("database result validation failed at row %d (schema %s): %v", e.Row, e.Schema, e.Err)
}

// Unwrap は原因エラーを返す。
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// QueryMany はクエリを実行し、全行をスキーマで検証してTのスライスとして返す。
// 最初に検証に失敗した行でValidationErrorを返し、それまでの行は返さない。
// 結果が0行の場合は空スライスを返す。
// パラメータは必ずプレースホルダ（$1, $2, ...）経由で渡すこと。
func QueryMany[T any](ctx context.Context, s *Store, sc *schema.Schema, query string, args ...any) ([]T, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	result := make([]T, 0)
	for index := 0; rows.Next(); index++ {
		raw, err := scanRow(rows, cols)
		if err != nil {
			return nil, err
		}

		var item T
		if err := sc.Decode(raw, &item); err != nil {
			return nil, s.invalid(sc, index, err)
		}
		result = append(result, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return result, nil
}

// QueryOne はクエリを実行し、先頭行のみをスキーマで検証して返す。
// 結果が0行の場合は (nil, nil) を返す。
func QueryOne[T any](ctx context.Context, s *Store, sc *schema.Schema, query string, args ...any) (*T, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate rows: %w", err)
		}
		return nil, nil
	}

	raw, err := scanRow(rows, cols)
	if err != nil {
		return nil, err
	}

	var item T
	if err := sc.Decode(raw, &item); err != nil {
		return nil, s.invalid(sc, 0, err)
	}

	return &item, nil
}

func (s *Store) invalid(sc *schema.Schema, row int, err error) error {
	if s.onInvalid != nil {
		s.onInvalid(sc.Name())
	}
	return &ValidationError{Schema: sc.Name(), Row: row, Err: err}
}

// scanRow は現在の行をカラム名→値のJSONオブジェクトに変換する。
func scanRow(rows *sql.Rows, cols []string) ([]byte, error) {
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	row := make(map[string]any, len(cols))
	for i, col := range cols {
		row[col] = normalize(values[i])
	}

	raw, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("failed to encode row: %w", err)
	}
	return raw, nil
}

// normalize はドライバが返す値をJSONに載せられる形に揃える。
// タイムスタンプはRFC 3339文字列、バイト列は文字列として扱う。
func normalize(v any) any {
	switch val := v.(type) {
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case []byte:
		return string(val)
	default:
		return val
	}
}
