// Package schema はI/O境界で使うJSON Schemaを提供する。
//
// DB行、JWTクレーム、リクエストボディはすべてここで定義したスキーマで
// 検証してからGoの型にデコードする。スキーマ本体はschemas/*.jsonに
// 埋め込まれており、パッケージ初期化時に1回だけコンパイルされる。
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemasFS embed.FS

// baseURL はスキーマリソースの識別に使う仮想URL。ネットワークアクセスは発生しない。
const baseURL = "https://bootstrap.local/schemas/"

// コンパイル済みスキーマ
var (
	// Todo はtodos行の形を表す。
	Todo = mustLoad("todo")
	// TodoID は削除結果（RETURNING id）の形を表す。
	TodoID = mustLoad("todo_id")
	// UserRecord はusers行の形を表す。
	UserRecord = mustLoad("user_record")
	// Claims はJWT/モックトークンのペイロードの形を表す。
	Claims = mustLoad("claims")
	// CreateTodo はPOST /api/todos のリクエストボディの形を表す。
	CreateTodo = mustLoad("create_todo")
	// UpdateTodo はPATCH /api/todos/{id} のリクエストボディの形を表す。
	UpdateTodo = mustLoad("update_todo")
)

// Schema はコンパイル済みのJSON Schemaと名前の組。
// 並行利用しても安全。
type Schema struct {
	name     string
	compiled *jsonschema.Schema
}

// Name はスキーマ名を返す。メトリクスやログのラベルに使う。
func (s *Schema) Name() string {
	return s.name
}

// Validate はjson.Unmarshal相当の値（map[string]any, json.Number 等）を検証する。
func (s *Schema) Validate(v any) error {
	if err := s.compiled.Validate(v); err != nil {
		return fmt.Errorf("schema %s: %w", s.name, err)
	}
	return nil
}

// Decode はJSONを検証してからdstにデコードする。
// 検証に失敗した場合dstは変更されない。
func (s *Schema) Decode(raw []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("schema %s: malformed JSON: %w", s.name, err)
	}

	if err := s.Validate(doc); err != nil {
		return err
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("schema %s: failed to decode: %w", s.name, err)
	}

	return nil
}

// Load は埋め込まれたスキーマを名前で読み込みコンパイルする。
func Load(name string) (*Schema, error) {
	data, err := schemasFS.ReadFile("schemas/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("schema %s not found: %w", name, err)
	}

	url := baseURL + name + ".json"

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to add schema %s: %w", name, err)
	}

	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	return &Schema{name: name, compiled: compiled}, nil
}

func mustLoad(name string) *Schema {
	s, err := Load(name)
	if err != nil {
		panic(err)
	}
	return s
}
