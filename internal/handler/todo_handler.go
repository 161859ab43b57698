package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shnkreddy98/bootstrap/internal/middleware"
	"github.com/shnkreddy98/bootstrap/internal/model"
	"github.com/shnkreddy98/bootstrap/internal/schema"
)

// maxRequestBodyBytes はリクエストボディの上限サイズ。
const maxRequestBodyBytes = 16 << 10

// TodoServiceInterface はTodoハンドラーが必要とするサービスインターフェース。
type TodoServiceInterface interface {
	// ListTodos はユーザーのTodoを新しい順に返す。
	ListTodos(ctx context.Context, userID string) ([]model.Todo, error)
	// CreateTodo はTodoを作成する。
	CreateTodo(ctx context.Context, userID, title string, completed bool) (*model.Todo, error)
	// SetCompleted は完了状態を更新する。
	SetCompleted(ctx context.Context, userID string, id int64, completed bool) (*model.Todo, error)
	// DeleteTodo はTodoを削除する。
	DeleteTodo(ctx context.Context, userID string, id int64) error
}

// TodoOperationRecorder は成功したTodo操作を記録する。
// metrics.Collectorが満たす。
type TodoOperationRecorder interface {
	RecordTodoOperation(operation string)
}

// TodoHandler はTodo管理のHTTPハンドラー。
type TodoHandler struct {
	service  TodoServiceInterface
	recorder TodoOperationRecorder
}

// NewTodoHandler はTodoHandlerを生成する。recorderはnilでもよい。
func NewTodoHandler(service TodoServiceInterface, recorder TodoOperationRecorder) *TodoHandler {
	return &TodoHandler{
		service:  service,
		recorder: recorder,
	}
}

// createTodoRequest はTodo作成リクエストのボディ。
type createTodoRequest struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// updateTodoRequest はTodo更新リクエストのボディ。
type updateTodoRequest struct {
	Completed bool `json:"completed"`
}

// deleteTodoResponse はTodo削除のレスポンス。
type deleteTodoResponse struct {
	Success bool `json:"success"`
}

// ListTodos はTodo一覧を返す。
// GET /api/todos
func (h *TodoHandler) ListTodos(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	todos, err := h.service.ListTodos(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.record("list")
	writeJSON(w, http.StatusOK, todos)
}

// CreateTodo はTodoを作成する。
// POST /api/todos
func (h *TodoHandler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createTodoRequest
	if !decodeBody(w, r, schema.CreateTodo, &req) {
		return
	}

	todo, err := h.service.CreateTodo(r.Context(), userID, req.Title, req.Completed)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.record("create")
	writeJSON(w, http.StatusCreated, todo)
}

// UpdateTodo はTodoの完了状態を更新する。
// PATCH /api/todos/{id}
func (h *TodoHandler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	id, ok := parseTodoID(w, r)
	if !ok {
		return
	}

	var req updateTodoRequest
	if !decodeBody(w, r, schema.UpdateTodo, &req) {
		return
	}

	todo, err := h.service.SetCompleted(r.Context(), userID, id, req.Completed)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.record("update")
	writeJSON(w, http.StatusOK, todo)
}

// DeleteTodo はTodoを削除する。
// DELETE /api/todos/{id}
func (h *TodoHandler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	id, ok := parseTodoID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteTodo(r.Context(), userID, id); err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.record("delete")
	writeJSON(w, http.StatusOK, deleteTodoResponse{Success: true})
}

func (h *TodoHandler) record(operation string) {
	if h.recorder != nil {
		h.recorder.RecordTodoOperation(operation)
	}
}

// requireUserID はコンテキストからユーザーIDを取り出す。無い場合は401を書き込みfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", false
	}
	return userID, true
}

// parseTodoID はURLパラメータのIDを正の整数として解釈する。
func parseTodoID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidIDError(raw))
		return 0, false
	}
	return id, true
}

// decodeBody はリクエストボディをスキーマで検証してdstにデコードする。
// 失敗時は400を書き込みfalseを返す。
func decodeBody(w http.ResponseWriter, r *http.Request, sc *schema.Schema, dst any) bool {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("request body could not be read"))
		return false
	}

	if err := sc.Decode(raw, dst); err != nil {
		slog.Debug("request body rejected",
			slog.String("schema", sc.Name()),
			slog.String("error", err.Error()),
		)
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("request body does not match the expected shape"))
		return false
	}
	return true
}
