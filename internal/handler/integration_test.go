package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shnkreddy98/bootstrap/internal/auth"
	"github.com/shnkreddy98/bootstrap/internal/middleware"
	"github.com/shnkreddy98/bootstrap/internal/model"
	"github.com/shnkreddy98/bootstrap/internal/security"
	"github.com/shnkreddy98/bootstrap/internal/todo"
)

// --- 統合テスト用のステートフルモック ---

// integrationState は統合テスト用の共有状態を保持する。
// PostgreSQLのtodos/usersテーブルと同じく、操作はuser_idでスコープされる。
type integrationState struct {
	mu     sync.Mutex
	users  map[string]model.User
	todos  map[int64]model.Todo
	nextID int64
	clock  time.Time
}

func newIntegrationState() *integrationState {
	return &integrationState{
		users: make(map[string]model.User),
		todos: make(map[int64]model.Todo),
		clock: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *integrationState) Upsert(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = *user
	return nil
}

func (s *integrationState) ListByUser(ctx context.Context, userID string) ([]model.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	todos := make([]model.Todo, 0)
	for _, t := range s.todos {
		if t.UserID == userID {
			todos = append(todos, t)
		}
	}
	sort.Slice(todos, func(i, j int) bool {
		if !todos[i].CreatedAt.Equal(todos[j].CreatedAt) {
			return todos[i].CreatedAt.After(todos[j].CreatedAt)
		}
		return todos[i].ID > todos[j].ID
	})
	return todos, nil
}

func (s *integrationState) Create(ctx context.Context, userID, title string, completed bool) (*model.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.clock = s.clock.Add(time.Second)
	t := model.Todo{ID: s.nextID, UserID: userID, Title: title, Completed: completed, CreatedAt: s.clock}
	s.todos[t.ID] = t
	return &t, nil
}

func (s *integrationState) SetCompleted(ctx context.Context, userID string, id int64, completed bool) (*model.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.todos[id]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	t.Completed = completed
	s.todos[id] = t
	return &t, nil
}

func (s *integrationState) Delete(ctx context.Context, userID string, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.todos[id]
	if !ok || t.UserID != userID {
		return false, nil
	}
	delete(s.todos, id)
	return true, nil
}

// --- 統合テスト用ルーター構築ヘルパー ---

func createIntegrationRouter(t *testing.T, state *integrationState) http.Handler {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	resolver := auth.NewResolver(auth.NewStrategy(true, nil), state, auth.ResolverConfig{})

	return NewRouter(&RouterDeps{
		Authenticator:     resolver,
		CORSAllowedOrigin: "http://localhost:5173",
		RateLimiter:       rl,
		TodoService:       todo.NewService(state, security.NewTitleSanitizer()),
		ExternalAuthURL:   "https://auth.example.com/login",
	})
}

type apiClient struct {
	t      *testing.T
	router http.Handler
	token  string
	cookie *http.Cookie
}

func (c *apiClient) do(method, path, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	for _, ck := range w.Result().Cookies() {
		if ck.Name == auth.AnonymousCookieName {
			c.cookie = ck
		}
	}
	return w
}

func (c *apiClient) listTodos() []model.Todo {
	c.t.Helper()
	w := c.do(http.MethodGet, "/api/todos", "")
	if w.Code != http.StatusOK {
		c.t.Fatalf("GET /api/todos status = %d: %s", w.Code, w.Body.String())
	}
	var todos []model.Todo
	if err := json.NewDecoder(w.Body).Decode(&todos); err != nil {
		c.t.Fatalf("failed to decode todos: %v", err)
	}
	return todos
}

func mockUserToken(t *testing.T, name string) string {
	t.Helper()
	u, ok := auth.LookupMockUser(name)
	if !ok {
		t.Fatalf("mock user %s not defined", name)
	}
	return auth.GenerateMockToken(u, time.Now())
}

// --- シナリオ ---

func TestIntegration_CrossUserIsolation(t *testing.T) {
	state := newIntegrationState()
	router := createIntegrationRouter(t, state)

	userA := &apiClient{t: t, router: router, token: mockUserToken(t, "testUser1")}
	userB := &apiClient{t: t, router: router, token: mockUserToken(t, "testUser2")}

	// ユーザーAがTodoを作成する
	w := userA.do(http.MethodPost, "/api/todos", `{"title": "A's todo"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	var created model.Todo
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created.UserID != "test-user-1" || created.Completed {
		t.Errorf("created = %+v", created)
	}

	if todos := userA.listTodos(); len(todos) != 1 || todos[0].ID != created.ID {
		t.Errorf("user A todos = %+v", todos)
	}

	// ユーザーBには見えない
	if todos := userB.listTodos(); len(todos) != 0 {
		t.Errorf("user B should see no todos, got %+v", todos)
	}

	// ユーザーBはAのTodoを更新・削除できない
	path := "/api/todos/" + strconv.FormatInt(created.ID, 10)
	if w := userB.do(http.MethodPatch, path, `{"completed": true}`); w.Code != http.StatusNotFound {
		t.Errorf("foreign PATCH status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if w := userB.do(http.MethodDelete, path, ""); w.Code != http.StatusNotFound {
		t.Errorf("foreign DELETE status = %d, want %d", w.Code, http.StatusNotFound)
	}

	// Aの行は変わっていない
	todos := userA.listTodos()
	if len(todos) != 1 || todos[0].Completed {
		t.Errorf("user A todo should be unchanged, got %+v", todos)
	}

	// 所有者は更新・削除できる
	if w := userA.do(http.MethodPatch, path, `{"completed": true}`); w.Code != http.StatusOK {
		t.Errorf("owner PATCH status = %d", w.Code)
	}
	if w := userA.do(http.MethodDelete, path, ""); w.Code != http.StatusOK {
		t.Errorf("owner DELETE status = %d", w.Code)
	}
	if todos := userA.listTodos(); len(todos) != 0 {
		t.Errorf("todo should be deleted, got %+v", todos)
	}
}

func TestIntegration_ListIsNewestFirst(t *testing.T) {
	router := createIntegrationRouter(t, newIntegrationState())
	client := &apiClient{t: t, router: router, token: mockUserToken(t, "testUser1")}

	for _, title := range []string{"first", "second", "third"} {
		if w := client.do(http.MethodPost, "/api/todos", `{"title": "`+title+`"}`); w.Code != http.StatusCreated {
			t.Fatalf("create %s status = %d", title, w.Code)
		}
	}

	todos := client.listTodos()
	got := make([]string, 0, len(todos))
	for _, td := range todos {
		got = append(got, td.Title)
	}
	if strings.Join(got, ",") != "third,second,first" {
		t.Errorf("order = %v, want [third second first]", got)
	}
}

func TestIntegration_AnonymousCookieIdentity(t *testing.T) {
	state := newIntegrationState()
	router := createIntegrationRouter(t, state)
	client := &apiClient{t: t, router: router}

	// 初回リクエストでCookieが払い出される
	w := client.do(http.MethodGet, "/api/me", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/me status = %d", w.Code)
	}
	if client.cookie == nil {
		t.Fatal("anonymous cookie should be issued")
	}
	if !client.cookie.HttpOnly || client.cookie.MaxAge != auth.AnonymousCookieMaxAge {
		t.Errorf("cookie attributes = %+v", client.cookie)
	}

	var me map[string]any
	if err := json.NewDecoder(w.Body).Decode(&me); err != nil {
		t.Fatal(err)
	}
	if me["userId"] != client.cookie.Value || me["isAnonymous"] != true {
		t.Errorf("me = %v, cookie = %s", me, client.cookie.Value)
	}

	// 同じCookieで作ったTodoは同じユーザーのもの
	if w := client.do(http.MethodPost, "/api/todos", `{"title": "anon todo"}`); w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}
	todos := client.listTodos()
	if len(todos) != 1 || todos[0].UserID != client.cookie.Value {
		t.Errorf("todos = %+v", todos)
	}

	if _, ok := state.users[client.cookie.Value]; !ok {
		t.Error("anonymous user should be persisted")
	}
}

func TestIntegration_TitleIsSanitized(t *testing.T) {
	router := createIntegrationRouter(t, newIntegrationState())
	client := &apiClient{t: t, router: router, token: mockUserToken(t, "testUser1")}

	w := client.do(http.MethodPost, "/api/todos", `{"title": "  <script>alert(1)</script>Buy <b>milk</b>  "}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var created model.Todo
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(created.Title, "<") {
		t.Errorf("title should be sanitized, got %q", created.Title)
	}

	// タグのみのタイトルはサニタイズ後に空になり400
	if w := client.do(http.MethodPost, "/api/todos", `{"title": "<b></b>"}`); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestIntegration_InvalidBearerRejected(t *testing.T) {
	router := createIntegrationRouter(t, newIntegrationState())

	// モック以外のトークンはJWKS未設定のため500
	unconfigured := &apiClient{t: t, router: router, token: "eyJhbGciOiJSUzI1NiJ9.e30.sig"}
	if w := unconfigured.do(http.MethodGet, "/api/todos", ""); w.Code != http.StatusInternalServerError {
		t.Errorf("unconfigured JWKS status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	// 壊れたモックトークンも実トークンの検証に回り、JWKS未設定のため500
	broken := &apiClient{t: t, router: router, token: "mock.test-user-1.!!!"}
	if w := broken.do(http.MethodGet, "/api/todos", ""); w.Code != http.StatusInternalServerError {
		t.Errorf("malformed mock token status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if broken.cookie != nil {
		t.Error("bearer requests must not receive an anonymous cookie")
	}
}
