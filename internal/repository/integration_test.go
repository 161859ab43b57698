//go:build integration

package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shnkreddy98/bootstrap/internal/database"
	"github.com/shnkreddy98/bootstrap/internal/model"
	"github.com/shnkreddy98/bootstrap/internal/repository"
	"github.com/shnkreddy98/bootstrap/internal/store"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "bootstrap_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/bootstrap_test?sslmode=disable", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func openMigrated(t *testing.T) *sql.DB {
	t.Helper()

	// ポートが開いてもPostgreSQLの初期化が終わっていない場合があるためPingで待つ
	db, err := database.Open(dsn, database.DefaultPoolConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.Eventually(t, func() bool { return db.Ping() == nil }, 30*time.Second, 500*time.Millisecond)
	require.NoError(t, database.RunMigrations(dsn))
	return db
}

func TestMigrations_UpIsIdempotentAndVersioned(t *testing.T) {
	openMigrated(t)

	require.NoError(t, database.RunMigrations(dsn))

	status, err := database.CurrentMigrationStatus(dsn)
	require.NoError(t, err)
	latest, err := database.LatestMigrationVersion()
	require.NoError(t, err)

	assert.True(t, status.Applied)
	assert.False(t, status.Dirty)
	assert.Equal(t, latest, status.Version)
}

func TestUserRepo_Upsert_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	db := openMigrated(t)
	users := repository.NewPostgresUserRepo(store.New(db))

	first := &model.User{ID: "lww-user", Email: "old@example.com", FirstName: "Old"}
	require.NoError(t, users.Upsert(ctx, first))

	second := &model.User{ID: "lww-user", Email: "new@example.com"}
	require.NoError(t, users.Upsert(ctx, second))

	got, err := users.FindByUserID(ctx, "lww-user")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "new@example.com", got.Email)
	assert.Equal(t, "", got.FirstName, "absent names overwrite stored values")
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT count(*) FROM users WHERE user_id = $1`, "lww-user").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestUserRepo_Upsert_AnonymousFlag(t *testing.T) {
	ctx := context.Background()
	db := openMigrated(t)
	users := repository.NewPostgresUserRepo(store.New(db))

	require.NoError(t, users.Upsert(ctx, &model.User{ID: "anon-integration"}))

	var anonymous bool
	require.NoError(t, db.QueryRowContext(ctx, `SELECT is_anonymous FROM users WHERE user_id = $1`, "anon-integration").Scan(&anonymous))
	assert.True(t, anonymous)
}

func TestTodoRepo_CrossUserIsolation(t *testing.T) {
	ctx := context.Background()
	db := openMigrated(t)
	s := store.New(db)
	users := repository.NewPostgresUserRepo(s)
	todos := repository.NewPostgresTodoRepo(s)

	require.NoError(t, users.Upsert(ctx, &model.User{ID: "owner-a"}))
	require.NoError(t, users.Upsert(ctx, &model.User{ID: "owner-b"}))

	created, err := todos.Create(ctx, "owner-a", "A's todo", false)
	require.NoError(t, err)

	listB, err := todos.ListByUser(ctx, "owner-b")
	require.NoError(t, err)
	assert.Empty(t, listB)

	updated, err := todos.SetCompleted(ctx, "owner-b", created.ID, true)
	require.NoError(t, err)
	assert.Nil(t, updated)

	deleted, err := todos.Delete(ctx, "owner-b", created.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	listA, err := todos.ListByUser(ctx, "owner-a")
	require.NoError(t, err)
	require.Len(t, listA, 1)
	assert.False(t, listA[0].Completed)

	updated, err = todos.SetCompleted(ctx, "owner-a", created.ID, true)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.True(t, updated.Completed)

	deleted, err = todos.Delete(ctx, "owner-a", created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestTodoRepo_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := openMigrated(t)
	s := store.New(db)
	users := repository.NewPostgresUserRepo(s)
	todos := repository.NewPostgresTodoRepo(s)

	require.NoError(t, users.Upsert(ctx, &model.User{ID: "order-user"}))
	for _, title := range []string{"first", "second", "third"} {
		_, err := todos.Create(ctx, "order-user", title, false)
		require.NoError(t, err)
	}

	list, err := todos.ListByUser(ctx, "order-user")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "third", list[0].Title)
	assert.Equal(t, "first", list[2].Title)
}

func TestTodoRepo_TitleCheckConstraint(t *testing.T) {
	ctx := context.Background()
	db := openMigrated(t)

	_, err := db.ExecContext(ctx, `INSERT INTO users (user_id) VALUES ('check-user') ON CONFLICT DO NOTHING`)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `INSERT INTO todos (user_id, title) VALUES ('check-user', '')`)
	assert.Error(t, err)
}
