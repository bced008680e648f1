package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/intake/internal/retry"
	"github.com/mesh-intelligence/intake/pkg/types"
)

// setupStore creates an initialized SQLite store in a temp directory.
func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(types.Config{Driver: types.DriverSQLite, DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Init(context.Background()))
	return s
}

// fixedClock returns a clock that advances by one second per call.
func fixedClock(start time.Time) func() time.Time {
	cur := start
	return func() time.Time {
		t := cur
		cur = cur.Add(time.Second)
		return t
	}
}

func phase(n int64) *int64 { return &n }

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(types.Config{})
	assert.ErrorIs(t, err, types.ErrDriverEmpty)

	_, err = New(types.Config{Driver: types.DriverSQLite, Table: "bad name"})
	assert.ErrorIs(t, err, types.ErrTableNameInvalid)
}

func TestNewDoesNotConnect(t *testing.T) {
	opened := 0
	orig := sqlOpen
	sqlOpen = func(driver, dsn string) (*sql.DB, error) {
		opened++
		return orig(driver, dsn)
	}
	t.Cleanup(func() { sqlOpen = orig })

	s, err := New(types.Config{Driver: types.DriverSQLite, DataDir: t.TempDir()})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 0, opened)
	assert.Equal(t, types.DefaultTable, s.Table())

	_, err = s.Exists(context.Background(), "A001")
	assert.Error(t, err, "table does not exist before Init")
	assert.Equal(t, 1, opened)
}

func TestInsertFetch(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = fixedClock(start)

	exists, err := s.Exists(ctx, "A001")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.Insert(ctx, "A001", `{"meno_priezvisko":"Ján Novák"}`, nil))

	exists, err = s.Exists(ctx, "A001")
	require.NoError(t, err)
	assert.True(t, exists)

	env, err := s.Fetch(ctx, "A001")
	require.NoError(t, err)
	assert.Equal(t, "A001", env.CID)
	assert.Equal(t, `{"meno_priezvisko":"Ján Novák"}`, env.Data)
	assert.True(t, env.CreatedAt.Equal(start))
	assert.True(t, env.LastUpdated.Equal(start))
	assert.Nil(t, env.Phase)
}

func TestFetchMissing(t *testing.T) {
	s := setupStore(t)
	_, err := s.Fetch(context.Background(), "nope")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestUpdateRefreshesLastUpdatedOnly(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = fixedClock(start)

	require.NoError(t, s.Insert(ctx, "A001", `{"v":1}`, phase(1)))
	require.NoError(t, s.Update(ctx, "A001", `{"v":2}`, nil))

	env, err := s.Fetch(ctx, "A001")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, env.Data)
	assert.True(t, env.CreatedAt.Equal(start))
	assert.True(t, env.LastUpdated.Equal(start.Add(time.Second)))
	require.NotNil(t, env.Phase)
	assert.Equal(t, int64(1), *env.Phase, "nil phase leaves the stored phase alone")

	require.NoError(t, s.Update(ctx, "A001", `{"v":3}`, phase(2)))
	env, err = s.Fetch(ctx, "A001")
	require.NoError(t, err)
	assert.Equal(t, int64(2), *env.Phase)
}

func TestUpdateMissingReturnsNotFound(t *testing.T) {
	s := setupStore(t)
	err := s.Update(context.Background(), "ghost", `{}`, nil)
	assert.ErrorIs(t, err, types.ErrNotFound)

	var se *types.StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "update", se.Op)
}

func TestInsertDuplicateIsPermanentStoreError(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, "A001", `{}`, nil))

	err := s.Insert(ctx, "A001", `{}`, nil)
	var se *types.StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "insert", se.Op)
	assert.Equal(t, "A001", se.CID)
	assert.False(t, retry.IsTransient(err))
}

func TestValuesAreBoundNotConcatenated(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	cid := "A'001\"; DROP TABLE intake_records; --"
	data := `{"pribeh":"it's; DELETE FROM intake_records"}`

	require.NoError(t, s.Insert(ctx, cid, data, nil))
	env, err := s.Fetch(ctx, cid)
	require.NoError(t, err)
	assert.Equal(t, cid, env.CID)
	assert.Equal(t, data, env.Data)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestListOrderedByCID(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	for _, cid := range []string{"C3", "A1", "B2"} {
		require.NoError(t, s.Insert(ctx, cid, `{}`, nil))
	}
	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "A1", all[0].CID)
	assert.Equal(t, "B2", all[1].CID)
	assert.Equal(t, "C3", all[2].CID)
}

func TestResetReconnects(t *testing.T) {
	opened := 0
	orig := sqlOpen
	sqlOpen = func(driver, dsn string) (*sql.DB, error) {
		opened++
		return orig(driver, dsn)
	}
	t.Cleanup(func() { sqlOpen = orig })

	s := setupStore(t)
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, "A001", `{"a":1}`, nil))
	assert.Equal(t, 1, opened)

	s.Reset()
	s.Reset() // idempotent

	env, err := s.Fetch(ctx, "A001")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, env.Data)
	assert.Equal(t, 2, opened, "handle reopened after Reset")
}

func TestOpenFailureIsStoreError(t *testing.T) {
	orig := sqlOpen
	sqlOpen = func(string, string) (*sql.DB, error) {
		return nil, errors.New("connection refused")
	}
	t.Cleanup(func() { sqlOpen = orig })

	s, err := New(types.Config{Driver: types.DriverSQLite, DataDir: t.TempDir()})
	require.NoError(t, err)
	_, err = s.Exists(context.Background(), "A001")

	var se *types.StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "open", se.Op)
	assert.True(t, retry.IsTransient(err))
}

func TestInitIsIdempotentAndMigratesLegacyTable(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "legacy.db")

	legacy, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	_, err = legacy.Exec(`CREATE TABLE intake_records (cid TEXT PRIMARY KEY, data TEXT)`)
	require.NoError(t, err)
	_, err = legacy.Exec(`INSERT INTO intake_records (cid, data) VALUES ('OLD1', '{"a":"b"}')`)
	require.NoError(t, err)
	require.NoError(t, legacy.Close())

	s, err := New(types.Config{Driver: types.DriverSQLite, DSN: dsn})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Init(ctx))

	env, err := s.Fetch(ctx, "OLD1")
	require.NoError(t, err)
	assert.Equal(t, `{"a":"b"}`, env.Data)
	assert.True(t, env.CreatedAt.IsZero())
	assert.Nil(t, env.Phase)

	require.NoError(t, s.Update(ctx, "OLD1", `{"a":"c"}`, phase(3)))
	env, err = s.Fetch(ctx, "OLD1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), *env.Phase)
	assert.False(t, env.LastUpdated.IsZero())
}

func TestCustomTableName(t *testing.T) {
	s, err := New(types.Config{Driver: types.DriverSQLite, DataDir: t.TempDir(), Table: "SLSP_DEMO"})
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Insert(ctx, "A001", `{}`, nil))
	ok, err := s.Exists(ctx, "A001")
	require.NoError(t, err)
	assert.True(t, ok)
}
