package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T) (*SQLiteRepository, *sql.DB) {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "soul.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteRepository(db), db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestOpen_AppliesMigrations(t *testing.T) {
	_, db := setupRepo(t)
	assert.True(t, tableExists(t, db, "kv"))
	assert.True(t, tableExists(t, db, "goose_db_version"))
}

func TestMigrate_IsIdempotent(t *testing.T) {
	_, db := setupRepo(t)
	require.NoError(t, Migrate(context.Background(), db))
	require.NoError(t, Migrate(context.Background(), db))
	assert.True(t, tableExists(t, db, "kv"))
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "soul.db")

	db, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, NewSQLiteRepository(db).Set(ctx, "ss_token", []byte("tok-1")))
	require.NoError(t, db.Close())

	db, err = Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	v, err := NewSQLiteRepository(db).Get(ctx, "ss_token")
	require.NoError(t, err)
	assert.Equal(t, []byte("tok-1"), v)
}

func TestSQLiteRepository_SetGetUpsert(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "k", []byte("old")))
	require.NoError(t, r.Set(ctx, "k", []byte("new")))

	v, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), v)
}

func TestSQLiteRepository_GetMissing(t *testing.T) {
	r, _ := setupRepo(t)
	v, err := r.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestSQLiteRepository_SetManyAndDelete(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "stale", []byte("x")))
	require.NoError(t, r.SetMany(ctx, map[string][]byte{
		"a":     []byte("1"),
		"b":     []byte("2"),
		"stale": nil,
	}))

	m, err := r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, m)

	require.NoError(t, r.Delete(ctx, "a"))
	require.NoError(t, r.Delete(ctx, "a"))
	v, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, r.Clear(ctx))
	m, err = r.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestSQLiteRepository_SetManyRollsBackOnError(t *testing.T) {
	r, db := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "keep", []byte("v")))
	_, err := db.Exec(`DROP TABLE kv`)
	require.NoError(t, err)

	err = r.SetMany(ctx, map[string][]byte{"x": []byte("1")})
	require.Error(t, err)
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	r, db := setupRepo(t)
	ctx := context.Background()

	require.Panics(t, func() {
		_ = withTx(ctx, db, func(ctx context.Context, tx querier) error {
			if err := set(ctx, tx, "ghost", []byte("boo")); err != nil {
				return err
			}
			panic("boom")
		})
	})

	v, err := r.Get(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, v)
}
