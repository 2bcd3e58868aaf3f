package database

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/HeapDB/src/bufferpool"
	"github.com/Blackdeer1524/HeapDB/src/cfg"
	"github.com/Blackdeer1524/HeapDB/src/storage"
	"github.com/Blackdeer1524/HeapDB/src/storage/catalog"
	"github.com/Blackdeer1524/HeapDB/src/storage/tuple"
)

func testConfig() cfg.Config {
	c := cfg.Default()
	c.DataDir = "/db"
	c.LockTimeoutMin = 50 * time.Millisecond
	c.LockTimeoutMax = 100 * time.Millisecond
	return c
}

func openDB(t *testing.T, fs afero.Fs) *Database {
	t.Helper()

	db, err := Open(testConfig(), fs, zap.NewNop().Sugar())
	require.NoError(t, err)
	return db
}

func usersDesc(t *testing.T) *tuple.Desc {
	desc, err := tuple.NewDesc(
		[]tuple.Type{tuple.IntType, tuple.StringType},
		[]string{"id", "name"},
	)
	require.NoError(t, err)
	return desc
}

func collect(t *testing.T, db *Database, table string) []string {
	t.Helper()

	var rows []string
	for tup, err := range db.Scan(db.Begin(), table) {
		require.NoError(t, err)
		rows = append(rows, tup.String())
	}
	return rows
}

func TestOpenRejectsBadConfig(t *testing.T) {
	c := testConfig()
	c.BufferPoolPages = 0

	_, err := Open(c, afero.NewMemMapFs(), zap.NewNop().Sugar())
	require.Error(t, err)
}

func TestCommitIsVisibleAfterReopen(t *testing.T) {
	fs := afero.NewMemMapFs()
	db := openDB(t, fs)

	_, err := db.CreateTable("users", usersDesc(t), "id")
	require.NoError(t, err)

	txn := db.Begin()
	_, err = db.Insert(txn, "users", []string{"1", "alice"})
	require.NoError(t, err)
	_, err = db.Insert(txn, "users", []string{"2", "bob"})
	require.NoError(t, err)
	require.NoError(t, db.Commit(txn))
	require.NoError(t, db.Close())

	db = openDB(t, fs)
	defer db.Close()
	_, err = db.CreateTable("users", usersDesc(t), "id")
	require.NoError(t, err)

	assert.Equal(t, []string{"1\talice", "2\tbob"}, collect(t, db, "users"))

	n := 0
	for _, err := range db.LogFile().Records() {
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 1, n)
}

func TestAbortIsInvisible(t *testing.T) {
	db := openDB(t, afero.NewMemMapFs())
	defer db.Close()

	_, err := db.CreateTable("users", usersDesc(t), "id")
	require.NoError(t, err)

	txn := db.Begin()
	_, err = db.Insert(txn, "users", []string{"1", "alice"})
	require.NoError(t, err)
	require.NoError(t, db.Abort(txn))

	assert.Empty(t, collect(t, db, "users"))
}

func TestConflictingWriterAborts(t *testing.T) {
	db := openDB(t, afero.NewMemMapFs())
	defer db.Close()

	_, err := db.CreateTable("users", usersDesc(t), "id")
	require.NoError(t, err)

	first := db.Begin()
	_, err = db.Insert(first, "users", []string{"1", "alice"})
	require.NoError(t, err)

	second := db.Begin()
	_, err = db.Insert(second, "users", []string{"2", "bob"})
	require.ErrorIs(t, err, bufferpool.ErrTransactionAborted)
	require.NoError(t, db.Abort(second))

	require.NoError(t, db.Commit(first))
	assert.Equal(t, []string{"1\talice"}, collect(t, db, "users"))
}

func TestLoadSchema(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(
		fs,
		"/schema/catalog.txt",
		[]byte("users (id int pk, name string)\n"),
		0o644,
	))

	db := openDB(t, fs)
	defer db.Close()

	tables, err := db.LoadSchema("/schema/catalog.txt")
	require.NoError(t, err)
	require.Len(t, tables, 1)

	f, err := db.Table("users")
	require.NoError(t, err)
	assert.Equal(t, "/schema/users.dat", f.Path())

	_, err = db.Table("orders")
	require.ErrorIs(t, err, catalog.ErrTableNotFound)

	for _, err := range db.Scan(db.Begin(), "orders") {
		require.True(t, errors.Is(err, catalog.ErrTableNotFound))
	}
}

func TestInsertValidatesValues(t *testing.T) {
	db := openDB(t, afero.NewMemMapFs())
	defer db.Close()

	_, err := db.CreateTable("users", usersDesc(t), "id")
	require.NoError(t, err)

	_, err = db.Insert(db.Begin(), "users", []string{"1"})
	require.ErrorIs(t, err, tuple.ErrFieldMismatch)

	_, err = db.Insert(db.Begin(), "users", []string{"x", "alice"})
	require.Error(t, err)
}

func TestScanRespectsIteratorProtocol(t *testing.T) {
	db := openDB(t, afero.NewMemMapFs())
	defer db.Close()

	f, err := db.CreateTable("users", usersDesc(t), "id")
	require.NoError(t, err)

	it := f.Iterator(db.Begin())
	_, err = it.Next()
	require.ErrorIs(t, err, storage.ErrNoSuchElement)
}

func TestPoolStatsCountPageLoads(t *testing.T) {
	db := openDB(t, afero.NewMemMapFs())
	defer db.Close()

	_, err := db.CreateTable("users", usersDesc(t), "id")
	require.NoError(t, err)

	txnID := db.Begin()
	_, err = db.Insert(txnID, "users", []string{"1", "ann"})
	require.NoError(t, err)
	require.NoError(t, db.Commit(txnID))

	assert.Len(t, collect(t, db, "users"), 1)

	stats, err := db.PoolStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Flushes)
	assert.Zero(t, stats.Aborts)
}
