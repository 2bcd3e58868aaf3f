package database

import (
	"context"
	"iter"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/spf13/afero"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/Blackdeer1524/HeapDB/src"
	"github.com/Blackdeer1524/HeapDB/src/bufferpool"
	"github.com/Blackdeer1524/HeapDB/src/cfg"
	"github.com/Blackdeer1524/HeapDB/src/pkg/common"
	"github.com/Blackdeer1524/HeapDB/src/recovery"
	"github.com/Blackdeer1524/HeapDB/src/storage"
	"github.com/Blackdeer1524/HeapDB/src/storage/catalog"
	"github.com/Blackdeer1524/HeapDB/src/storage/heap"
	"github.com/Blackdeer1524/HeapDB/src/storage/tuple"
	"github.com/Blackdeer1524/HeapDB/src/txns"
)

// Database wires one catalog, one redo log and one buffer pool together.
type Database struct {
	cfg cfg.Config
	fs  afero.Fs
	log src.Logger

	txnIDs  txns.IDGenerator
	catalog *catalog.Catalog
	locker  *txns.LockManager
	logFile *recovery.LogFile
	pool    *bufferpool.Manager

	meters  *sdkmetric.MeterProvider
	metrics *sdkmetric.ManualReader
}

func Open(c cfg.Config, fs afero.Fs, log src.Logger) (*Database, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if err := fs.MkdirAll(c.DataDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create data dir %s", c.DataDir)
	}

	logFile, err := recovery.Open(fs, c.LogFilePath())
	if err != nil {
		return nil, err
	}

	db := &Database{
		cfg:     c,
		fs:      fs,
		log:     log,
		catalog: catalog.New(),
		locker:  txns.NewLockManager(),
		logFile: logFile,
		metrics: sdkmetric.NewManualReader(),
	}
	db.meters = sdkmetric.NewMeterProvider(sdkmetric.WithReader(db.metrics))
	db.pool = bufferpool.New(
		bufferpool.Config{
			Capacity:       c.BufferPoolPages,
			LockTimeoutMin: c.LockTimeoutMin,
			LockTimeoutMax: c.LockTimeoutMax,
			MeterProvider:  db.meters,
		},
		db.catalog,
		logFile,
		db.locker,
		log,
	)

	log.Infow(
		"database opened",
		"data_dir", c.DataDir,
		"pool_pages", c.BufferPoolPages,
		"log", c.LogFilePath(),
	)
	return db, nil
}

func (db *Database) Catalog() *catalog.Catalog {
	return db.catalog
}

func (db *Database) BufferPool() *bufferpool.Manager {
	return db.pool
}

func (db *Database) LogFile() *recovery.LogFile {
	return db.logFile
}

func (db *Database) Fs() afero.Fs {
	return db.fs
}

// PoolStats reports the buffer pool counters accumulated since Open.
func (db *Database) PoolStats(ctx context.Context) (bufferpool.Stats, error) {
	return bufferpool.ReadStats(ctx, db.metrics)
}

func (db *Database) Begin() common.TxnID {
	return db.txnIDs.Next()
}

func (db *Database) Commit(txnID common.TxnID) error {
	return db.pool.TransactionComplete(txnID, true)
}

func (db *Database) Abort(txnID common.TxnID) error {
	return db.pool.TransactionComplete(txnID, false)
}

func (db *Database) openHeapFile(path string, desc *tuple.Desc) (storage.DbFile, error) {
	return heap.New(db.fs, path, desc, db.pool)
}

// CreateTable registers a table backed by <data dir>/<name>.dat, creating
// the file if it does not exist.
func (db *Database) CreateTable(name string, desc *tuple.Desc, primaryKey string) (*heap.File, error) {
	f, err := heap.New(db.fs, filepath.Join(db.cfg.DataDir, name+".dat"), desc, db.pool)
	if err != nil {
		return nil, err
	}

	db.catalog.AddTable(f, name, primaryKey)
	return f, nil
}

func (db *Database) LoadSchema(path string) ([]catalog.TableSchema, error) {
	tables, err := db.catalog.LoadSchema(db.fs, path, db.openHeapFile)
	if err != nil {
		return nil, err
	}

	db.log.Debugw("schema loaded", "path", path, "tables", len(tables))
	return tables, nil
}

func (db *Database) Table(name string) (*heap.File, error) {
	id, err := db.catalog.GetTableID(name)
	if err != nil {
		return nil, err
	}

	file, err := db.catalog.GetDatabaseFile(id)
	if err != nil {
		return nil, err
	}

	hf, ok := file.(*heap.File)
	if !ok {
		return nil, errors.Errorf("table %s is backed by %T", name, file)
	}
	return hf, nil
}

// Insert parses values against the table schema and inserts the row.
func (db *Database) Insert(txnID common.TxnID, table string, values []string) (*tuple.Tuple, error) {
	f, err := db.Table(table)
	if err != nil {
		return nil, err
	}

	t, err := tuple.Parse(f.TupleDesc(), values)
	if err != nil {
		return nil, err
	}

	if err := db.pool.InsertTuple(txnID, f.ID(), t); err != nil {
		return nil, err
	}
	return t, nil
}

func (db *Database) Scan(txnID common.TxnID, table string) iter.Seq2[*tuple.Tuple, error] {
	f, err := db.Table(table)
	if err != nil {
		return func(yield func(*tuple.Tuple, error) bool) {
			yield(nil, err)
		}
	}
	return storage.Tuples(f.Iterator(txnID))
}

// Close closes the redo log and stops the pool metrics. Pages of unfinished
// transactions are dropped.
func (db *Database) Close() error {
	if err := db.logFile.Close(); err != nil {
		_ = db.meters.Shutdown(context.Background())
		return err
	}
	return db.meters.Shutdown(context.Background())
}
