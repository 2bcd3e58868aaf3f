package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/panjf2000/ants"
	"github.com/spf13/afero"

	"github.com/Blackdeer1524/HeapDB/src"
	"github.com/Blackdeer1524/HeapDB/src/bufferpool"
	"github.com/Blackdeer1524/HeapDB/src/cfg"
	"github.com/Blackdeer1524/HeapDB/src/database"
	"github.com/Blackdeer1524/HeapDB/src/pkg/common"
)

// StressEntrypoint runs Txns concurrent single-row inserting transactions on
// a pool of Workers goroutines. A transaction that loses a lock wait is
// aborted and retried with a fresh id.
type StressEntrypoint struct {
	Config     cfg.Config
	Fs         afero.Fs
	SchemaPath string
	Table      string
	Txns       int
	Workers    int
	MaxRetries int
	Out        io.Writer

	Log src.Logger
	db  *database.Database

	closeOnce sync.Once
	closeErr  error
}

type StressReport struct {
	Committed int64
	Aborted   int64
	Failed    int64
	Elapsed   time.Duration
}

func (r StressReport) String() string {
	return fmt.Sprintf(
		"committed=%d aborted=%d failed=%d elapsed=%v",
		r.Committed,
		r.Aborted,
		r.Failed,
		r.Elapsed,
	)
}

func (e *StressEntrypoint) Init(_ context.Context) error {
	if e.Txns <= 0 || e.Workers <= 0 {
		return errors.Errorf("txns and workers must be positive, got %d and %d", e.Txns, e.Workers)
	}
	if e.MaxRetries <= 0 {
		e.MaxRetries = 10
	}
	if e.Log == nil {
		e.Log = src.MustNewLogger(e.Config.Environment)
	}

	db, err := database.Open(e.Config, e.Fs, e.Log)
	if err != nil {
		return err
	}
	e.db = db

	if e.SchemaPath != "" {
		if _, err := db.LoadSchema(e.SchemaPath); err != nil {
			return err
		}
	}

	if _, err := db.Table(e.Table); err != nil {
		return err
	}
	return nil
}

func (e *StressEntrypoint) Run(ctx context.Context) error {
	report, err := e.run(ctx)
	if err != nil {
		return err
	}

	if e.Out != nil {
		_, _ = fmt.Fprintln(e.Out, report)
	}
	if report.Failed > 0 {
		return errors.Errorf("%d transactions failed", report.Failed)
	}
	return nil
}

func (e *StressEntrypoint) run(ctx context.Context) (StressReport, error) {
	pool, err := ants.NewPool(e.Workers)
	if err != nil {
		return StressReport{}, errors.Wrap(err, "create worker pool")
	}
	defer pool.Release()

	f, err := e.db.Table(e.Table)
	if err != nil {
		return StressReport{}, err
	}
	numFields := f.TupleDesc().NumFields()

	var (
		committed atomic.Int64
		aborted   atomic.Int64
		failed    atomic.Int64
		wg        sync.WaitGroup
	)

	start := time.Now()
	for i := range e.Txns {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()

			values := make([]string, numFields)
			for j := range values {
				values[j] = fmt.Sprint(i)
			}

			for range e.MaxRetries {
				txnID := e.db.Begin()
				err := e.insertOne(txnID, values)
				if err == nil {
					committed.Add(1)
					return
				}
				if !errors.Is(err, bufferpool.ErrTransactionAborted) {
					e.Log.Errorw("stress transaction failed", "txn", txnID, "err", err)
					failed.Add(1)
					return
				}
				aborted.Add(1)
			}
			failed.Add(1)
		})
		if err != nil {
			wg.Done()
			return StressReport{}, errors.Wrap(err, "submit transaction")
		}
	}
	wg.Wait()

	return StressReport{
		Committed: committed.Load(),
		Aborted:   aborted.Load(),
		Failed:    failed.Load(),
		Elapsed:   time.Since(start),
	}, nil
}

func (e *StressEntrypoint) insertOne(txnID common.TxnID, values []string) error {
	if _, err := e.db.Insert(txnID, e.Table, values); err != nil {
		if abortErr := e.db.Abort(txnID); abortErr != nil {
			return errors.Wrapf(abortErr, "abort after %v", err)
		}
		return err
	}
	return e.db.Commit(txnID)
}

func (e *StressEntrypoint) Close() error {
	e.closeOnce.Do(func() {
		if e.db != nil {
			e.closeErr = e.db.Close()
		}
		if e.Log != nil {
			_ = e.Log.Sync()
		}
	})
	return e.closeErr
}
