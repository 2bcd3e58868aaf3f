package bufferpool

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/HeapDB/src/pkg/assert"
	"github.com/Blackdeer1524/HeapDB/src/pkg/common"
	"github.com/Blackdeer1524/HeapDB/src/storage"
	"github.com/Blackdeer1524/HeapDB/src/storage/tuple"
	"github.com/Blackdeer1524/HeapDB/src/txns"
)

var (
	// ErrTransactionAborted means the transaction lost a lock wait and must
	// be completed with commit=false, then retried.
	ErrTransactionAborted = errors.New("transaction aborted")
	ErrNoCleanPage        = errors.New("all cached pages are dirty")
)

// LogFile receives a page update record before every page write. Records
// are durable once Force returns.
type LogFile interface {
	LogWrite(txnID common.TxnID, before, after storage.Page) error
	Force() error
}

// Manager caches up to Capacity pages and enforces page-level strict
// two-phase locking for the transactions that read them.
//
// Dirty pages are never evicted (no steal) and are written back only when
// their transaction commits or on an explicit flush (no force before
// commit).
type Manager struct {
	cfg     Config
	catalog storage.Catalog
	logFile LogFile
	locker  *txns.LockManager
	log     *zap.SugaredLogger
	metrics poolMetrics

	mu       sync.Mutex
	pages    map[common.PageIdentity]storage.Page
	replacer Replacer
}

var _ storage.PageGetter = &Manager{}

func New(
	cfg Config,
	catalog storage.Catalog,
	logFile LogFile,
	locker *txns.LockManager,
	log *zap.SugaredLogger,
) *Manager {
	assert.Assert(cfg.Capacity > 0, "pool capacity must be positive, got %d", cfg.Capacity)
	assert.Assert(
		cfg.LockTimeoutMin > 0 && cfg.LockTimeoutMin <= cfg.LockTimeoutMax,
		"invalid lock timeout range [%v, %v)",
		cfg.LockTimeoutMin,
		cfg.LockTimeoutMax,
	)

	return &Manager{
		cfg:      cfg,
		catalog:  catalog,
		logFile:  logFile,
		locker:   locker,
		log:      log,
		metrics:  newPoolMetrics(cfg.MeterProvider),
		pages:    make(map[common.PageIdentity]storage.Page, cfg.Capacity),
		replacer: NewAgeReplacer(),
	}
}

func (m *Manager) Capacity() int {
	return m.cfg.Capacity
}

func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.pages)
}

func (m *Manager) IsCached(pageID common.PageIdentity) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.pages[pageID]
	return ok
}

func (m *Manager) lockWaitBudget() time.Duration {
	spread := m.cfg.LockTimeoutMax - m.cfg.LockTimeoutMin
	if spread <= 0 {
		return m.cfg.LockTimeoutMin
	}
	return m.cfg.LockTimeoutMin + rand.N(spread)
}

// acquire retries the lock until it is granted or the wait budget of this
// call runs out. Between attempts it sleeps until some lock is released.
func (m *Manager) acquire(
	txnID common.TxnID,
	pageID common.PageIdentity,
	mode txns.PageLockMode,
) error {
	budget := m.lockWaitBudget()
	timer := time.NewTimer(budget)
	defer timer.Stop()

	for {
		released := m.locker.Released()
		if m.locker.Acquire(txnID, pageID, mode) {
			return nil
		}

		select {
		case <-released:
		case <-timer.C:
			m.metrics.aborts.Add(context.Background(), 1)
			m.log.Warnw(
				"lock wait timed out",
				"txn", txnID,
				"page", pageID,
				"mode", mode,
				"budget", budget,
			)
			return errors.Wrapf(
				ErrTransactionAborted,
				"txn %d waited %v for %s lock on page %v",
				txnID,
				budget,
				mode,
				pageID,
			)
		}
	}
}

func lockModeFor(perm storage.Permission) txns.PageLockMode {
	if perm == storage.PermReadWrite {
		return txns.PageLockExclusive
	}
	return txns.PageLockShared
}

// GetPage locks pageID for txnID in the mode implied by perm and returns the
// cached page, loading it from its file on a miss. It blocks while the lock
// is held in a conflicting mode; if that lasts longer than a randomized
// budget the error wraps ErrTransactionAborted.
func (m *Manager) GetPage(
	txnID common.TxnID,
	pageID common.PageIdentity,
	perm storage.Permission,
) (storage.Page, error) {
	if err := m.acquire(txnID, pageID, lockModeFor(perm)); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.pages[pageID]; ok {
		m.metrics.hits.Add(context.Background(), 1)
		return p, nil
	}
	m.metrics.misses.Add(context.Background(), 1)

	// pick the victim before touching the disk so that a failed read leaves
	// the pool as it was
	victim, mustEvict, err := m.victimIfFull()
	if err != nil {
		return nil, err
	}

	file, err := m.catalog.GetDatabaseFile(pageID.FileID)
	if err != nil {
		return nil, errors.Wrapf(err, "load page %v", pageID)
	}
	p, err := file.ReadPage(pageID)
	if err != nil {
		return nil, errors.Wrapf(err, "load page %v", pageID)
	}

	if mustEvict {
		if err := m.evict(victim); err != nil {
			return nil, err
		}
	}

	m.pages[pageID] = p
	m.replacer.Track(pageID)
	return p, nil
}

func (m *Manager) isClean(pageID common.PageIdentity) bool {
	p, ok := m.pages[pageID]
	return ok && p.DirtiedBy().IsNone()
}

func (m *Manager) victimIfFull() (common.PageIdentity, bool, error) {
	if len(m.pages) < m.cfg.Capacity {
		return common.PageIdentity{}, false, nil
	}

	victim, ok := m.replacer.ChooseVictim(m.isClean)
	if !ok {
		return common.PageIdentity{}, false, errors.Wrapf(
			ErrNoCleanPage,
			"capacity %d",
			m.cfg.Capacity,
		)
	}
	return victim, true, nil
}

// evict drops a clean page. The flush is a no-op for clean pages but keeps
// the write-back path in one place.
func (m *Manager) evict(pageID common.PageIdentity) error {
	if err := m.flushPage(pageID); err != nil {
		return err
	}

	m.discard(pageID)
	m.metrics.evictions.Add(context.Background(), 1)
	m.log.Debugw("evicted page", "page", pageID)
	return nil
}

func (m *Manager) evictPage() error {
	victim, mustEvict, err := m.victimIfFull()
	if err != nil || !mustEvict {
		return err
	}
	return m.evict(victim)
}

func (m *Manager) discard(pageID common.PageIdentity) {
	delete(m.pages, pageID)
	m.replacer.Forget(pageID)
}

// DiscardPage drops pageID from the pool without writing it back.
func (m *Manager) DiscardPage(pageID common.PageIdentity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.discard(pageID)
}

// InsertTuple adds t to the table stored in fileID on behalf of txnID.
// Every page the file touched is marked dirty by txnID and kept in the pool.
func (m *Manager) InsertTuple(txnID common.TxnID, fileID common.FileID, t *tuple.Tuple) error {
	file, err := m.catalog.GetDatabaseFile(fileID)
	if err != nil {
		return err
	}

	pages, err := file.InsertTuple(txnID, t)
	if err != nil {
		return err
	}
	if err := m.installDirtyPages(txnID, pages); err != nil {
		t.ClearRecordID()
		return err
	}
	return nil
}

// DeleteTuple removes t, located by its record id, on behalf of txnID.
func (m *Manager) DeleteTuple(txnID common.TxnID, t *tuple.Tuple) error {
	rid := t.RecordID()
	if rid.IsNone() {
		return storage.ErrNoRecordID
	}

	file, err := m.catalog.GetDatabaseFile(rid.Unwrap().FileID)
	if err != nil {
		return err
	}

	pages, err := file.DeleteTuple(txnID, t)
	if err != nil {
		return err
	}
	if err := m.installDirtyPages(txnID, pages); err != nil {
		t.SetRecordID(rid.Unwrap())
		return err
	}
	return nil
}

// installDirtyPages caches pages modified by txnID. A page is marked dirty
// only after it has a place in the pool.
func (m *Manager) installDirtyPages(txnID common.TxnID, pages []storage.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range pages {
		if _, ok := m.pages[p.ID()]; !ok {
			if err := m.evictPage(); err != nil {
				return err
			}
		}

		p.MarkDirty(true, txnID)
		m.pages[p.ID()] = p
		m.replacer.Track(p.ID())
	}
	return nil
}

// flushPage writes a dirty page back: the update record is forced to the
// log before the page reaches its file. Clean and uncached pages are
// skipped.
func (m *Manager) flushPage(pageID common.PageIdentity) error {
	p, ok := m.pages[pageID]
	if !ok {
		return nil
	}

	owner := p.DirtiedBy()
	if owner.IsNone() {
		return nil
	}

	file, err := m.catalog.GetDatabaseFile(pageID.FileID)
	if err != nil {
		return errors.Wrapf(err, "flush page %v", pageID)
	}

	if err := m.logFile.LogWrite(owner.Unwrap(), p.BeforeImage(), p); err != nil {
		return errors.Wrapf(err, "log page %v", pageID)
	}
	if err := m.logFile.Force(); err != nil {
		return errors.Wrapf(err, "force log for page %v", pageID)
	}
	if err := file.WritePage(p); err != nil {
		return errors.Wrapf(err, "write page %v", pageID)
	}

	p.MarkDirty(false, common.NilTxnID)
	p.SetBeforeImage()

	m.metrics.flushes.Add(context.Background(), 1)
	m.log.Debugw("flushed page", "page", pageID, "txn", owner.Unwrap())
	return nil
}

func (m *Manager) flushWhere(keep func(storage.Page) bool) error {
	for _, pageID := range m.replacer.Ordered() {
		if !keep(m.pages[pageID]) {
			continue
		}
		if err := m.flushPage(pageID); err != nil {
			return err
		}
	}
	return nil
}

func dirtiedBy(txnID common.TxnID) func(storage.Page) bool {
	return func(p storage.Page) bool {
		owner := p.DirtiedBy()
		return owner.IsSome() && owner.Unwrap() == txnID
	}
}

// FlushAllPages writes every dirty page back, oldest first. It breaks the
// no-force discipline and is meant for shutdown and tests.
func (m *Manager) FlushAllPages() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.flushWhere(func(storage.Page) bool { return true })
}

// FlushPages writes back every page dirtied by txnID, oldest first.
func (m *Manager) FlushPages(txnID common.TxnID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.flushWhere(dirtiedBy(txnID))
}

// restorePages replaces every page dirtied by txnID with its on-disk
// version. A page that cannot be reread is dropped from the pool.
func (m *Manager) restorePages(txnID common.TxnID) error {
	var firstErr error

	isOwned := dirtiedBy(txnID)
	for _, pageID := range m.replacer.Ordered() {
		if !isOwned(m.pages[pageID]) {
			continue
		}

		fresh, err := m.reread(pageID)
		if err != nil {
			m.discard(pageID)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		m.pages[pageID] = fresh
		m.log.Debugw("restored page", "page", pageID, "txn", txnID)
	}
	return firstErr
}

func (m *Manager) reread(pageID common.PageIdentity) (storage.Page, error) {
	file, err := m.catalog.GetDatabaseFile(pageID.FileID)
	if err != nil {
		return nil, errors.Wrapf(err, "restore page %v", pageID)
	}

	p, err := file.ReadPage(pageID)
	if err != nil {
		return nil, errors.Wrapf(err, "restore page %v", pageID)
	}
	return p, nil
}

// TransactionComplete ends txnID. On commit its dirty pages are flushed; on
// abort they are replaced with their on-disk versions. Either way every lock
// held by txnID is released afterwards.
//
// If a commit flush fails, the pages not yet written are restored as on
// abort and the flush error is returned.
func (m *Manager) TransactionComplete(txnID common.TxnID, commit bool) error {
	m.mu.Lock()
	var err error
	if commit {
		if err = m.flushWhere(dirtiedBy(txnID)); err != nil {
			m.log.Errorw("commit flush failed, rolling back cached pages", "txn", txnID, "err", err)
			if restoreErr := m.restorePages(txnID); restoreErr != nil {
				m.log.Errorw("rollback after failed commit", "txn", txnID, "err", restoreErr)
			}
		}
	} else {
		err = m.restorePages(txnID)
	}
	m.mu.Unlock()

	released := m.locker.ReleaseAll(txnID)
	m.log.Debugw(
		"transaction complete",
		"txn", txnID,
		"commit", commit,
		"released_locks", len(released),
	)
	return err
}

func (m *Manager) TransactionCommit(txnID common.TxnID) error {
	return m.TransactionComplete(txnID, true)
}

// UnsafeReleasePage drops txnID's lock on pageID before the transaction
// ends, which breaks two-phase locking.
func (m *Manager) UnsafeReleasePage(txnID common.TxnID, pageID common.PageIdentity) error {
	return m.locker.Release(pageID, txnID)
}

func (m *Manager) HoldsLock(txnID common.TxnID, pageID common.PageIdentity) bool {
	return m.locker.Holds(pageID, txnID)
}
