package txns

import (
	"maps"
	"slices"
	"sync"

	"github.com/go-faster/errors"

	"github.com/Blackdeer1524/HeapDB/src/pkg/common"
	"github.com/Blackdeer1524/HeapDB/src/pkg/optional"
)

var ErrNotLocked = errors.New("page is not locked by the transaction")

// LockManager keeps, for every page, the transactions holding a lock on it.
//
// Invariants (checked under mu):
//   - an exclusive holder is the only holder of its page;
//   - a transaction has at most one entry per page.
//
// The per-page map keyed by transaction enforces the second one by
// construction.
type LockManager struct {
	mu sync.Mutex

	pages map[common.PageIdentity]map[common.TxnID]PageLockMode
	// reverse index for ReleaseAll
	txnPages map[common.TxnID]map[common.PageIdentity]struct{}

	// closed and replaced every time a lock is released
	released chan struct{}
}

func NewLockManager() *LockManager {
	return &LockManager{
		pages:    map[common.PageIdentity]map[common.TxnID]PageLockMode{},
		txnPages: map[common.TxnID]map[common.PageIdentity]struct{}{},
		released: make(chan struct{}),
	}
}

// Acquire makes a single, non-blocking attempt to grant txnID the lock on
// pageID. It returns false if the lock is held in an incompatible mode.
//
// A transaction asking for a mode it already holds (or a weaker one) is
// granted immediately. A shared holder asking for exclusive access is
// upgraded in place only if it is the sole holder.
func (l *LockManager) Acquire(
	txnID common.TxnID,
	pageID common.PageIdentity,
	mode PageLockMode,
) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	holders, ok := l.pages[pageID]
	if !ok {
		l.pages[pageID] = map[common.TxnID]PageLockMode{txnID: mode}
		l.rememberLocked(txnID, pageID)
		return true
	}

	if held, ok := holders[txnID]; ok {
		if mode.WeakerOrEqual(held) {
			return true
		}
		if len(holders) == 1 {
			holders[txnID] = PageLockExclusive
			return true
		}
		return false
	}

	for _, held := range holders {
		if !mode.Compatible(held) {
			return false
		}
	}

	holders[txnID] = mode
	l.rememberLocked(txnID, pageID)
	return true
}

func (l *LockManager) rememberLocked(txnID common.TxnID, pageID common.PageIdentity) {
	pages, ok := l.txnPages[txnID]
	if !ok {
		pages = map[common.PageIdentity]struct{}{}
		l.txnPages[txnID] = pages
	}
	pages[pageID] = struct{}{}
}

// Release drops txnID's lock on pageID.
func (l *LockManager) Release(pageID common.PageIdentity, txnID common.TxnID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.release(pageID, txnID) {
		return errors.Wrapf(ErrNotLocked, "txn %d, page %v", txnID, pageID)
	}
	l.notifyReleased()
	return nil
}

func (l *LockManager) release(pageID common.PageIdentity, txnID common.TxnID) bool {
	holders, ok := l.pages[pageID]
	if !ok {
		return false
	}
	if _, ok := holders[txnID]; !ok {
		return false
	}

	delete(holders, txnID)
	if len(holders) == 0 {
		delete(l.pages, pageID)
	}

	if pages, ok := l.txnPages[txnID]; ok {
		delete(pages, pageID)
		if len(pages) == 0 {
			delete(l.txnPages, txnID)
		}
	}
	return true
}

// ReleaseAll drops every lock held by txnID and returns the pages that were
// unlocked.
func (l *LockManager) ReleaseAll(txnID common.TxnID) []common.PageIdentity {
	l.mu.Lock()
	defer l.mu.Unlock()

	pages := slices.Collect(maps.Keys(l.txnPages[txnID]))
	for _, pageID := range pages {
		l.release(pageID, txnID)
	}
	if len(pages) > 0 {
		l.notifyReleased()
	}
	return pages
}

func (l *LockManager) notifyReleased() {
	close(l.released)
	l.released = make(chan struct{})
}

// Released returns a channel that is closed the next time any lock is
// released. Waiters must fetch it before their Acquire attempt, otherwise a
// release between the attempt and the wait is missed.
func (l *LockManager) Released() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.released
}

func (l *LockManager) Holds(pageID common.PageIdentity, txnID common.TxnID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.pages[pageID][txnID]
	return ok
}

// Mode returns the mode in which txnID holds pageID, if it does.
func (l *LockManager) Mode(
	pageID common.PageIdentity,
	txnID common.TxnID,
) optional.Optional[PageLockMode] {
	l.mu.Lock()
	defer l.mu.Unlock()

	mode, ok := l.pages[pageID][txnID]
	if !ok {
		return optional.None[PageLockMode]()
	}
	return optional.Some(mode)
}

// Holders returns a snapshot of the lock entries of pageID.
func (l *LockManager) Holders(pageID common.PageIdentity) map[common.TxnID]PageLockMode {
	l.mu.Lock()
	defer l.mu.Unlock()

	return maps.Clone(l.pages[pageID])
}

func (l *LockManager) LockedPages(txnID common.TxnID) []common.PageIdentity {
	l.mu.Lock()
	defer l.mu.Unlock()

	return slices.Collect(maps.Keys(l.txnPages[txnID]))
}
