package storage

import (
	"iter"

	"github.com/go-faster/errors"

	"github.com/Blackdeer1524/HeapDB/src/pkg/common"
	"github.com/Blackdeer1524/HeapDB/src/pkg/optional"
	"github.com/Blackdeer1524/HeapDB/src/storage/tuple"
)

var (
	ErrNoSuchElement = errors.New("no such element")
	ErrNoRecordID    = errors.New("tuple has no record id")
)

// Permission is the access a caller asks for when fetching a page. It maps
// onto a shared (read) or exclusive (write) page lock.
type Permission uint8

const (
	PermReadOnly Permission = iota
	PermReadWrite
)

func (p Permission) String() string {
	if p == PermReadWrite {
		return "READ_WRITE"
	}
	return "READ_ONLY"
}

// Page is a fixed-size block cached by the buffer pool.
type Page interface {
	ID() common.PageIdentity
	// Data returns a copy of the page bytes, exactly common.PageSize() long.
	Data() []byte

	// DirtiedBy reports the transaction that modified the page since it was
	// last clean.
	DirtiedBy() optional.Optional[common.TxnID]
	MarkDirty(dirty bool, txnID common.TxnID)

	// BeforeImage returns the page as it was when it was last clean.
	BeforeImage() Page
	// SetBeforeImage makes the current content the new before-image.
	SetBeforeImage()
}

// DbFile is a page-organized backing store for one table.
type DbFile interface {
	ID() common.FileID
	TupleDesc() *tuple.Desc

	ReadPage(pageID common.PageIdentity) (Page, error)
	WritePage(p Page) error
	NumPages() (int, error)

	// InsertTuple and DeleteTuple return the pages they modified. The caller
	// (the buffer pool) is responsible for marking them dirty.
	InsertTuple(txnID common.TxnID, t *tuple.Tuple) ([]Page, error)
	DeleteTuple(txnID common.TxnID, t *tuple.Tuple) ([]Page, error)

	Iterator(txnID common.TxnID) DbFileIterator
}

// DbFileIterator walks the tuples of a file. It must be opened before use;
// Close discards the cursor and Rewind is Close followed by Open.
type DbFileIterator interface {
	Open() error
	HasNext() (bool, error)
	Next() (*tuple.Tuple, error)
	Rewind() error
	Close()
}

// PageGetter is the part of the buffer pool a DbFile needs to fetch its own
// pages under the locking discipline.
type PageGetter interface {
	GetPage(txnID common.TxnID, pageID common.PageIdentity, perm Permission) (Page, error)
}

type Catalog interface {
	GetDatabaseFile(fileID common.FileID) (DbFile, error)
	GetTupleDesc(fileID common.FileID) (*tuple.Desc, error)
}

// Tuples adapts an iterator to a range-over-func sequence. The iterator is
// opened on the first step and closed when the sequence ends.
func Tuples(it DbFileIterator) iter.Seq2[*tuple.Tuple, error] {
	return func(yield func(*tuple.Tuple, error) bool) {
		if err := it.Open(); err != nil {
			yield(nil, err)
			return
		}
		defer it.Close()

		for {
			ok, err := it.HasNext()
			if err != nil {
				yield(nil, err)
				return
			}
			if !ok {
				return
			}

			t, err := it.Next()
			if !yield(t, err) || err != nil {
				return
			}
		}
	}
}
