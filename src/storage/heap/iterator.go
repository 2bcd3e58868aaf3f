package heap

import (
	"github.com/Blackdeer1524/HeapDB/src/pkg/common"
	"github.com/Blackdeer1524/HeapDB/src/storage"
	"github.com/Blackdeer1524/HeapDB/src/storage/tuple"
)

// fileIterator yields tuples page by page. Every page is fetched read-only
// through the buffer pool when the cursor reaches it.
type fileIterator struct {
	file  *File
	txnID common.TxnID

	opened   bool
	nextPage int
	tuples   []*tuple.Tuple
	pos      int
}

var _ storage.DbFileIterator = &fileIterator{}

func (it *fileIterator) Open() error {
	it.opened = true
	it.nextPage = 0
	it.tuples = nil
	it.pos = 0
	return nil
}

func (it *fileIterator) HasNext() (bool, error) {
	if !it.opened {
		return false, nil
	}

	for it.pos >= len(it.tuples) {
		numPages, err := it.file.NumPages()
		if err != nil {
			return false, err
		}
		if it.nextPage >= numPages {
			return false, nil
		}

		hp, err := it.file.heapPage(
			it.txnID,
			it.file.pageIdentity(it.nextPage),
			storage.PermReadOnly,
		)
		if err != nil {
			return false, err
		}

		tuples, err := hp.Tuples()
		if err != nil {
			return false, err
		}

		it.nextPage++
		it.tuples = tuples
		it.pos = 0
	}
	return true, nil
}

func (it *fileIterator) Next() (*tuple.Tuple, error) {
	ok, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, storage.ErrNoSuchElement
	}

	t := it.tuples[it.pos]
	it.pos++
	return t, nil
}

func (it *fileIterator) Rewind() error {
	it.Close()
	return it.Open()
}

func (it *fileIterator) Close() {
	it.opened = false
	it.tuples = nil
	it.pos = 0
	it.nextPage = 0
}
