package heap

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/go-faster/errors"
	"github.com/spf13/afero"

	"github.com/Blackdeer1524/HeapDB/src/pkg/common"
	"github.com/Blackdeer1524/HeapDB/src/storage"
	"github.com/Blackdeer1524/HeapDB/src/storage/page"
	"github.com/Blackdeer1524/HeapDB/src/storage/tuple"
)

var (
	ErrPageOutOfRange = errors.New("page is out of file range")
	ErrSchemaMismatch = errors.New("tuple schema does not match table schema")
	ErrTupleNotInFile = errors.New("tuple does not belong to this file")
	ErrNotHeapPage    = errors.New("page is not a heap page")
)

// File stores the tuples of one table as a sequence of heap pages. Page i
// occupies bytes [i*pageSize, (i+1)*pageSize).
//
// Page access for tuple operations goes through the buffer pool, so the
// caller's transaction locks every page it touches.
type File struct {
	fs   afero.Fs
	path string
	id   common.FileID
	desc *tuple.Desc
	pool storage.PageGetter

	// serializes appends of new pages
	appendMu sync.Mutex
}

var _ storage.DbFile = &File{}

// FileIDFromPath derives a stable file id from the absolute path.
func FileIDFromPath(path string) common.FileID {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	return common.FileID(xxhash.Sum64String(abs))
}

// New opens the heap file at path, creating an empty one if it is missing.
func New(
	fs afero.Fs,
	path string,
	desc *tuple.Desc,
	pool storage.PageGetter,
) (*File, error) {
	path = filepath.Clean(path)

	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "create directory for %s", path)
	}

	f, err := fs.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open heap file %s", path)
	}
	if err := f.Close(); err != nil {
		return nil, errors.Wrapf(err, "close heap file %s", path)
	}

	return &File{
		fs:   fs,
		path: path,
		id:   FileIDFromPath(path),
		desc: desc,
		pool: pool,
	}, nil
}

func (f *File) ID() common.FileID {
	return f.id
}

func (f *File) TupleDesc() *tuple.Desc {
	return f.desc
}

func (f *File) Path() string {
	return f.path
}

func (f *File) size() (int64, error) {
	info, err := f.fs.Stat(f.path)
	if err != nil {
		return 0, errors.Wrapf(err, "stat %s", f.path)
	}
	return info.Size(), nil
}

func (f *File) NumPages() (int, error) {
	size, err := f.size()
	if err != nil {
		return 0, err
	}
	return int(size / int64(common.PageSize())), nil
}

// ReadPage reads the page straight from disk, bypassing the buffer pool.
func (f *File) ReadPage(pageID common.PageIdentity) (storage.Page, error) {
	if pageID.FileID != f.id {
		return nil, errors.Wrapf(ErrPageOutOfRange, "page %v is not in file %d", pageID, f.id)
	}

	size, err := f.size()
	if err != nil {
		return nil, err
	}

	pageSize := int64(common.PageSize())
	//nolint:gosec
	offset := int64(pageID.PageID) * pageSize
	if offset+pageSize > size {
		return nil, errors.Wrapf(ErrPageOutOfRange, "page %v, file size %d", pageID, size)
	}

	file, err := f.fs.Open(f.path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", f.path)
	}
	defer file.Close()

	data := make([]byte, pageSize)
	if _, err := file.ReadAt(data, offset); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrapf(err, "read page %v", pageID)
	}

	p, err := page.New(pageID, data, f.desc)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// WritePage writes p at its offset. Writing page NumPages() extends the file
// by one page.
func (f *File) WritePage(p storage.Page) error {
	pageID := p.ID()
	if pageID.FileID != f.id {
		return errors.Wrapf(ErrPageOutOfRange, "page %v is not in file %d", pageID, f.id)
	}

	numPages, err := f.NumPages()
	if err != nil {
		return err
	}
	//nolint:gosec
	if int(pageID.PageID) > numPages {
		return errors.Wrapf(ErrPageOutOfRange, "page %v, file has %d pages", pageID, numPages)
	}

	return f.writeAt(p.Data(), int64(pageID.PageID)) //nolint:gosec
}

func (f *File) writeAt(data []byte, pageNum int64) error {
	file, err := f.fs.OpenFile(f.path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open %s", f.path)
	}
	defer file.Close()

	if _, err := file.WriteAt(data, pageNum*int64(common.PageSize())); err != nil {
		return errors.Wrapf(err, "write page %d of %s", pageNum, f.path)
	}
	return nil
}

func (f *File) pageIdentity(pageNum int) common.PageIdentity {
	return common.PageIdentity{
		FileID: f.id,
		PageID: common.PageID(pageNum), //nolint:gosec
	}
}

func (f *File) heapPage(
	txnID common.TxnID,
	pageID common.PageIdentity,
	perm storage.Permission,
) (*page.HeapPage, error) {
	p, err := f.pool.GetPage(txnID, pageID, perm)
	if err != nil {
		return nil, err
	}

	hp, ok := p.(*page.HeapPage)
	if !ok {
		return nil, errors.Wrapf(ErrNotHeapPage, "page %v is %T", pageID, p)
	}
	return hp, nil
}

// InsertTuple puts t into the first page with a free slot, appending a new
// page if every page is full. Full pages scanned on the way stay locked by
// txnID.
func (f *File) InsertTuple(txnID common.TxnID, t *tuple.Tuple) ([]storage.Page, error) {
	if !f.desc.Equals(t.Desc()) {
		return nil, errors.Wrapf(ErrSchemaMismatch, "file %d: %s vs %s", f.id, f.desc, t.Desc())
	}

	numPages, err := f.NumPages()
	if err != nil {
		return nil, err
	}

	for i := range numPages {
		hp, err := f.heapPage(txnID, f.pageIdentity(i), storage.PermReadWrite)
		if err != nil {
			return nil, err
		}
		if hp.NumEmptySlots() == 0 {
			continue
		}

		if err := hp.InsertTuple(t); err != nil {
			return nil, err
		}
		return []storage.Page{hp}, nil
	}

	pageID, err := f.appendEmptyPage()
	if err != nil {
		return nil, err
	}

	hp, err := f.heapPage(txnID, pageID, storage.PermReadWrite)
	if err != nil {
		return nil, err
	}
	if err := hp.InsertTuple(t); err != nil {
		return nil, err
	}
	return []storage.Page{hp}, nil
}

func (f *File) appendEmptyPage() (common.PageIdentity, error) {
	f.appendMu.Lock()
	defer f.appendMu.Unlock()

	numPages, err := f.NumPages()
	if err != nil {
		return common.PageIdentity{}, err
	}

	if err := f.writeAt(page.EmptyPageData(), int64(numPages)); err != nil {
		return common.PageIdentity{}, err
	}
	return f.pageIdentity(numPages), nil
}

func (f *File) DeleteTuple(txnID common.TxnID, t *tuple.Tuple) ([]storage.Page, error) {
	rid := t.RecordID()
	if rid.IsNone() {
		return nil, storage.ErrNoRecordID
	}

	r := rid.Unwrap()
	if r.FileID != f.id {
		return nil, errors.Wrapf(ErrTupleNotInFile, "record %v, file %d", r, f.id)
	}

	hp, err := f.heapPage(txnID, r.PageIdentity(), storage.PermReadWrite)
	if err != nil {
		return nil, err
	}
	if err := hp.DeleteTuple(t); err != nil {
		return nil, err
	}
	return []storage.Page{hp}, nil
}

func (f *File) Iterator(txnID common.TxnID) storage.DbFileIterator {
	return &fileIterator{file: f, txnID: txnID}
}
