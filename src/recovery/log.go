package recovery

import (
	"bufio"
	"io"
	"iter"
	"os"
	"sync"

	"github.com/go-faster/errors"
	"github.com/spf13/afero"

	"github.com/Blackdeer1524/HeapDB/src/pkg/common"
	"github.com/Blackdeer1524/HeapDB/src/storage"
)

// LogFile is an append-only redo log. LogWrite only buffers a record; it
// becomes durable after Force returns.
type LogFile struct {
	mu sync.Mutex

	fs   afero.Fs
	path string
	file afero.File

	pending []byte
	// size of the durable prefix of the file
	offset  int64
	lastLSN LSN
	closed  bool
}

// Open opens (creating if needed) the log at path. A torn record at the tail
// left by a crash during Force is cut off.
func Open(fs afero.Fs, path string) (*LogFile, error) {
	file, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open log %s", path)
	}

	l := &LogFile{
		fs:   fs,
		path: path,
		file: file,
	}

	if err := l.recoverTail(); err != nil {
		_ = file.Close()
		return nil, err
	}
	return l, nil
}

func (l *LogFile) recoverTail() error {
	info, err := l.file.Stat()
	if err != nil {
		return errors.Wrap(err, "stat log")
	}

	rd := bufio.NewReader(io.NewSectionReader(l.file, 0, info.Size()))

	var good int64
	for {
		r, n, err := readFrame(rd)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, ErrCorruptedRecord) {
			if err := l.file.Truncate(good); err != nil {
				return errors.Wrap(err, "truncate torn log tail")
			}
			break
		}
		if err != nil {
			return errors.Wrap(err, "scan log")
		}

		good += n
		l.lastLSN = r.LSN
	}

	l.offset = good
	return nil
}

func (l *LogFile) Path() string {
	return l.path
}

// LogWrite buffers an update record for after.ID(). It does not touch the
// disk.
func (l *LogFile) LogWrite(txnID common.TxnID, before, after storage.Page) error {
	if before.ID() != after.ID() {
		return errors.Errorf("before image of %v paired with %v", before.ID(), after.ID())
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return os.ErrClosed
	}

	r := Record{
		Type:   TypeUpdate,
		LSN:    l.lastLSN + 1,
		TxnID:  txnID,
		PageID: after.ID(),
		Before: before.Data(),
		After:  after.Data(),
	}

	pending, err := appendFrame(l.pending, &r)
	if err != nil {
		return errors.Wrapf(err, "encode record for page %v", r.PageID)
	}

	l.pending = pending
	l.lastLSN = r.LSN
	return nil
}

// Force writes every buffered record and syncs the file.
func (l *LogFile) Force() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return os.ErrClosed
	}
	return l.force()
}

func (l *LogFile) force() error {
	if len(l.pending) == 0 {
		return nil
	}

	n, err := l.file.WriteAt(l.pending, l.offset)
	if err != nil {
		return errors.Wrap(err, "write log records")
	}
	if err := l.file.Sync(); err != nil {
		return errors.Wrap(err, "sync log")
	}

	l.offset += int64(n)
	l.pending = l.pending[:0]
	return nil
}

// LastLSN is the LSN of the newest record, buffered or durable.
func (l *LogFile) LastLSN() LSN {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.lastLSN
}

// Size is the number of durable bytes.
func (l *LogFile) Size() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.offset
}

// Records iterates over the durable records in log order.
func (l *LogFile) Records() iter.Seq2[Record, error] {
	l.mu.Lock()
	size := l.offset
	l.mu.Unlock()

	return func(yield func(Record, error) bool) {
		rd := bufio.NewReader(io.NewSectionReader(l.file, 0, size))
		for {
			r, _, err := readFrame(rd)
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(r, err) || err != nil {
				return
			}
		}
	}
}

// Close forces pending records and closes the file.
func (l *LogFile) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	if err := l.force(); err != nil {
		_ = l.file.Close()
		return err
	}
	return l.file.Close()
}
