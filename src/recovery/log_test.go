package recovery

import (
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Blackdeer1524/HeapDB/src/pkg/common"
	"github.com/Blackdeer1524/HeapDB/src/storage/page"
	"github.com/Blackdeer1524/HeapDB/src/storage/tuple"
)

const logPath = "/db/heapdb.log"

func intDesc(t *testing.T) *tuple.Desc {
	desc, err := tuple.NewDesc([]tuple.Type{tuple.IntType}, []string{"v"})
	require.NoError(t, err)
	return desc
}

// dirtyPage returns a page together with its clean before-image after one
// insert.
func dirtyPage(t *testing.T, pid common.PageIdentity, v int32) *page.HeapPage {
	desc := intDesc(t)

	p, err := page.New(pid, page.EmptyPageData(), desc)
	require.NoError(t, err)

	tup, err := tuple.New(desc, tuple.IntField(v))
	require.NoError(t, err)
	require.NoError(t, p.InsertTuple(tup))

	return p
}

func collect(t *testing.T, l *LogFile) []Record {
	var res []Record
	for r, err := range l.Records() {
		require.NoError(t, err)
		res = append(res, r)
	}
	return res
}

func TestLogWriteIsBufferedUntilForce(t *testing.T) {
	fs := afero.NewMemMapFs()
	l, err := Open(fs, logPath)
	require.NoError(t, err)
	defer l.Close()

	p := dirtyPage(t, common.PageIdentity{FileID: 7, PageID: 3}, 42)
	require.NoError(t, l.LogWrite(5, p.BeforeImage(), p))

	assert.Equal(t, LSN(1), l.LastLSN())
	assert.Zero(t, l.Size())
	assert.Empty(t, collect(t, l))

	require.NoError(t, l.Force())
	assert.Positive(t, l.Size())

	records := collect(t, l)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, TypeUpdate, r.Type)
	assert.Equal(t, LSN(1), r.LSN)
	assert.Equal(t, common.TxnID(5), r.TxnID)
	assert.Equal(t, p.ID(), r.PageID)
	assert.Equal(t, page.EmptyPageData(), r.Before)
	assert.Equal(t, p.Data(), r.After)
}

func TestForceWithoutRecordsIsNoop(t *testing.T) {
	l, err := Open(afero.NewMemMapFs(), logPath)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Force())
	assert.Zero(t, l.Size())
}

func TestRecordsSurviveReopen(t *testing.T) {
	fs := afero.NewMemMapFs()

	l, err := Open(fs, logPath)
	require.NoError(t, err)

	for i := range 3 {
		p := dirtyPage(t, common.PageIdentity{FileID: 1, PageID: common.PageID(i)}, int32(i))
		require.NoError(t, l.LogWrite(common.TxnID(i+1), p.BeforeImage(), p))
	}
	require.NoError(t, l.Close())

	l, err = Open(fs, logPath)
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, LSN(3), l.LastLSN())

	records := collect(t, l)
	require.Len(t, records, 3)
	for i, r := range records {
		assert.Equal(t, LSN(i+1), r.LSN)
		assert.Equal(t, common.PageID(i), r.PageID.PageID)
	}

	p := dirtyPage(t, common.PageIdentity{FileID: 1, PageID: 9}, 9)
	require.NoError(t, l.LogWrite(4, p.BeforeImage(), p))
	require.NoError(t, l.Force())
	assert.Len(t, collect(t, l), 4)
	assert.Equal(t, LSN(4), l.LastLSN())
}

func TestTornTailIsCutOff(t *testing.T) {
	fs := afero.NewMemMapFs()

	l, err := Open(fs, logPath)
	require.NoError(t, err)
	p := dirtyPage(t, common.PageIdentity{FileID: 1, PageID: 0}, 1)
	require.NoError(t, l.LogWrite(1, p.BeforeImage(), p))
	require.NoError(t, l.Close())

	info, err := fs.Stat(logPath)
	require.NoError(t, err)
	goodSize := info.Size()

	f, err := fs.OpenFile(logPath, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0, 0, 1, 0, byte(TypeUpdate), 1, 2})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	l, err = Open(fs, logPath)
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, goodSize, l.Size())
	assert.Len(t, collect(t, l), 1)
	assert.Equal(t, LSN(1), l.LastLSN())
}

func TestLogWriteRejectsMismatchedImages(t *testing.T) {
	l, err := Open(afero.NewMemMapFs(), logPath)
	require.NoError(t, err)
	defer l.Close()

	a := dirtyPage(t, common.PageIdentity{FileID: 1, PageID: 0}, 1)
	b := dirtyPage(t, common.PageIdentity{FileID: 1, PageID: 1}, 1)
	require.Error(t, l.LogWrite(1, a.BeforeImage(), b))
}

func TestClosedLogRejectsWrites(t *testing.T) {
	l, err := Open(afero.NewMemMapFs(), logPath)
	require.NoError(t, err)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	p := dirtyPage(t, common.PageIdentity{FileID: 1, PageID: 0}, 1)
	require.ErrorIs(t, l.LogWrite(1, p.BeforeImage(), p), os.ErrClosed)
	require.ErrorIs(t, l.Force(), os.ErrClosed)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	var r Record
	require.ErrorIs(t, r.UnmarshalBinary(nil), ErrCorruptedRecord)
	require.ErrorIs(t, r.UnmarshalBinary([]byte{byte(TypeUnknown)}), ErrCorruptedRecord)
	require.ErrorIs(t, r.UnmarshalBinary([]byte{byte(TypeUpdate), 1, 2}), ErrCorruptedRecord)

	good := Record{
		Type:   TypeUpdate,
		LSN:    3,
		TxnID:  4,
		PageID: common.PageIdentity{FileID: 5, PageID: 6},
		Before: []byte("before"),
		After:  []byte("after"),
	}
	data, err := good.MarshalBinary()
	require.NoError(t, err)

	require.ErrorIs(t, r.UnmarshalBinary(append(data, 0)), ErrCorruptedRecord)
	require.NoError(t, r.UnmarshalBinary(data))
	assert.Equal(t, good, r)
}
