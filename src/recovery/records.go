package recovery

import (
	"fmt"

	"github.com/Blackdeer1524/HeapDB/src/pkg/common"
)

type LogRecordTypeTag byte

const (
	TypeUpdate LogRecordTypeTag = iota + 1
	TypeUnknown
)

func (t LogRecordTypeTag) String() string {
	switch t {
	case TypeUpdate:
		return "UPDATE"
	}
	return fmt.Sprintf("UNKNOWN(%d)", byte(t))
}

type LSN uint64

const NilLSN = LSN(0)

// Record is one page update: the page images right before and right after
// the flush that produced it.
type Record struct {
	Type   LogRecordTypeTag
	LSN    LSN
	TxnID  common.TxnID
	PageID common.PageIdentity
	Before []byte
	After  []byte
}

func (r Record) String() string {
	return fmt.Sprintf(
		"%s lsn=%d txn=%d page=%v before=%dB after=%dB",
		r.Type,
		r.LSN,
		r.TxnID,
		r.PageID,
		len(r.Before),
		len(r.After),
	)
}
