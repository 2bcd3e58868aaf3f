package txns

import (
	"sync/atomic"

	"github.com/Blackdeer1524/HeapDB/src/pkg/common"
)

// IDGenerator hands out transaction ids. The zero value is ready to use and
// never returns common.NilTxnID.
type IDGenerator struct {
	last atomic.Uint64
}

func (g *IDGenerator) Next() common.TxnID {
	return common.TxnID(g.last.Add(1))
}
