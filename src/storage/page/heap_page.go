package page

import (
	"sync"

	"github.com/go-faster/errors"

	"github.com/Blackdeer1524/HeapDB/src/pkg/assert"
	"github.com/Blackdeer1524/HeapDB/src/pkg/common"
	"github.com/Blackdeer1524/HeapDB/src/pkg/optional"
	"github.com/Blackdeer1524/HeapDB/src/storage"
	"github.com/Blackdeer1524/HeapDB/src/storage/tuple"
)

// Page layout:
//
//	| used-slot bitmap (headerSize bytes) | slot 0 | slot 1 | ... | slot n-1 | padding |
//
// Bit i of the bitmap lives in byte i/8 at position i%8 (least significant
// bit first). Every slot is exactly desc.Size() bytes. An all-zero buffer is
// a valid empty page.

var (
	ErrPageFull        = errors.New("page has no empty slots")
	ErrSlotEmpty       = errors.New("slot is empty")
	ErrTupleNotOnPage  = errors.New("tuple does not belong to this page")
	ErrSchemaMismatch  = errors.New("tuple schema does not match page schema")
	ErrInvalidPageSize = errors.New("invalid page data size")
)

type HeapPage struct {
	id   common.PageIdentity
	desc *tuple.Desc

	numSlots   int
	headerSize int

	mu          sync.RWMutex
	data        []byte
	dirtiedBy   optional.Optional[common.TxnID]
	beforeImage []byte
}

var _ storage.Page = &HeapPage{}

// NumSlots is the number of tuples of the given schema that fit in one page:
// each tuple costs desc.Size() bytes plus one header bit.
func NumSlots(desc *tuple.Desc) int {
	return (common.PageSize() * 8) / (desc.Size()*8 + 1)
}

func headerSizeFor(numSlots int) int {
	return (numSlots + 7) / 8
}

// EmptyPageData returns the bytes of a page without tuples.
func EmptyPageData() []byte {
	return make([]byte, common.PageSize())
}

// New wraps raw page bytes read from disk. The content also becomes the
// page's before-image.
func New(id common.PageIdentity, data []byte, desc *tuple.Desc) (*HeapPage, error) {
	if len(data) != common.PageSize() {
		return nil, errors.Wrapf(
			ErrInvalidPageSize,
			"expected %d, got %d",
			common.PageSize(),
			len(data),
		)
	}

	numSlots := NumSlots(desc)
	assert.Assert(numSlots > 0, "a tuple of %d bytes doesn't fit in a page", desc.Size())

	p := &HeapPage{
		id:         id,
		desc:       desc,
		numSlots:   numSlots,
		headerSize: headerSizeFor(numSlots),
		data:       append([]byte(nil), data...),
		dirtiedBy:  optional.None[common.TxnID](),
	}
	p.beforeImage = append([]byte(nil), data...)

	return p, nil
}

func (p *HeapPage) ID() common.PageIdentity {
	return p.id
}

func (p *HeapPage) TupleDesc() *tuple.Desc {
	return p.desc
}

func (p *HeapPage) NumSlots() int {
	return p.numSlots
}

func (p *HeapPage) Data() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return append([]byte(nil), p.data...)
}

func (p *HeapPage) slotUsed(i int) bool {
	return p.data[i/8]&(1<<(uint(i)%8)) != 0
}

func (p *HeapPage) setSlot(i int, used bool) {
	if used {
		p.data[i/8] |= 1 << (uint(i) % 8)
	} else {
		p.data[i/8] &^= 1 << (uint(i) % 8)
	}
}

func (p *HeapPage) slotBytes(i int) []byte {
	size := p.desc.Size()
	off := p.headerSize + i*size
	return p.data[off : off+size]
}

func (p *HeapPage) IsSlotUsed(i int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return i >= 0 && i < p.numSlots && p.slotUsed(i)
}

func (p *HeapPage) NumEmptySlots() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	empty := 0
	for i := range p.numSlots {
		if !p.slotUsed(i) {
			empty++
		}
	}
	return empty
}

// InsertTuple stores t in the first empty slot and assigns its record id.
func (p *HeapPage) InsertTuple(t *tuple.Tuple) error {
	if !p.desc.Equals(t.Desc()) {
		return errors.Wrapf(ErrSchemaMismatch, "page %v: %s vs %s", p.id, p.desc, t.Desc())
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.numSlots {
		if p.slotUsed(i) {
			continue
		}

		t.Serialize(p.slotBytes(i))
		p.setSlot(i, true)
		t.SetRecordID(common.RecordID{
			FileID:  p.id.FileID,
			PageID:  p.id.PageID,
			SlotNum: uint16(i), //nolint:gosec
		})
		return nil
	}

	return errors.Wrapf(ErrPageFull, "page %v", p.id)
}

// DeleteTuple frees the slot referenced by t's record id and clears it.
func (p *HeapPage) DeleteTuple(t *tuple.Tuple) error {
	rid := t.RecordID()
	if rid.IsNone() {
		return storage.ErrNoRecordID
	}

	r := rid.Unwrap()
	if r.PageIdentity() != p.id {
		return errors.Wrapf(ErrTupleNotOnPage, "record %v, page %v", r, p.id)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	slot := int(r.SlotNum)
	if slot >= p.numSlots || !p.slotUsed(slot) {
		return errors.Wrapf(ErrSlotEmpty, "record %v", r)
	}

	p.setSlot(slot, false)
	clear(p.slotBytes(slot))
	t.ClearRecordID()

	return nil
}

// Tuples decodes the stored tuples in slot order.
func (p *HeapPage) Tuples() ([]*tuple.Tuple, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	res := make([]*tuple.Tuple, 0, p.numSlots)
	for i := range p.numSlots {
		if !p.slotUsed(i) {
			continue
		}

		t, err := tuple.Deserialize(p.desc, p.slotBytes(i))
		if err != nil {
			return nil, errors.Wrapf(err, "page %v slot %d", p.id, i)
		}
		t.SetRecordID(common.RecordID{
			FileID:  p.id.FileID,
			PageID:  p.id.PageID,
			SlotNum: uint16(i), //nolint:gosec
		})
		res = append(res, t)
	}
	return res, nil
}

func (p *HeapPage) DirtiedBy() optional.Optional[common.TxnID] {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.dirtiedBy
}

func (p *HeapPage) MarkDirty(dirty bool, txnID common.TxnID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if dirty {
		p.dirtiedBy = optional.Some(txnID)
	} else {
		p.dirtiedBy.Clear()
	}
}

func (p *HeapPage) BeforeImage() storage.Page {
	p.mu.RLock()
	defer p.mu.RUnlock()

	before, err := New(p.id, p.beforeImage, p.desc)
	assert.NoError(err)
	return before
}

func (p *HeapPage) SetBeforeImage() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.beforeImage = append(p.beforeImage[:0], p.data...)
}
