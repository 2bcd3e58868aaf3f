package bufferpool

import (
	"container/list"

	"github.com/Blackdeer1524/HeapDB/src/pkg/common"
)

// Replacer tracks cached pages in load order and picks eviction victims.
type Replacer interface {
	Track(pageID common.PageIdentity)
	Forget(pageID common.PageIdentity)
	// ChooseVictim returns the oldest tracked page accepted by eligible.
	ChooseVictim(eligible func(common.PageIdentity) bool) (common.PageIdentity, bool)
	// Ordered returns tracked pages, oldest first.
	Ordered() []common.PageIdentity
	Size() int
}

// AgeReplacer orders pages by the moment they entered the pool. Re-tracking
// a page that is already tracked keeps its age.
//
// Not safe for concurrent use: the pool calls it under its own mutex.
type AgeReplacer struct {
	order *list.List
	elems map[common.PageIdentity]*list.Element
}

var _ Replacer = &AgeReplacer{}

func NewAgeReplacer() *AgeReplacer {
	return &AgeReplacer{
		order: list.New(),
		elems: make(map[common.PageIdentity]*list.Element),
	}
}

func (r *AgeReplacer) Track(pageID common.PageIdentity) {
	if _, ok := r.elems[pageID]; ok {
		return
	}
	r.elems[pageID] = r.order.PushBack(pageID)
}

func (r *AgeReplacer) Forget(pageID common.PageIdentity) {
	if elem, ok := r.elems[pageID]; ok {
		r.order.Remove(elem)
		delete(r.elems, pageID)
	}
}

func (r *AgeReplacer) ChooseVictim(
	eligible func(common.PageIdentity) bool,
) (common.PageIdentity, bool) {
	for elem := r.order.Front(); elem != nil; elem = elem.Next() {
		pageID := elem.Value.(common.PageIdentity)
		if eligible(pageID) {
			return pageID, true
		}
	}
	return common.PageIdentity{}, false
}

func (r *AgeReplacer) Ordered() []common.PageIdentity {
	res := make([]common.PageIdentity, 0, r.order.Len())
	for elem := r.order.Front(); elem != nil; elem = elem.Next() {
		res = append(res, elem.Value.(common.PageIdentity))
	}
	return res
}

func (r *AgeReplacer) Size() int {
	return len(r.elems)
}
