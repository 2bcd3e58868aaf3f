package bufferpool

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Blackdeer1524/HeapDB/src/pkg/common"
)

func TestAgeReplacer(t *testing.T) {
	r := NewAgeReplacer()

	pages := []common.PageIdentity{
		{FileID: 1, PageID: 2},
		{FileID: 1, PageID: 0},
		{FileID: 2, PageID: 1},
	}
	for _, p := range pages {
		r.Track(p)
	}
	// re-tracking keeps the age
	r.Track(pages[0])

	assert.Equal(t, 3, r.Size())
	assert.Equal(t, pages, r.Ordered())

	victim, ok := r.ChooseVictim(func(common.PageIdentity) bool { return true })
	assert.True(t, ok)
	assert.Equal(t, pages[0], victim)

	victim, ok = r.ChooseVictim(func(p common.PageIdentity) bool { return p.FileID == 2 })
	assert.True(t, ok)
	assert.Equal(t, pages[2], victim)

	_, ok = r.ChooseVictim(func(common.PageIdentity) bool { return false })
	assert.False(t, ok)

	r.Forget(pages[0])
	r.Forget(pages[0])
	assert.Equal(t, pages[1:], r.Ordered())

	r.Track(pages[0])
	assert.Equal(t, []common.PageIdentity{pages[1], pages[2], pages[0]}, r.Ordered())
}
