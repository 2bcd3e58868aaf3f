package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageIdentityBinaryRoundTrip(t *testing.T) {
	p := PageIdentity{FileID: 17, PageID: 3}
	b, err := p.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, b, 16)

	var got PageIdentity
	require.NoError(t, got.UnmarshalBinary(b))
	assert.Equal(t, p, got)
}

func TestPageIdentityIsMapKey(t *testing.T) {
	m := map[PageIdentity]int{}
	m[PageIdentity{FileID: 1, PageID: 2}] = 5
	assert.Equal(t, 5, m[RecordID{FileID: 1, PageID: 2, SlotNum: 9}.PageIdentity()])
}

func TestPageSizeOverride(t *testing.T) {
	defer ResetPageSize()

	assert.Equal(t, DefaultPageSize, PageSize())
	SetPageSize(512)
	assert.Equal(t, 512, PageSize())
	ResetPageSize()
	assert.Equal(t, DefaultPageSize, PageSize())
	assert.Panics(t, func() { SetPageSize(0) })
}
