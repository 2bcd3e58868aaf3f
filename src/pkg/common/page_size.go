package common

import (
	"sync/atomic"

	"github.com/Blackdeer1524/HeapDB/src/pkg/assert"
)

const DefaultPageSize = 4096

// zero means DefaultPageSize
var pageSizeOverride atomic.Int64

// PageSize returns the size in bytes of every page in the process.
func PageSize() int {
	if v := pageSizeOverride.Load(); v != 0 {
		return int(v)
	}
	return DefaultPageSize
}

// SetPageSize overrides the page size. Tests only: files written with one
// page size are unreadable with another.
func SetPageSize(size int) {
	assert.Assert(size > 0, "page size must be positive, got %d", size)
	pageSizeOverride.Store(int64(size))
}

func ResetPageSize() {
	pageSizeOverride.Store(0)
}
