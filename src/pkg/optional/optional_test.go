package optional

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptional(t *testing.T) {
	o := None[int]()
	assert.True(t, o.IsNone())
	assert.Equal(t, 7, o.UnwrapOr(7))
	assert.Panics(t, func() { o.Unwrap() })

	o.Emplace(3)
	assert.True(t, o.IsSome())
	assert.Equal(t, 3, o.Unwrap())
	assert.Equal(t, Some(3), o)

	o.Clear()
	assert.Equal(t, None[int](), o)
}
