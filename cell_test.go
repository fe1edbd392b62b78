package syncplus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCell(t *testing.T) {
	t.Parallel()

	c := NewCell(3)
	assert.True(t, c.Present())
	*c.Ptr() = 4
	assert.Equal(t, 4, *c.Ptr())
	assert.Equal(t, 4, *c.untyped().(*int))

	empty := EmptyCell[string]()
	assert.False(t, empty.Present())
	assert.Nil(t, empty.Ptr())
	// an untyped nil, not a typed nil pointer inside an interface
	assert.True(t, empty.untyped() == nil)

	empty.Set("x")
	assert.True(t, empty.Present())
	assert.Equal(t, "x", *empty.Ptr())
}
