package bgzf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVirtualOffsetPacking(t *testing.T) {
	v := MakeVirtualOffset(12345, 678)
	assert.Equal(t, int64(12345), v.FileOffset())
	assert.Equal(t, uint16(678), v.BlockOffset())
}

func TestVirtualOffsetAdd(t *testing.T) {
	v := MakeVirtualOffset(100, 10)
	w := v.Add(5)
	assert.Equal(t, int64(100), w.FileOffset())
	assert.Equal(t, uint16(15), w.BlockOffset())
}

func TestVirtualOffsetOrdering(t *testing.T) {
	a := MakeVirtualOffset(10, 5)
	b := MakeVirtualOffset(10, 6)
	c := MakeVirtualOffset(11, 0)
	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
	assert.False(t, c.Less(a))
}
