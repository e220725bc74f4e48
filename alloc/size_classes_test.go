package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_SizeClass_ClassOf(t *testing.T) {
	tbl := newSizeClassTable(5, 25)

	tests := []struct {
		size  int
		class int
	}{
		{0, 0},
		{1, 0},
		{24, 0},
		{25, 1},
		{40, 1},
		{56, 1},
		{57, 2},
		{120, 2},
		{121, 3},
		{1016, 5},
		{1017, 6},
		{tbl.maxSize(), 24},
	}
	for _, tt := range tests {
		c, ok := tbl.classOf(tt.size)
		require.True(t, ok, "size %d", tt.size)
		assert.Equal(t, tt.class, c, "size %d", tt.size)
	}
}

func Test_SizeClass_SmallestFittingClass(t *testing.T) {
	tbl := newSizeClassTable(5, 25)
	for size := 0; size <= 1<<14; size++ {
		c, ok := tbl.classOf(size)
		require.True(t, ok)
		require.GreaterOrEqual(t, tbl.capacity(c), size, "size %d class %d", size, c)
		if c > 0 {
			require.Less(t, tbl.capacity(c-1), size, "size %d fits class %d", size, c-1)
		}
	}
}

func Test_SizeClass_OutOfRange(t *testing.T) {
	tbl := newSizeClassTable(5, 4)
	assert.Equal(t, 256-8, tbl.maxSize())

	_, ok := tbl.classOf(-1)
	assert.False(t, ok)
	_, ok = tbl.classOf(tbl.maxSize() + 1)
	assert.False(t, ok)
}

func Test_SizeClass_Classes(t *testing.T) {
	classes, err := Classes(nil)
	require.NoError(t, err)
	require.Len(t, classes, 25)

	assert.Equal(t, ClassInfo{Class: 0, BlockSize: 32, Capacity: 24}, classes[0])
	assert.Equal(t, ClassInfo{Class: 3, BlockSize: 256, Capacity: 248}, classes[3])
	assert.Equal(t, 1<<29, classes[24].BlockSize)

	_, err = Classes(&Options{MinBlockShift: 2, NumClasses: 4, CacheAlign: 64})
	require.ErrorIs(t, err, ErrBadOptions)
}

func Test_Options_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *Options)
	}{
		{"tiny blocks", func(o *Options) { o.MinBlockShift = 3 }},
		{"no classes", func(o *Options) { o.NumClasses = 0 }},
		{"too many classes", func(o *Options) { o.NumClasses = 255 }},
		{"largest block too big", func(o *Options) { o.MinBlockShift = 10; o.NumClasses = 22 }},
		{"cache align not power of two", func(o *Options) { o.CacheAlign = 48 }},
		{"cache align too small", func(o *Options) { o.CacheAlign = 4 }},
		{"bad order", func(o *Options) { o.ListOrder = 7 }},
		{"bad shrink", func(o *Options) { o.ShrinkPolicy = 7 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.mutate(o)
			require.ErrorIs(t, o.validate(), ErrBadOptions)
		})
	}
	require.NoError(t, DefaultOptions().validate())
}

func Test_Options_Parse(t *testing.T) {
	o, err := ParseListOrder("LIFO")
	require.NoError(t, err)
	assert.Equal(t, OrderLIFO, o)
	o, err = ParseListOrder("")
	require.NoError(t, err)
	assert.Equal(t, OrderAddress, o)
	_, err = ParseListOrder("fifo")
	require.ErrorIs(t, err, ErrBadOptions)

	s, err := ParseShrinkPolicy("keep")
	require.NoError(t, err)
	assert.Equal(t, ShrinkKeep, s)
	_, err = ParseShrinkPolicy("never")
	require.ErrorIs(t, err, ErrBadOptions)

	assert.Equal(t, "address", OrderAddress.String())
	assert.Equal(t, "split", ShrinkSplit.String())
}
