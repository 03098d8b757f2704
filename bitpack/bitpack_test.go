package bitpack

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCeilLog2(t *testing.T) {
	cases := map[uint64]uint{
		0:   0,
		1:   1,
		2:   2,
		3:   2,
		4:   3,
		22:  5,
		201: 8,
	}
	for in, want := range cases {
		require.Equalf(t, want, CeilLog2(in), "CeilLog2(%d)", in)
	}
}

func TestHashTableSizeInvariant(t *testing.T) {
	for size := 0; size < 64; size++ {
		b := HashTableSize(size, 1.0)
		require.Greater(t, b, size, "size=%d", size)
		require.Zero(t, b&(b-1), "B must be a power of two, got %d", b)
	}
}

func TestArraySetGetRoundTrip(t *testing.T) {
	a := NewArray(100, 5)
	for i := 0; i < 100; i++ {
		a.SetElementValue(i, uint64(i%31))
	}
	for i := 0; i < 100; i++ {
		require.Equal(t, uint64(i%31), a.GetElementValue(i))
	}
}

func TestStraddlingWordBoundary(t *testing.T) {
	words := make([]uint64, 2)
	// width 13 at bit offset 60 straddles the word boundary.
	SetElementValue(words, 60, 13, 0x1ABC&((1<<13)-1))
	got := GetElementValue(words, 60, 13)
	require.Equal(t, uint64(0x1ABC&((1<<13)-1)), got)
}

func TestClearElementValue(t *testing.T) {
	a := NewArray(10, 9)
	a.SetElementValue(3, 511)
	a.ClearElementValue(3)
	require.Equal(t, uint64(0), a.GetElementValue(3))
}
