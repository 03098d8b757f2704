package bitset

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetGetClear(t *testing.T) {
	s := New(10)
	s.Set(3)
	s.Set(9)
	require.True(t, s.Get(3))
	require.True(t, s.Get(9))
	require.False(t, s.Get(4))
	s.Clear(3)
	require.False(t, s.Get(3))
}

func TestNextSetBit(t *testing.T) {
	s := New(200)
	s.Set(5)
	s.Set(130)
	require.Equal(t, 5, s.NextSetBit(0))
	require.Equal(t, 130, s.NextSetBit(6))
	require.Equal(t, -1, s.NextSetBit(131))
}

func TestAndNot(t *testing.T) {
	prev := New(10)
	prev.Set(0)
	prev.Set(1)
	curr := New(10)
	curr.Set(1)
	curr.Set(2)

	added := curr.AndNot(prev)
	removed := prev.AndNot(curr)

	require.True(t, added.Get(2))
	require.False(t, added.Get(1))
	require.True(t, removed.Get(0))
	require.False(t, removed.Get(1))
}

func TestSerializeRoundTrip(t *testing.T) {
	s := New(300)
	s.Set(0)
	s.Set(17)
	s.Set(299)

	var buf bytes.Buffer
	require.NoError(t, s.SerializeTo(&buf))

	got, err := DeserializeFrom(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.True(t, got.Get(0))
	require.True(t, got.Get(17))
	require.True(t, got.Get(299))
	require.False(t, got.Get(18))
}
