package ordinalstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	rec := Record{
		Size: 2,
		Entries: []Entry{
			{KeyOrdinal: 10, ValueOrd: 100, BucketHint: 0},
			{KeyOrdinal: 20, ValueOrd: 200, BucketHint: 1},
		},
	}
	buf := EncodeRecord(rec)
	got := DecodeRecord(buf)
	require.Equal(t, rec, got)
	require.Equal(t, 2, PeekSize(buf))
}

func TestOrdinalMapStaging(t *testing.T) {
	m := New()
	m.PutRecord(0, Record{Size: 1, Entries: []Entry{{KeyOrdinal: 1, ValueOrd: 1}}})
	m.PutRecord(5, Record{Size: 0})

	buf, ok := m.GetPointerForData(0)
	require.True(t, ok)
	require.Equal(t, 1, DecodeRecord(buf).Size)

	_, ok = m.GetPointerForData(1)
	require.False(t, ok)
}
