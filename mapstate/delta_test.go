package mapstate

import (
	"bytes"
	"testing"

	"github.com/faithfuldb/colstate/bitpack"
	"github.com/faithfuldb/colstate/bitset"
	"github.com/faithfuldb/colstate/ordinalstore"
	"github.com/faithfuldb/colstate/typewrite"
	"github.com/stretchr/testify/require"
)

func bitsetWith(t *testing.T, maxOrdinal int, ordinals ...int) *bitset.Set {
	t.Helper()
	s := bitset.New(maxOrdinal)
	for _, ord := range ordinals {
		s.Set(ord)
	}
	return s
}

type decodedDeltaShard struct {
	maxShardOrd                                int
	numMaps                                    int
	ptrWidth, sizeWidth, keyWidth, valueWidth   uint
	totalBuckets                                uint64
	pointersWords, entriesWords                 []uint64
}

func decodeDeltaShardBody(buf []byte, pos *int) (removed, added []byte, stats decodedDeltaShard) {
	stats.maxShardOrd = int(readVInt(buf, pos))

	removedLen := int(readVInt(buf, pos))
	removed = buf[*pos : *pos+removedLen]
	*pos += removedLen

	addedLen := int(readVInt(buf, pos))
	added = buf[*pos : *pos+addedLen]
	*pos += addedLen

	stats.numMaps = int(readVInt(buf, pos))
	stats.ptrWidth = uint(readVInt(buf, pos))
	stats.sizeWidth = uint(readVInt(buf, pos))
	stats.keyWidth = uint(readVInt(buf, pos))
	stats.valueWidth = uint(readVInt(buf, pos))
	stats.totalBuckets = readVLong(buf, pos)
	stats.pointersWords = readWordArray(buf, pos)
	stats.entriesWords = readWordArray(buf, pos)
	return
}

func decodeGapStream(buf []byte) []int {
	var out []int
	pos := 0
	prev := 0
	for pos < len(buf) {
		gap := int(readVInt(buf, &pos))
		prev += gap
		out = append(out, prev)
	}
	return out
}

func TestCalculateDeltaAddsAndRemoves(t *testing.T) {
	om := ordinalstore.New()
	from := bitsetWith(t, 16, 0, 1)
	to := bitsetWith(t, 16, 1, 2)

	om.PutRecord(1, ordinalstore.Record{Size: 1, Entries: []ordinalstore.Entry{{KeyOrdinal: 11, ValueOrd: 110}}})
	om.PutRecord(2, ordinalstore.Record{Size: 1, Entries: []ordinalstore.Entry{{KeyOrdinal: 22, ValueOrd: 220}}})

	s := New(typewrite.Config{TargetMaxShardBytes: 1 << 20}, "testMap", om, from, to)
	s.PinnedShards = 1
	s.PrepareForWrite(true)

	require.NoError(t, s.CalculateDelta(from, to, false))
	require.True(t, s.deltaReady)
	require.Equal(t, []int{1}, s.numMapsInDelta)

	var out bytes.Buffer
	require.NoError(t, s.WriteCalculatedDelta(&out, false, []int{2}))
	require.False(t, s.deltaReady, "scratch must be released after WriteCalculatedDelta")

	buf := out.Bytes()
	pos := 0
	removed, added, stats := decodeDeltaShardBody(buf, &pos)

	require.Equal(t, 2, stats.maxShardOrd)
	require.Equal(t, []int{0}, decodeGapStream(removed))
	require.Equal(t, []int{2}, decodeGapStream(added))
	require.EqualValues(t, 1, stats.numMaps)

	sentinel := emptySentinel(stats.keyWidth)
	b := HashTableSize(1, s.loadFactor())
	found := map[uint64]uint64{}
	stride := stats.keyWidth + stats.valueWidth
	for i := 0; i < b; i++ {
		v := bitpack.GetElementValue(stats.entriesWords, i*int(stride), stride)
		k := v & mask(stats.keyWidth)
		val := (v >> stats.keyWidth) & mask(stats.valueWidth)
		if k != sentinel {
			found[k] = val
		}
	}
	require.Equal(t, map[uint64]uint64{22: 220}, found)
}

func TestCalculateDeltaNoChangesIsEmpty(t *testing.T) {
	om := ordinalstore.New()
	from := bitsetWith(t, 16, 0)
	to := bitsetWith(t, 16, 0)
	om.PutRecord(0, ordinalstore.Record{Size: 1, Entries: []ordinalstore.Entry{{KeyOrdinal: 1, ValueOrd: 1}}})

	s := New(typewrite.Config{TargetMaxShardBytes: 1 << 20}, "testMap", om, from, to)
	s.PinnedShards = 1
	s.PrepareForWrite(true)

	require.NoError(t, s.CalculateDelta(from, to, false))
	require.Equal(t, []int{0}, s.numMapsInDelta)
	require.Equal(t, []int{0}, s.numBucketsInDelta)
}

// TestCalculateDeltaReverseUsesPriorShardGeometry exercises a reverse delta
// taken the cycle a type resharded from one shard up to two: the reverse
// delta must lay out its gap streams and arrays under RevNumShards (the
// prior, coarser geometry), not the new NumShards.
func TestCalculateDeltaReverseUsesPriorShardGeometry(t *testing.T) {
	om := ordinalstore.New()
	from := bitsetWith(t, 16, 0, 1)
	to := bitsetWith(t, 16, 0, 1, 2, 3)

	for ord := 0; ord < 4; ord++ {
		om.PutRecord(ord, ordinalstore.Record{
			Size:    1,
			Entries: []ordinalstore.Entry{{KeyOrdinal: uint64(10 + ord), ValueOrd: uint32(100 + ord)}},
		})
	}

	// Force a reshard up from 1 shard by pinning a tiny byte budget; the
	// exact resulting NumShards only needs to exceed RevNumShards for this
	// test, since the reverse delta is laid out under RevNumShards either way.
	s := New(typewrite.Config{TargetMaxShardBytes: 1}, "testMap", om, from, to)
	s.NumShards = 1
	s.PrepareForWrite(true)
	require.Equal(t, 1, s.RevNumShards)
	require.Greater(t, s.NumShards, 1, "sizer should have resharded under a 1-byte budget")

	require.NoError(t, s.CalculateDelta(from, to, true))
	require.True(t, s.deltaReady)
	require.True(t, s.deltaIsReverse)
	// Reverse layout uses RevNumShards (1 shard), not the larger new NumShards.
	require.Len(t, s.numMapsInDelta, 1)
	require.Equal(t, []int{2}, s.numMapsInDelta, "both added ordinals 2 and 3 fall in the single prior shard")

	var out bytes.Buffer
	require.NoError(t, s.WriteCalculatedDelta(&out, true, []int{3}))
	require.False(t, s.deltaReady)

	buf := out.Bytes()
	pos := 0
	_, added, stats := decodeDeltaShardBody(buf, &pos)
	require.Equal(t, 3, stats.maxShardOrd)
	require.Equal(t, []int{2, 3}, decodeGapStream(added))
	require.EqualValues(t, 2, stats.numMaps)

	// Calling WriteCalculatedDelta with a mismatched isReverse must fail
	// instead of silently writing the wrong geometry.
	s2 := New(typewrite.Config{TargetMaxShardBytes: 1}, "testMap", om, from, to)
	s2.NumShards = 1
	s2.PrepareForWrite(true)
	require.NoError(t, s2.CalculateDelta(from, to, true))
	require.Error(t, s2.WriteCalculatedDelta(&bytes.Buffer{}, false, []int{3}))
}
