package mapstate

import (
	"github.com/faithfuldb/colstate/bitpack"
	"github.com/faithfuldb/colstate/hashkey"
	"github.com/faithfuldb/colstate/ordinalstore"
)

// HashTableSize returns the smallest power-of-two bucket count B such that
// size < B under loadFactor. The encoder treats this as authoritative and
// always re-derives it from the record size rather than trusting a staged
// width.
func HashTableSize(size int, loadFactor float64) int {
	return bitpack.HashTableSize(size, loadFactor)
}

// emptySentinel is the all-ones value reserved in the key field to denote
// an unused bucket slot.
func emptySentinel(bitsPerKeyElement uint) uint64 {
	return (uint64(1) << bitsPerKeyElement) - 1
}

// arrayAndWidth bundles a packed array with the widths needed to address
// its elements, since bitpack.Array already stores width internally; this
// wrapper exists so the entries array (two fields per element) can be
// addressed by field rather than by raw bit offset.
type arrayAndWidth struct {
	keyWidth, valueWidth uint
	sizeWidth, ptrWidth  uint
	entries              *bitpack.Array // stride = keyWidth+valueWidth
	pointersAndSizes     *bitpack.Array // stride = ptrWidth+sizeWidth
}

func newShardArrays(numPointerElems, numBucketElems int, keyWidth, valueWidth, sizeWidth, ptrWidth uint) *arrayAndWidth {
	return &arrayAndWidth{
		keyWidth:         keyWidth,
		valueWidth:       valueWidth,
		sizeWidth:        sizeWidth,
		ptrWidth:         ptrWidth,
		entries:          bitpack.NewArray(numBucketElems, keyWidth+valueWidth),
		pointersAndSizes: bitpack.NewArray(numPointerElems, ptrWidth+sizeWidth),
	}
}

// setPointerAndSize writes the (end-bucket pointer, logical size) pair at
// shard-local ordinal index i. The low field is the pointer, the high
// field is the size.
func (a *arrayAndWidth) setPointerAndSize(i int, pointer, size uint64) {
	v := (pointer & mask(a.ptrWidth)) | ((size & mask(a.sizeWidth)) << a.ptrWidth)
	a.pointersAndSizes.SetElementValue(i, v)
}

func mask(width uint) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}

// setEntry writes (keyOrdinal, valueOrdinal) at absolute bucket index i.
func (a *arrayAndWidth) setEntry(i int, keyOrdinal, valueOrdinal uint64) {
	v := (keyOrdinal & mask(a.keyWidth)) | ((valueOrdinal & mask(a.valueWidth)) << a.keyWidth)
	a.entries.SetElementValue(i, v)
}

// fillEmptySentinel initializes slots [start, start+b) to the empty
// sentinel in the key field, value field left zero.
func (a *arrayAndWidth) fillEmptySentinel(start, b int) {
	sentinel := emptySentinel(a.keyWidth)
	for i := start; i < start+b; i++ {
		a.entries.SetElementValue(i, sentinel)
	}
}

// entryKey reads back the key field of the entry at absolute bucket index i.
func (a *arrayAndWidth) entryKey(i int) uint64 {
	return a.entries.GetElementValue(i) & mask(a.keyWidth)
}

// placeRecord runs the §4.2 placement algorithm for one map record into
// the entries sub-range [cursor, cursor+B) of the given shard arrays,
// optionally overriding the staged bucket hint with a bound hasher.
func placeRecord(arr *arrayAndWidth, cursor int, rec ordinalstore.Record, hasher hashkey.Fn, loadFactor float64) (b int) {
	b = HashTableSize(rec.Size, loadFactor)
	arr.fillEmptySentinel(cursor, b)
	for _, e := range rec.Entries {
		var bucket int
		if hasher != nil {
			bucket = int(hasher(e.KeyOrdinal) & uint32(b-1))
		} else {
			bucket = int(e.BucketHint) & (b - 1)
		}
		slot := cursor + bucket
		for arr.entryKey(slot) != emptySentinel(arr.keyWidth) {
			bucket = (bucket + 1) & (b - 1)
			slot = cursor + bucket
		}
		arr.setEntry(slot, e.KeyOrdinal, uint64(e.ValueOrd))
	}
	return b
}
