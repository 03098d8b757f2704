package ordinalstore

import "github.com/faithfuldb/colstate/varint"

// Entry is one (key ordinal, value ordinal, bucket hint) tuple staged for
// a map record, decoded from its forward-delta-encoded wire form.
type Entry struct {
	KeyOrdinal uint64
	ValueOrd   uint32
	BucketHint uint32
}

// Record is the decoded form of a staged map record: a multiset of
// (key ordinal, value ordinal) pairs plus the stager's bucket hints.
type Record struct {
	Size    int
	Entries []Entry
}

// EncodeRecord serializes a Record to the staged var-int wire format:
// size, then size * (keyOrdDelta, valueOrd, bucketHint), where key
// ordinals are forward-delta-encoded as nonnegative running deltas.
func EncodeRecord(rec Record) []byte {
	var w varint.Writer
	w.VInt(uint32(rec.Size))
	var prevKey uint64
	for _, e := range rec.Entries {
		delta := e.KeyOrdinal - prevKey
		w.VLong(delta)
		w.VInt(e.ValueOrd)
		w.VInt(e.BucketHint)
		prevKey = e.KeyOrdinal
	}
	return w.Bytes()
}

// DecodeRecord fully decodes a staged map record.
func DecodeRecord(buf []byte) Record {
	r := varint.NewReader(buf)
	size := int(r.VInt())
	rec := Record{Size: size, Entries: make([]Entry, 0, size)}
	var key uint64
	for i := 0; i < size; i++ {
		key += r.VLong()
		valueOrd := r.VInt()
		bucketHint := r.VInt()
		rec.Entries = append(rec.Entries, Entry{
			KeyOrdinal: key,
			ValueOrd:   valueOrd,
			BucketHint: bucketHint,
		})
	}
	return rec
}

// PeekSize decodes only the leading size var-int of a staged map record,
// without touching the entry tuples that follow. Used by the delta diff
// pass, which only needs hashTableSize(size).
func PeekSize(buf []byte) int {
	r := varint.NewReader(buf)
	return int(r.VInt())
}
