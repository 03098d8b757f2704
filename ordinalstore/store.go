// Package ordinalstore implements the byte-addressable staging arena: a
// flat buffer keyed by ordinal, each populated slot pointing at a
// var-int-encoded map record. This mirrors the append-only growth pattern
// of gsfa/linkedlog.LinkedLog, without the file-backing: staging stays
// in-memory and quiescent for the duration of an encode cycle.
package ordinalstore

// OrdinalMap is a byte-addressable arena keyed by ordinal.
type OrdinalMap struct {
	buf     []byte
	offsets map[int]pointer
}

type pointer struct {
	off, length int
}

// New returns an empty OrdinalMap.
func New() *OrdinalMap {
	return &OrdinalMap{offsets: make(map[int]pointer)}
}

// Put stages the record bytes for ordinal, appending to the arena.
func (m *OrdinalMap) Put(ordinal int, record []byte) {
	off := len(m.buf)
	m.buf = append(m.buf, record...)
	m.offsets[ordinal] = pointer{off: off, length: len(record)}
}

// PutRecord is a convenience wrapper that encodes and stages rec.
func (m *OrdinalMap) PutRecord(ordinal int, rec Record) {
	m.Put(ordinal, EncodeRecord(rec))
}

// GetPointerForData returns the staged record bytes for ordinal.
// The second return value is false if nothing was ever staged there.
func (m *OrdinalMap) GetPointerForData(ordinal int) ([]byte, bool) {
	p, ok := m.offsets[ordinal]
	if !ok {
		return nil, false
	}
	return m.buf[p.off : p.off+p.length], true
}
