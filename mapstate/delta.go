package mapstate

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/faithfuldb/colstate/bitset"
	"github.com/faithfuldb/colstate/metrics"
	"github.com/faithfuldb/colstate/ordinalstore"
	"github.com/faithfuldb/colstate/telemetry"
	"github.com/faithfuldb/colstate/varint"
	"golang.org/x/sync/errgroup"
)

// CalculateDelta diffs from against to, then encodes only the added
// records into per-shard scratch arrays while gap-encoding the added and
// removed ordinal streams. When isReverse is set and the shard count
// changed this cycle, layout uses the previous cycle's shard geometry so
// the reverse delta can be replayed against the prior snapshot.
func (s *State) CalculateDelta(from, to *bitset.Set, isReverse bool) error {
	return telemetry.MeasureEncode(context.Background(), "mapstate.CalculateDelta", s.TypeName, func() error {
		s.gatherStats()
		if err := s.bindHasherOnce(); err != nil {
			return err
		}

		numShards := s.NumShards
		if isReverse {
			numShards = s.RevNumShards
		}

		added := to.AndNot(from)
		removed := from.AndNot(to)

		addedByShard := make([][]int, numShards)
		for ord := added.NextSetBit(0); ord >= 0; ord = added.NextSetBit(ord + 1) {
			shard := ord & (numShards - 1)
			addedByShard[shard] = append(addedByShard[shard], ord)
		}
		removedByShard := make([][]int, numShards)
		for ord := removed.NextSetBit(0); ord >= 0; ord = removed.NextSetBit(ord + 1) {
			shard := ord & (numShards - 1)
			removedByShard[shard] = append(removedByShard[shard], ord)
		}

		numMapsInDelta := make([]int, numShards)
		numBucketsInDelta := make([]int, numShards)
		for shard, ords := range addedByShard {
			for _, ord := range ords {
				buf, ok := s.OrdinalMap.GetPointerForData(ord)
				if !ok {
					continue
				}
				numMapsInDelta[shard]++
				numBucketsInDelta[shard] += HashTableSize(ordinalstore.PeekSize(buf), s.loadFactor())
			}
		}

		shards := make([]*arrayAndWidth, numShards)
		addedOrdinals := make([][]byte, numShards)
		removedOrdinals := make([][]byte, numShards)

		var g errgroup.Group
		for shard := 0; shard < numShards; shard++ {
			shard := shard
			g.Go(func() error {
				ptrWidth := widthPointer(int64(numBucketsInDelta[shard]))
				arr := newShardArrays(
					numMapsInDelta[shard], numBucketsInDelta[shard],
					s.bitsPerKeyElement, s.bitsPerValueElement,
					s.bitsPerMapSizeValue, ptrWidth,
				)
				shards[shard] = arr
				s.encodeDeltaShard(shard, arr, addedByShard[shard])
				addedOrdinals[shard] = encodeGapStream(addedByShard[shard], numShards)
				removedOrdinals[shard] = encodeGapStream(removedByShard[shard], numShards)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		s.deltaShards = shards
		s.deltaAddedOrdinals = addedOrdinals
		s.deltaRemovedOrdinals = removedOrdinals
		s.numMapsInDelta = numMapsInDelta
		s.numBucketsInDelta = numBucketsInDelta
		s.deltaIsReverse = isReverse
		s.deltaReady = true
		return nil
	})
}

// encodeDeltaShard places each added record (in ascending ordinal order)
// into arr's bucket ranges and records the end-bucket pointer and logical
// size for the record's position within the delta.
func (s *State) encodeDeltaShard(shard int, arr *arrayAndWidth, added []int) {
	sorted := append([]int(nil), added...)
	sort.Ints(sorted)

	cursor := 0
	for i, ord := range sorted {
		rec, ok := s.recordFor(ord)
		if !ok {
			continue
		}
		b := placeRecord(arr, cursor, rec, s.hasher, s.loadFactor())
		cursor += b
		arr.setPointerAndSize(i, uint64(cursor), uint64(rec.Size))
	}
}

// encodeGapStream var-int-encodes the shard-local gaps between sorted
// absolute ordinals in ascending order, e.g. [3, 11] with numShards=1
// encodes as [3, 8]: prevAdded/Removed starts at 0, so the first emitted
// value is the first shardOrd itself.
func encodeGapStream(ordinals []int, numShards int) []byte {
	sorted := append([]int(nil), ordinals...)
	sort.Ints(sorted)

	var w varint.Writer
	prev := 0
	for _, ord := range sorted {
		shardLocal := ord / numShards
		w.VInt(uint32(shardLocal - prev))
		prev = shardLocal
	}
	return w.Bytes()
}

// WriteCalculatedDelta streams the previously calculated delta, then
// releases the scratch arrays regardless of outcome.
func (s *State) WriteCalculatedDelta(out io.Writer, isReverse bool, maxShardOrdinal []int) error {
	if !s.deltaReady {
		return fmt.Errorf("mapstate: WriteCalculatedDelta called before CalculateDelta")
	}
	if isReverse != s.deltaIsReverse {
		return fmt.Errorf("mapstate: WriteCalculatedDelta isReverse=%v does not match calculated delta", isReverse)
	}
	defer func() {
		s.deltaShards = nil
		s.deltaAddedOrdinals = nil
		s.deltaRemovedOrdinals = nil
		s.numMapsInDelta = nil
		s.numBucketsInDelta = nil
		s.deltaReady = false
	}()

	return telemetry.MeasureEncode(context.Background(), "mapstate.WriteCalculatedDelta", s.TypeName, func() error {
		adviseSequential(out)
		w := &countingWriter{w: out}
		numShards := len(s.deltaShards)

		if numShards > 1 {
			var hdr varint.Writer
			hdr.VInt(uint32(maxOf(maxShardOrdinal)))
			if _, err := w.Write(hdr.Bytes()); err != nil {
				return err
			}
		}

		for shard := 0; shard < numShards; shard++ {
			if err := s.writeDeltaShardBody(w, shard, maxShardOrdinal[shard]); err != nil {
				return err
			}
		}

		metrics.BytesWritten.WithLabelValues(s.TypeName, "delta").Add(float64(w.n))
		return nil
	})
}

// writeDeltaShardBody emits one shard's maxShardOrdinal, its removed/added
// ordinal streams, its statistics header, and its two packed word arrays.
func (s *State) writeDeltaShardBody(w io.Writer, shard int, maxShardOrd int) error {
	var maxOrdHdr varint.Writer
	maxOrdHdr.VInt(uint32(maxShardOrd))
	if _, err := w.Write(maxOrdHdr.Bytes()); err != nil {
		return err
	}

	var hdr varint.Writer
	hdr.VInt(uint32(len(s.deltaRemovedOrdinals[shard])))
	if _, err := w.Write(hdr.Bytes()); err != nil {
		return err
	}
	if _, err := w.Write(s.deltaRemovedOrdinals[shard]); err != nil {
		return err
	}

	var addedHdr varint.Writer
	addedHdr.VInt(uint32(len(s.deltaAddedOrdinals[shard])))
	if _, err := w.Write(addedHdr.Bytes()); err != nil {
		return err
	}
	if _, err := w.Write(s.deltaAddedOrdinals[shard]); err != nil {
		return err
	}

	arr := s.deltaShards[shard]
	var statsHdr varint.Writer
	statsHdr.VInt(uint32(s.numMapsInDelta[shard]))
	statsHdr.VInt(uint32(arr.ptrWidth))
	statsHdr.VInt(uint32(arr.sizeWidth))
	statsHdr.VInt(uint32(arr.keyWidth))
	statsHdr.VInt(uint32(arr.valueWidth))
	statsHdr.VLong(uint64(s.numBucketsInDelta[shard]))
	if _, err := w.Write(statsHdr.Bytes()); err != nil {
		return err
	}

	if err := writeWordArray(w, arr.pointersAndSizes); err != nil {
		return err
	}
	return writeWordArray(w, arr.entries)
}
