package mapstate

import (
	"context"
	"fmt"
	"io"

	"github.com/faithfuldb/colstate/metrics"
	"github.com/faithfuldb/colstate/telemetry"
	"github.com/faithfuldb/colstate/varint"
	"golang.org/x/sync/errgroup"
)

// CalculateSnapshot runs the stats pass (if needed), binds the primary-key
// hasher for this cycle, and encodes every shard's pointers-and-sizes and
// entries arrays by replaying curr's populated ordinals in shard-local
// order.
func (s *State) CalculateSnapshot() error {
	return telemetry.MeasureEncode(context.Background(), "mapstate.CalculateSnapshot", s.TypeName, func() error {
		s.gatherStats()
		if err := s.bindHasherOnce(); err != nil {
			return err
		}

		numShards := s.NumShards
		shards := make([]*arrayAndWidth, numShards)

		var g errgroup.Group
		for shard := 0; shard < numShards; shard++ {
			shard := shard
			g.Go(func() error {
				numPointerElems := shardLocalMax(s.MaxShardOrdinal[shard], numShards) + 1
				arr := newShardArrays(
					numPointerElems,
					s.totalOfMapBuckets[shard],
					s.bitsPerKeyElement, s.bitsPerValueElement,
					s.bitsPerMapSizeValue, s.bitsPerMapPointer,
				)
				shards[shard] = arr
				s.encodeSnapshotShard(shard, arr)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		s.snapShards = shards
		s.snapReady = true
		return nil
	})
}

// encodeSnapshotShard walks every ordinal owned by shard in ascending
// order, placing populated records' entries and advancing the running
// bucket cursor. Absent ordinals repeat the running cursor as their
// pointer at no extra bucket cost.
func (s *State) encodeSnapshotShard(shard int, arr *arrayAndWidth) {
	numShards := s.NumShards
	localMax := shardLocalMax(s.MaxShardOrdinal[shard], numShards)
	if localMax < 0 {
		return
	}
	cursor := 0
	for shardOrd := 0; shardOrd <= localMax; shardOrd++ {
		ord := shardOrd*numShards + shard
		if !s.Curr.Get(ord) {
			arr.setPointerAndSize(shardOrd, uint64(cursor), 0)
			continue
		}
		rec, _ := s.recordFor(ord)
		b := placeRecord(arr, cursor, rec, s.hasher, s.loadFactor())
		cursor += b
		arr.setPointerAndSize(shardOrd, uint64(cursor), uint64(rec.Size))
	}
}

// WriteSnapshot streams the previously calculated snapshot, then releases
// the scratch arrays regardless of outcome.
func (s *State) WriteSnapshot(out io.Writer) error {
	if !s.snapReady {
		return fmt.Errorf("mapstate: WriteSnapshot called before CalculateSnapshot")
	}
	defer func() {
		s.snapShards = nil
		s.snapReady = false
	}()

	return telemetry.MeasureEncode(context.Background(), "mapstate.WriteSnapshot", s.TypeName, func() error {
		adviseSequential(out)
		w := &countingWriter{w: out}
		numShards := s.NumShards

		if numShards > 1 {
			var hdr varint.Writer
			hdr.VInt(uint32(s.capOrdinal()))
			if _, err := w.Write(hdr.Bytes()); err != nil {
				return err
			}
		}

		for shard := 0; shard < numShards; shard++ {
			if err := s.writeSnapshotShardBody(w, shard); err != nil {
				return err
			}
		}

		if err := s.Curr.SerializeTo(w); err != nil {
			return err
		}

		metrics.BytesWritten.WithLabelValues(s.TypeName, "snapshot").Add(float64(w.n))
		metrics.ShardsChosen.WithLabelValues(s.TypeName).Set(float64(numShards))
		return nil
	})
}

// writeSnapshotShardBody emits one shard's header followed by its two
// packed word arrays.
func (s *State) writeSnapshotShardBody(w io.Writer, shard int) error {
	arr := s.snapShards[shard]

	var hdr varint.Writer
	hdr.VInt(uint32(shardLocalMax(s.MaxShardOrdinal[shard], s.NumShards)))
	hdr.VInt(uint32(s.bitsPerMapPointer))
	hdr.VInt(uint32(s.bitsPerMapSizeValue))
	hdr.VInt(uint32(s.bitsPerKeyElement))
	hdr.VInt(uint32(s.bitsPerValueElement))
	hdr.VLong(uint64(s.totalOfMapBuckets[shard]))
	if _, err := w.Write(hdr.Bytes()); err != nil {
		return err
	}

	if err := writeWordArray(w, arr.pointersAndSizes); err != nil {
		return err
	}
	return writeWordArray(w, arr.entries)
}
