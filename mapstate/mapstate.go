// Package mapstate implements the write-side encoder for a Map type: the
// two-pass statistics/shard-sizing phase, the reshard-aware per-shard
// layout, deterministic hash-bucket placement, and snapshot/delta framing.
// It is grounded on compactindexsized's bucketed hashtable builder
// (stat-then-seal shape, fixed-stride entry packing) and gsfa/linkedlog's
// var-int framing.
package mapstate

import (
	"log/slog"

	"github.com/faithfuldb/colstate/bitset"
	"github.com/faithfuldb/colstate/hashkey"
	"github.com/faithfuldb/colstate/ordinalstore"
	"github.com/faithfuldb/colstate/typewrite"
)

// DefaultLoadFactor is the load factor the stager used to compute bucket
// counts; the encoder re-derives HashTableSize(size) from it rather than
// trusting a staged width.
const DefaultLoadFactor = 0.75

// HashKeySchema names the field paths (resolved against a live StateView)
// that constitute a type's primary key, used to bind a content-derived
// hasher late, per cycle.
type HashKeySchema struct {
	FieldPaths []string
	State      hashkey.StateView
}

// State is the Map write-side encoder. It embeds the shared state-engine
// base and implements typewrite.TypeWriteState.
type State struct {
	typewrite.Base

	// TypeName identifies this type for logging/metrics; it has no
	// effect on encoded bytes.
	TypeName string

	LoadFactor float64

	HashKey       *HashKeySchema
	HasherFactory hashkey.Factory
	PinnedShards  int // 0 means "let the shard sizer decide"

	Logger *slog.Logger

	// --- derived per-cycle statistics (populated by gatherStats) ---
	maxKeyOrdinal   int64
	maxValueOrdinal int64
	maxMapSize      int

	bitsPerKeyElement    uint
	bitsPerValueElement  uint
	bitsPerMapSizeValue  uint
	bitsPerMapPointer    uint
	revBitsPerMapPointer uint

	totalOfMapBuckets    []int
	revTotalOfMapBuckets []int

	statsReady bool

	// --- per-cycle hasher bind result, cached so CalculateSnapshot and
	// CalculateDelta agree and so the warning is only logged once ---
	hasherBound     bool
	hasher          hashkey.Fn
	warnedThisCycle bool

	// --- snapshot scratch, released after WriteSnapshot ---
	snapShards []*arrayAndWidth
	snapReady  bool

	// --- delta scratch, released after WriteCalculatedDelta ---
	deltaShards          []*arrayAndWidth
	deltaAddedOrdinals   [][]byte
	deltaRemovedOrdinals [][]byte
	numMapsInDelta       []int
	numBucketsInDelta    []int
	deltaIsReverse       bool
	deltaReady           bool
}

var _ typewrite.TypeWriteState = (*State)(nil)

// New constructs a Map write-state over the given staging collaborators.
func New(cfg typewrite.Config, typeName string, om *ordinalstore.OrdinalMap, prev, curr *bitset.Set) *State {
	s := &State{
		Base:       typewrite.NewBase(cfg, om, prev, curr),
		TypeName:   typeName,
		LoadFactor: DefaultLoadFactor,
		Logger:     slog.Default(),
	}
	return s
}

func (s *State) loadFactor() float64 {
	if s.LoadFactor <= 0 {
		return DefaultLoadFactor
	}
	return s.LoadFactor
}

// capOrdinal returns an upper bound on populated ordinals, derived from the
// two bitsets' backing capacity. Ordinals beyond the true maximum are
// simply unset in both and are skipped by the sizing and statistics passes.
func (s *State) capOrdinal() int {
	m := s.Prev.MaxOrdinal()
	if c := s.Curr.MaxOrdinal(); c > m {
		m = c
	}
	return m
}

// PrepareForWrite is invoked once per cycle before any encoding. It
// decides (or accepts a pin for) this cycle's shard count and clears all
// per-cycle scratch and caching state.
func (s *State) PrepareForWrite(canReshard bool) {
	s.RevNumShards = s.NumShards
	if s.NumShards == 0 {
		s.RevNumShards = 1
	}
	if canReshard && s.PinnedShards == 0 {
		s.NumShards = s.TypeStateNumShards(s.capOrdinal())
	} else if s.PinnedShards != 0 {
		s.NumShards = s.PinnedShards
	}
	if s.NumShards == 0 {
		s.NumShards = 1
	}

	s.statsReady = false
	s.snapReady = false
	s.deltaReady = false
	s.hasherBound = false
	s.warnedThisCycle = false
}

// TypeStateNumShards runs the shard sizer: a single pass over populated
// ordinals projecting encoded size as if one shard, then doubling the
// shard count until every shard is projected to fit under
// TargetMaxShardBytes.
func (s *State) TypeStateNumShards(maxOrdinal int) int {
	var totalBuckets int64
	var maxKey, maxValue int64 = -1, -1
	var maxSize int

	for ord := 0; ord <= maxOrdinal; ord++ {
		if !s.Prev.Get(ord) && !s.Curr.Get(ord) {
			continue
		}
		rec, ok := s.recordFor(ord)
		if !ok {
			continue
		}
		if rec.Size > maxSize {
			maxSize = rec.Size
		}
		totalBuckets += int64(HashTableSize(rec.Size, s.loadFactor()))
		for _, e := range rec.Entries {
			if int64(e.KeyOrdinal) > maxKey {
				maxKey = int64(e.KeyOrdinal)
			}
			if int64(e.ValueOrd) > maxValue {
				maxValue = int64(e.ValueOrd)
			}
		}
	}

	bitsKey := widthKey(maxKey)
	bitsValue := widthValue(maxValue)
	bitsSize := widthSize(maxSize)
	bitsPointer := widthPointer(totalBuckets)

	projectedBits := (int64(bitsSize)+int64(bitsPointer))*int64(maxOrdinal+1) +
		(int64(bitsKey)+int64(bitsValue))*totalBuckets
	projectedBytes := projectedBits / 8

	budget := s.Config.TargetMaxShardBytes
	if budget <= 0 {
		budget = 1 << 20
	}

	targetNumShards := 1
	for budget*int64(targetNumShards) < projectedBytes {
		targetNumShards *= 2
	}
	return targetNumShards
}

// shardLocalMax converts a raw highest-ordinal-per-shard value (as stored
// in Base.MaxShardOrdinal/RevMaxShardOrdinal) into the shard-local index
// space used to size and address that shard's arrays: ord/numShards, since
// ord % numShards == shard by construction. Returns -1 for an empty shard.
func shardLocalMax(rawMaxOrdinal, numShards int) int {
	if rawMaxOrdinal < 0 {
		return -1
	}
	return rawMaxOrdinal / numShards
}

// recordFor decodes the record staged for ord in the ordinal map. There is
// one staged record per ordinal, shared by prev and curr; the two bitsets
// differ only in populated-ness.
func (s *State) recordFor(ord int) (ordinalstore.Record, bool) {
	buf, ok := s.OrdinalMap.GetPointerForData(ord)
	if !ok {
		return ordinalstore.Record{}, false
	}
	return ordinalstore.DecodeRecord(buf), true
}
