// Package typewrite factors the state-engine hooks and shared per-cycle
// state common to every type write-state (Map, List, Set, Object) into a
// narrow interface and an embeddable base struct. Only the Map encoder
// (package mapstate) is implemented against it in this module.
package typewrite

import (
	"io"

	"github.com/faithfuldb/colstate/bitset"
	"github.com/faithfuldb/colstate/ordinalstore"
)

// TypeWriteState is the narrow surface the owning state engine drives a
// cycle through: prepare, then calculate and write a snapshot or a delta.
type TypeWriteState interface {
	PrepareForWrite(canReshard bool)
	CalculateSnapshot() error
	WriteSnapshot(out io.Writer) error
	CalculateDelta(from, to *bitset.Set, isReverse bool) error
	WriteCalculatedDelta(out io.Writer, isReverse bool, maxShardOrdinal []int) error
	TypeStateNumShards(maxOrdinal int) int
}

// Config is process-wide (but caller-owned, never global) configuration
// handed to every type write-state at construction.
type Config struct {
	// TargetMaxShardBytes bounds the projected size of any one shard; the
	// shard sizer doubles numShards until every shard fits under it.
	TargetMaxShardBytes int64
}

// Base holds the state shared by every type's write-state: the staging
// arena, the two cycle bitsets, and the shard geometry.
type Base struct {
	Config Config

	OrdinalMap *ordinalstore.OrdinalMap
	Prev       *bitset.Set
	Curr       *bitset.Set

	NumShards    int
	RevNumShards int

	// MaxShardOrdinal[shard] is the highest ordinal ord with
	// ord & (NumShards-1) == shard, or -1 if shard is empty.
	MaxShardOrdinal []int

	// RevMaxShardOrdinal is MaxShardOrdinal computed under RevNumShards;
	// when RevNumShards == NumShards this cycle it is the same slice as
	// MaxShardOrdinal.
	RevMaxShardOrdinal []int
}

// NewBase constructs a Base with the given config and staging collaborators.
func NewBase(cfg Config, om *ordinalstore.OrdinalMap, prev, curr *bitset.Set) Base {
	return Base{
		Config:       cfg,
		OrdinalMap:   om,
		Prev:         prev,
		Curr:         curr,
		NumShards:    1,
		RevNumShards: 1,
	}
}
