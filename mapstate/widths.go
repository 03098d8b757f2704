package mapstate

import "github.com/faithfuldb/colstate/bitpack"

// widthKey computes bitsPerKeyElement = ceilLog2(maxKeyOrdinal + 2),
// reserving the all-ones sentinel, with a floor of 1 bit so the sentinel
// is representable even when maxKeyOrdinal == -1 (an empty type).
func widthKey(maxKeyOrdinal int64) uint {
	w := bitpack.CeilLog2(uint64(maxKeyOrdinal + 2))
	if w < 1 {
		w = 1
	}
	return w
}

// widthValue computes bitsPerValueElement = max(1, ceilLog2(maxValueOrdinal+1)).
func widthValue(maxValueOrdinal int64) uint {
	w := bitpack.CeilLog2(uint64(maxValueOrdinal + 1))
	if w < 1 {
		w = 1
	}
	return w
}

// widthSize computes bitsPerMapSizeValue = ceilLog2(maxMapSize + 1).
func widthSize(maxMapSize int) uint {
	return bitpack.CeilLog2(uint64(maxMapSize + 1))
}

// widthPointer computes bitsPerMapPointer = ceilLog2(maxShardBucketTotal+1).
func widthPointer(maxShardBucketTotal int64) uint {
	return bitpack.CeilLog2(uint64(maxShardBucketTotal + 1))
}
