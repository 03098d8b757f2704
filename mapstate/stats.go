package mapstate

// gatherStats runs a single pass over populated ordinals, with the shard
// count already decided, computing global bit-widths and per-shard bucket
// totals (and the reverse-shard-count totals, when they differ).
func (s *State) gatherStats() {
	if s.statsReady {
		return
	}

	maxOrd := s.capOrdinal()

	numShards := s.NumShards
	revNumShards := s.RevNumShards
	sameShardCount := numShards == revNumShards

	totalOfMapBuckets := make([]int, numShards)
	var revTotalOfMapBuckets []int
	if !sameShardCount {
		revTotalOfMapBuckets = make([]int, revNumShards)
	}

	maxShardOrdinal := fillMinusOne(make([]int, numShards))
	var revMaxShardOrdinal []int
	if !sameShardCount {
		revMaxShardOrdinal = fillMinusOne(make([]int, revNumShards))
	}

	var maxKey, maxValue int64 = -1, -1
	var maxSize int

	for ord := 0; ord <= maxOrd; ord++ {
		if !s.Prev.Get(ord) && !s.Curr.Get(ord) {
			continue
		}
		rec, ok := s.recordFor(ord)
		if !ok {
			continue
		}

		shard := ord & (numShards - 1)
		if ord > maxShardOrdinal[shard] {
			maxShardOrdinal[shard] = ord
		}
		b := HashTableSize(rec.Size, s.loadFactor())
		totalOfMapBuckets[shard] += b

		if !sameShardCount {
			revShard := ord & (revNumShards - 1)
			if ord > revMaxShardOrdinal[revShard] {
				revMaxShardOrdinal[revShard] = ord
			}
			revTotalOfMapBuckets[revShard] += b
		}

		if rec.Size > maxSize {
			maxSize = rec.Size
		}
		for _, e := range rec.Entries {
			if int64(e.KeyOrdinal) > maxKey {
				maxKey = int64(e.KeyOrdinal)
			}
			if int64(e.ValueOrd) > maxValue {
				maxValue = int64(e.ValueOrd)
			}
		}
	}

	s.maxKeyOrdinal = maxKey
	s.maxValueOrdinal = maxValue
	s.maxMapSize = maxSize

	s.bitsPerKeyElement = widthKey(maxKey)
	s.bitsPerValueElement = widthValue(maxValue)
	s.bitsPerMapSizeValue = widthSize(maxSize)

	s.totalOfMapBuckets = totalOfMapBuckets
	s.bitsPerMapPointer = widthPointer(int64(maxOf(totalOfMapBuckets)))

	s.MaxShardOrdinal = maxShardOrdinal

	if sameShardCount {
		s.revTotalOfMapBuckets = totalOfMapBuckets
		s.revBitsPerMapPointer = s.bitsPerMapPointer
		s.RevMaxShardOrdinal = maxShardOrdinal
	} else {
		s.revTotalOfMapBuckets = revTotalOfMapBuckets
		s.revBitsPerMapPointer = widthPointer(int64(maxOf(revTotalOfMapBuckets)))
		s.RevMaxShardOrdinal = revMaxShardOrdinal
	}

	s.statsReady = true
}

func fillMinusOne(a []int) []int {
	for i := range a {
		a[i] = -1
	}
	return a
}

func maxOf(a []int) int {
	m := 0
	for _, v := range a {
		if v > m {
			m = v
		}
	}
	return m
}
