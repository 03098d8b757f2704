package mapstate

import (
	"fmt"

	"github.com/faithfuldb/colstate/hashkey"
	"github.com/faithfuldb/colstate/metrics"
)

// bindHasherOnce attempts to bind the primary-key hasher for this cycle,
// caching the result so CalculateSnapshot and CalculateDelta see the same
// decision and so a not-bindable warning is only logged once per type per
// cycle.
func (s *State) bindHasherOnce() error {
	if s.hasherBound {
		return nil
	}
	s.hasherBound = true

	if s.HashKey == nil {
		return nil
	}

	res := s.HasherFactory.Bind(s.HashKey.FieldPaths, s.HashKey.State)
	switch res.Kind {
	case hashkey.Bound:
		s.hasher = res.Hasher
	case hashkey.Skipped:
		if !s.warnedThisCycle {
			s.warnedThisCycle = true
			s.Logger.Warn("primary-key hasher not bindable, using staged bucket hints",
				"type", s.TypeName, "reason", res.Reason)
			metrics.HasherSkipped.WithLabelValues(s.TypeName).Inc()
		}
	case hashkey.Err:
		return fmt.Errorf("mapstate: fatal hasher binding error for type %q: %w", s.TypeName, res.Reason)
	}
	return nil
}
