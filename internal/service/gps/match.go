package gps

import "potholeserver/internal/model"

// DefaultTolerance is the default maximum time gap accepted by Match.
const DefaultTolerance int64 = 2

// Match returns the fix closest in time to ts within tolerance.
// Equidistant fixes resolve to the earliest inserted one. Unknown or empty
// sessions, and gaps larger than tolerance, report false.
func (c *Cache) Match(sessionID string, ts int64, tolerance int64) (model.GpsFix, bool) {
	state := c.get(sessionID)
	if state == nil {
		return model.GpsFix{}, false
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	return nearest(state.fixes, ts, tolerance)
}

func nearest(fixes []model.GpsFix, ts int64, tolerance int64) (model.GpsFix, bool) {
	if len(fixes) == 0 {
		return model.GpsFix{}, false
	}

	best := 0
	bestDiff := distance(fixes[0].Timestamp, ts)
	for i := 1; i < len(fixes); i++ {
		if d := distance(fixes[i].Timestamp, ts); d < bestDiff {
			best, bestDiff = i, d
		}
	}

	if tolerance < 0 || bestDiff > uint64(tolerance) {
		return model.GpsFix{}, false
	}
	return fixes[best], true
}

// distance is |a-b| in uint64, which holds the full int64 span without wrapping.
func distance(a, b int64) uint64 {
	if a > b {
		return uint64(a) - uint64(b)
	}
	return uint64(b) - uint64(a)
}
