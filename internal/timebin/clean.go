package timebin

import (
	"cmp"
	"slices"
)

// CleanStats counts the events removed while cleaning
type CleanStats struct {
	InvalidBucket int
	Twins         int
	// BrokenByGap counts on events discarded because the invalid span that
	// followed them cut their session
	BrokenByGap int
}

// SortEvents returns a copy of the events ordered by timestamp.
// Events sharing a timestamp keep their input order.
func SortEvents(events []Event) []Event {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b Event) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	return sorted
}

// CleanEvents sorts the events and drops the ones that carry no information:
// events inside an invalid bucket, and twins, i.e. events repeating the state
// of the previous kept event. The input slice is not modified.
//
// An event removed for lying in an invalid bucket breaks the stream. A
// session still open at the break is discarded with its on event, and the
// first event after the break is never judged a twin, so no session pairs
// across an invalid span.
func CleanEvents(events []Event, invalid BucketSet, bucketLength int64) ([]Event, CleanStats) {
	var stats CleanStats
	sorted := SortEvents(events)

	kept := make([]Event, 0, len(sorted))
	broken := false
	for _, ev := range sorted {
		if invalid.Contains(BucketOf(ev.Timestamp, bucketLength)) {
			stats.InvalidBucket++
			if n := len(kept); !broken && n > 0 && kept[n-1].On {
				kept = kept[:n-1]
				stats.BrokenByGap++
			}
			broken = true
			continue
		}
		if n := len(kept); !broken && n > 0 && kept[n-1].On == ev.On {
			stats.Twins++
			continue
		}
		broken = false
		kept = append(kept, ev)
	}

	return kept, stats
}
