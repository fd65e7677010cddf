package timebin

import (
	"slices"
)

// BucketSet is a duplicate-free set of bucket ids
type BucketSet map[int64]struct{}

// NewBucketSet creates a set holding the given ids
func NewBucketSet(ids ...int64) BucketSet {
	s := make(BucketSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether the bucket is in the set
func (s BucketSet) Contains(id int64) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in ascending order
func (s BucketSet) Sorted() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Gap is an interval between two consecutive liveness stamps
// that is long enough to presume the device was off
type Gap struct {
	From int64
	To   int64
}

// FindGaps returns every gap longer than the threshold between consecutive
// stamps. The study boundaries are always added as sentinels so that silence
// at either end of the study is detected too.
func FindGaps(stamps []int64, p Params) []Gap {
	all := make([]int64, 0, len(stamps)+2)
	all = append(all, p.StudyStart)
	all = append(all, stamps...)
	all = append(all, p.StudyEnd)
	slices.Sort(all)

	var gaps []Gap
	for i := 1; i < len(all); i++ {
		if all[i]-all[i-1] > p.GapThreshold {
			gaps = append(gaps, Gap{From: all[i-1], To: all[i]})
		}
	}
	return gaps
}

// InvalidBuckets marks every bucket touched by a liveness gap as invalid.
// Both ends of a gap are inclusive, so a bucket that is only partially
// covered is still invalidated.
func InvalidBuckets(stamps []int64, p Params) BucketSet {
	invalid := make(BucketSet)
	for _, g := range FindGaps(stamps, p) {
		first := BucketOf(g.From, p.BucketLength)
		last := BucketOf(g.To, p.BucketLength)
		for b := first; b <= last; b++ {
			invalid[b] = struct{}{}
		}
	}
	return invalid
}
