package timebin

import "fmt"

// Apportion splits a session over every bucket it overlaps.
//
// The bucket holding the session start gets the time up to its end and the
// session-start count. Interior buckets get a full bucket length, the bucket
// holding the session end gets the time from its start to the session end.
// When the session ends exactly on a bucket boundary that last fragment is
// still emitted with zero seconds.
func Apportion(s Session, bucketLength int64) []Fragment {
	first := BucketOf(s.Start, bucketLength)
	last := BucketOf(s.End(), bucketLength)

	if first == last {
		return []Fragment{{Bucket: first, Seconds: s.Duration, Count: 1}}
	}

	frags := make([]Fragment, 0, last-first+1)
	frags = append(frags, Fragment{
		Bucket:  first,
		Seconds: bucketLength - floorMod(s.Start, bucketLength),
		Count:   1,
	})
	for b := first + 1; b < last; b++ {
		frags = append(frags, Fragment{Bucket: b, Seconds: bucketLength})
	}
	frags = append(frags, Fragment{
		Bucket:  last,
		Seconds: floorMod(s.End(), bucketLength),
	})

	var total int64
	for _, f := range frags {
		total += f.Seconds
	}
	if total != s.Duration {
		panic(fmt.Sprintf("timebin: apportioned %ds of a %ds session starting at %d", total, s.Duration, s.Start))
	}

	return frags
}
