package timebin

// Aggregate sums the apportioned fragments of all sessions per bucket,
// separately for short and long sessions, and fills in the totals.
// Fragments landing in the same bucket are added up, never overwritten.
func Aggregate(sessions []Session, bucketLength int64) map[int64]*Measures {
	out := make(map[int64]*Measures)

	for _, s := range sessions {
		for _, f := range Apportion(s, bucketLength) {
			m, ok := out[f.Bucket]
			if !ok {
				m = &Measures{}
				out[f.Bucket] = m
			}
			switch s.Class {
			case ClassShort:
				m.ScreentimeShort += f.Seconds
				m.ScreencountShort += f.Count
			default:
				m.ScreentimeLong += f.Seconds
				m.ScreencountLong += f.Count
			}
		}
	}

	for _, m := range out {
		m.Screentime = m.ScreentimeShort + m.ScreentimeLong
		m.Screencount = m.ScreencountShort + m.ScreencountLong
	}

	return out
}

// Percent rescales a number of seconds to percent of a bucket, truncated
func Percent(seconds, bucketLength int64) int64 {
	return seconds * 100 / bucketLength
}

// Scaled returns a copy of the measures with every time field expressed as
// percent of the bucket. Counts are left as they are.
func (m Measures) Scaled(bucketLength int64) Measures {
	m.Screentime = Percent(m.Screentime, bucketLength)
	m.ScreentimeShort = Percent(m.ScreentimeShort, bucketLength)
	m.ScreentimeLong = Percent(m.ScreentimeLong, bucketLength)
	return m
}

// BuildTable lays the measures onto the dense calendar of the study window.
// Every valid bucket appears exactly once, in ascending order, zero-filled
// when no session touched it. Invalid buckets are left out entirely.
func BuildTable(subject string, measures map[int64]*Measures, invalid BucketSet, p Params) []Row {
	first, last := p.FirstBucket(), p.LastBucket()

	rows := make([]Row, 0, last-first+1-int64(countWithin(invalid, first, last)))
	for b := first; b <= last; b++ {
		if invalid.Contains(b) {
			continue
		}
		row := Row{
			Subject:      subject,
			BucketID:     b,
			TimebinStart: b * p.BucketLength,
		}
		if m, ok := measures[b]; ok {
			row.Measures = m.Scaled(p.BucketLength)
		}
		rows = append(rows, row)
	}

	return rows
}

func countWithin(s BucketSet, first, last int64) int {
	n := 0
	for id := range s {
		if id >= first && id <= last {
			n++
		}
	}
	return n
}
