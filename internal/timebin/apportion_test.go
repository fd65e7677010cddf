package timebin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApportion(t *testing.T) {
	tests := []struct {
		name     string
		session  Session
		expected []Fragment
	}{
		{
			name:     "inside one bucket",
			session:  Session{Start: 1000, Duration: 500},
			expected: []Fragment{{Bucket: 1, Seconds: 500, Count: 1}},
		},
		{
			name:    "crossing one boundary",
			session: Session{Start: 1000, Duration: 1000},
			expected: []Fragment{
				{Bucket: 1, Seconds: 800, Count: 1},
				{Bucket: 2, Seconds: 200, Count: 0},
			},
		},
		{
			name:    "spanning interior buckets",
			session: Session{Start: 850, Duration: 2000},
			expected: []Fragment{
				{Bucket: 0, Seconds: 50, Count: 1},
				{Bucket: 1, Seconds: 900, Count: 0},
				{Bucket: 2, Seconds: 900, Count: 0},
				{Bucket: 3, Seconds: 150, Count: 0},
			},
		},
		{
			name:    "ending on a boundary keeps the empty last bucket",
			session: Session{Start: 800, Duration: 100},
			expected: []Fragment{
				{Bucket: 0, Seconds: 100, Count: 1},
				{Bucket: 1, Seconds: 0, Count: 0},
			},
		},
		{
			name:    "starting on a boundary",
			session: Session{Start: 900, Duration: 900},
			expected: []Fragment{
				{Bucket: 1, Seconds: 900, Count: 1},
				{Bucket: 2, Seconds: 0, Count: 0},
			},
		},
		{
			name:     "before the epoch",
			session:  Session{Start: -100, Duration: 50},
			expected: []Fragment{{Bucket: -1, Seconds: 50, Count: 1}},
		},
		{
			name:    "crossing the epoch",
			session: Session{Start: -100, Duration: 300},
			expected: []Fragment{
				{Bucket: -1, Seconds: 100, Count: 1},
				{Bucket: 0, Seconds: 200, Count: 0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Apportion(tt.session, 900))
		})
	}
}

func TestApportion_PreservesDurationAndCount(t *testing.T) {
	const bucketLength = 900

	for start := int64(0); start < 2*bucketLength; start += 37 {
		for _, duration := range []int64{1, 35, 899, 900, 901, 1800, 4321, 7200} {
			s := Session{Start: start, Duration: duration}
			frags := Apportion(s, bucketLength)

			first := BucketOf(s.Start, bucketLength)
			last := BucketOf(s.End(), bucketLength)
			require.Len(t, frags, int(last-first+1), "start=%d duration=%d", start, duration)

			var seconds, count int64
			for i, f := range frags {
				assert.Equal(t, first+int64(i), f.Bucket)
				assert.GreaterOrEqual(t, f.Seconds, int64(0))
				assert.LessOrEqual(t, f.Seconds, int64(bucketLength))
				seconds += f.Seconds
				count += f.Count
			}
			assert.Equal(t, duration, seconds, "start=%d duration=%d", start, duration)
			assert.Equal(t, int64(1), count, "start=%d duration=%d", start, duration)
		}
	}
}

func TestBucketOf(t *testing.T) {
	tests := []struct {
		ts       int64
		expected int64
	}{
		{0, 0},
		{899, 0},
		{900, 1},
		{5000, 5},
		{-1, -1},
		{-900, -1},
		{-901, -2},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, BucketOf(tt.ts, 900), "ts=%d", tt.ts)
	}
}
