package timebin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate_SumsSharedBuckets(t *testing.T) {
	sessions := []Session{
		{Start: 890, Duration: 20, Class: ClassShort},
		{Start: 880, Duration: 30, Class: ClassShort},
		{Start: 100, Duration: 100, Class: ClassLong},
	}

	got := Aggregate(sessions, 900)

	require.Len(t, got, 2)
	assert.Equal(t, Measures{
		Screentime:       130,
		ScreentimeShort:  30,
		ScreentimeLong:   100,
		Screencount:      3,
		ScreencountShort: 2,
		ScreencountLong:  1,
	}, *got[0])
	assert.Equal(t, Measures{
		Screentime:      20,
		ScreentimeShort: 20,
	}, *got[1])
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, Aggregate(nil, 900))
}

func TestBuildTable(t *testing.T) {
	p := windowParams(0, 2699)
	measures := map[int64]*Measures{
		0: {Screentime: 90, ScreentimeShort: 90, Screencount: 2, ScreencountShort: 2},
		1: {Screentime: 900, ScreentimeLong: 900, Screencount: 1, ScreencountLong: 1},
	}

	rows := BuildTable("u1", measures, NewBucketSet(1), p)

	assert.Equal(t, []Row{
		{
			Subject:      "u1",
			BucketID:     0,
			TimebinStart: 0,
			Measures:     Measures{Screentime: 10, ScreentimeShort: 10, Screencount: 2, ScreencountShort: 2},
		},
		{
			Subject:      "u1",
			BucketID:     2,
			TimebinStart: 1800,
		},
	}, rows)
}

func TestBuildTable_ScalingRoundTrip(t *testing.T) {
	const bucketLength = 900
	p := windowParams(0, 900*bucketLength-1)

	measures := make(map[int64]*Measures)
	for b := int64(0); b < 900; b++ {
		measures[b] = &Measures{Screentime: b, ScreentimeLong: b}
	}

	rows := BuildTable("u1", measures, nil, p)
	require.Len(t, rows, 900)

	for _, row := range rows {
		seconds := row.BucketID
		recovered := row.Screentime * bucketLength / 100
		assert.LessOrEqual(t, recovered, seconds)
		assert.Less(t, seconds-recovered, int64(bucketLength/100), "bucket %d", row.BucketID)
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, int64(0), Percent(8, 900))
	assert.Equal(t, int64(1), Percent(9, 900))
	assert.Equal(t, int64(99), Percent(899, 900))
	assert.Equal(t, int64(100), Percent(900, 900))
}
