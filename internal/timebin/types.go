package timebin

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInput is returned when a call violates the input contract
// (mixed subjects, non-positive bucket length, inverted study window)
var ErrInvalidInput = errors.New("invalid input")

// Default pipeline parameters
const (
	DefaultBucketLength          int64 = 900
	DefaultGapThreshold          int64 = 1800
	DefaultShortSessionThreshold int64 = 35
	DefaultMaxSessionDuration    int64 = 7200
)

// Default study window boundaries
var (
	DefaultStudyStart = time.Date(2013, time.September, 1, 0, 0, 0, 0, time.UTC)
	DefaultStudyEnd   = time.Date(2015, time.August, 31, 23, 59, 59, 0, time.UTC)
)

// Params holds the scalar configuration for one pipeline run.
// All durations are in seconds, study boundaries in epoch seconds.
type Params struct {
	BucketLength          int64
	GapThreshold          int64
	ShortSessionThreshold int64
	MaxSessionDuration    int64
	StudyStart            int64
	StudyEnd              int64
}

// DefaultParams returns the parameters of the reference study window
func DefaultParams() Params {
	return Params{
		BucketLength:          DefaultBucketLength,
		GapThreshold:          DefaultGapThreshold,
		ShortSessionThreshold: DefaultShortSessionThreshold,
		MaxSessionDuration:    DefaultMaxSessionDuration,
		StudyStart:            DefaultStudyStart.Unix(),
		StudyEnd:              DefaultStudyEnd.Unix(),
	}
}

// Validate checks the parameters against the input contract
func (p Params) Validate() error {
	if p.BucketLength <= 0 {
		return fmt.Errorf("%w: bucket length must be positive, got %d", ErrInvalidInput, p.BucketLength)
	}
	if p.GapThreshold < 0 {
		return fmt.Errorf("%w: gap threshold must not be negative, got %d", ErrInvalidInput, p.GapThreshold)
	}
	if p.ShortSessionThreshold < 0 {
		return fmt.Errorf("%w: short session threshold must not be negative, got %d", ErrInvalidInput, p.ShortSessionThreshold)
	}
	if p.MaxSessionDuration <= 0 {
		return fmt.Errorf("%w: max session duration must be positive, got %d", ErrInvalidInput, p.MaxSessionDuration)
	}
	if p.StudyEnd < p.StudyStart {
		return fmt.Errorf("%w: study end %d is before study start %d", ErrInvalidInput, p.StudyEnd, p.StudyStart)
	}
	return nil
}

// FirstBucket returns the id of the bucket containing the study start
func (p Params) FirstBucket() int64 {
	return BucketOf(p.StudyStart, p.BucketLength)
}

// LastBucket returns the id of the bucket containing the study end
func (p Params) LastBucket() int64 {
	return BucketOf(p.StudyEnd, p.BucketLength)
}

// BucketOf returns the bucket id of a timestamp using floor division,
// so timestamps before the epoch land in negative buckets
func BucketOf(ts, bucketLength int64) int64 {
	b := ts / bucketLength
	if ts%bucketLength != 0 && ts < 0 {
		b--
	}
	return b
}

// floorMod is the non-negative remainder matching BucketOf
func floorMod(ts, bucketLength int64) int64 {
	return ts - BucketOf(ts, bucketLength)*bucketLength
}

// Event is a single screen state transition
type Event struct {
	Subject   string `json:"subject" yaml:"subject"`
	Timestamp int64  `json:"timestamp" yaml:"timestamp"`
	On        bool   `json:"on" yaml:"on"`
}

// LivenessStamp is a timestamp at which the device was known to be reporting
type LivenessStamp struct {
	Subject   string `json:"subject" yaml:"subject"`
	Timestamp int64  `json:"timestamp" yaml:"timestamp"`
}

// SessionClass tells short sessions from long ones
type SessionClass string

const (
	ClassShort SessionClass = "short"
	ClassLong  SessionClass = "long"
)

// Session is a reconstructed on-to-off interval
type Session struct {
	Start    int64        `json:"start"`
	Duration int64        `json:"duration"`
	Class    SessionClass `json:"class"`
}

// End returns the timestamp of the terminating off event
func (s Session) End() int64 {
	return s.Start + s.Duration
}

// Fragment is the part of a session that falls in one bucket
type Fragment struct {
	Bucket  int64
	Seconds int64
	Count   int64
}

// Measures holds the per-bucket usage figures.
// Time fields are seconds until BuildTable rescales them to percent of bucket.
type Measures struct {
	Screentime       int64 `json:"screentime"`
	ScreentimeShort  int64 `json:"screentime_short"`
	ScreentimeLong   int64 `json:"screentime_long"`
	Screencount      int64 `json:"screencount"`
	ScreencountShort int64 `json:"screencount_short"`
	ScreencountLong  int64 `json:"screencount_long"`
}

// Row is one line of the per-subject output table
type Row struct {
	Subject      string `json:"subject"`
	BucketID     int64  `json:"bucket_id"`
	TimebinStart int64  `json:"timebin_start"`
	Measures
}

// SubjectInput is the complete history of one subject
type SubjectInput struct {
	Subject  string
	Events   []Event
	Liveness []LivenessStamp
}

// InvalidationCounts records how much of the input the pipeline discarded
type InvalidationCounts struct {
	Events             int  `json:"events"`
	InvalidBucket      int  `json:"invalid_bucket"`
	Twins              int  `json:"twins"`
	BrokenByGap        int  `json:"broken_by_gap"`
	Sessions           int  `json:"sessions"`
	DroppedSessions    int  `json:"dropped_sessions"`
	UnterminatedAtEnd  bool `json:"unterminated_at_end"`
	InvalidBuckets     int  `json:"invalid_buckets"`
	LivenessOutOfStudy int  `json:"liveness_out_of_study"`
}

// Result is the output of one subject's pipeline run
type Result struct {
	Subject        string             `json:"subject"`
	Rows           []Row              `json:"rows"`
	Sessions       []Session          `json:"sessions"`
	InvalidBuckets []int64            `json:"invalid_buckets"`
	Counts         InvalidationCounts `json:"counts"`
}
