package timebin

import (
	"fmt"
)

// Process runs the whole pipeline for one subject: liveness gap detection,
// event cleaning, session extraction, apportionment and the dense output table.
// The input is validated before any processing and left unmodified.
func Process(in SubjectInput, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := validateSubject(in); err != nil {
		return nil, err
	}

	stamps, outside := livenessWithinStudy(in.Liveness, p)
	invalid := InvalidBuckets(stamps, p)

	events, cleanStats := CleanEvents(in.Events, invalid, p.BucketLength)
	sessions, sessionStats := ExtractSessions(events, p)

	measures := Aggregate(sessions, p.BucketLength)
	rows := BuildTable(in.Subject, measures, invalid, p)

	invalidIDs := invalid.Sorted()
	return &Result{
		Subject:        in.Subject,
		Rows:           rows,
		Sessions:       sessions,
		InvalidBuckets: invalidIDs,
		Counts: InvalidationCounts{
			Events:             len(in.Events),
			InvalidBucket:      cleanStats.InvalidBucket,
			Twins:              cleanStats.Twins,
			BrokenByGap:        cleanStats.BrokenByGap,
			Sessions:           len(sessions),
			DroppedSessions:    sessionStats.Dropped,
			UnterminatedAtEnd:  sessionStats.Unterminated,
			InvalidBuckets:     len(invalidIDs),
			LivenessOutOfStudy: outside,
		},
	}, nil
}

// validateSubject rejects input mixing records of several subjects.
// Records without a subject are taken to belong to the input's subject.
func validateSubject(in SubjectInput) error {
	if in.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	for i, ev := range in.Events {
		if ev.Subject != "" && ev.Subject != in.Subject {
			return fmt.Errorf("%w: event %d belongs to subject %q, expected %q", ErrInvalidInput, i, ev.Subject, in.Subject)
		}
	}
	for i, ls := range in.Liveness {
		if ls.Subject != "" && ls.Subject != in.Subject {
			return fmt.Errorf("%w: liveness stamp %d belongs to subject %q, expected %q", ErrInvalidInput, i, ls.Subject, in.Subject)
		}
	}
	return nil
}

// livenessWithinStudy returns the stamps inside the study window and how
// many fell outside it
func livenessWithinStudy(liveness []LivenessStamp, p Params) ([]int64, int) {
	stamps := make([]int64, 0, len(liveness))
	outside := 0
	for _, ls := range liveness {
		if ls.Timestamp < p.StudyStart || ls.Timestamp > p.StudyEnd {
			outside++
			continue
		}
		stamps = append(stamps, ls.Timestamp)
	}
	return stamps, outside
}
