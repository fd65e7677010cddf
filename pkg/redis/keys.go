package redis

import "fmt"

// SubjectsKey is the set of every subject the collector has seen
const SubjectsKey = "screen:subjects"

// ScreenEventsKey returns the key for a subject's screen events (sorted set)
// Pattern: screen:events:{subject}
func ScreenEventsKey(subject string) string {
	return fmt.Sprintf("screen:events:%s", subject)
}

// LivenessKey returns the key for a subject's heartbeat stamps (sorted set)
// Pattern: screen:liveness:{subject}
func LivenessKey(subject string) string {
	return fmt.Sprintf("screen:liveness:%s", subject)
}

// SubjectMetaKey returns the key for subject metadata (hash)
// Pattern: meta:screen:{subject}
func SubjectMetaKey(subject string) string {
	return fmt.Sprintf("meta:screen:%s", subject)
}
